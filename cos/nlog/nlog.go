// Package nlog is zilcore's own lightweight leveled logger: a thin
// wrapper over the standard log package with an Infoln/Warningln/
// Errorln surface and a verbosity gate (FastV) consulted on hot paths
// without taking a lock.
package nlog

import (
	"fmt"
	"log"
	"os"
)

type level int32

const (
	LevelError level = iota
	LevelWarning
	LevelInfo
	LevelVerbose
)

var std = log.New(os.Stderr, "", log.Ldate|log.Lmicroseconds)

// Verbosity gates per-module logging independent of the global level.
var verbosity = map[string]int{}

func SetVerbosity(module string, v int) { verbosity[module] = v }

// FastV reports whether module-scoped logging at v is enabled. Callers
// gate expensive Sprintf-style logging behind it, e.g.:
//
//	if nlog.FastV(5, cos.SmoduleZil) { nlog.Infof(...) }
func FastV(v int, module string) bool { return verbosity[module] >= v }

func Infoln(v ...any)            { std.Println(append([]any{"I:"}, v...)...) }
func Infof(f string, v ...any)   { std.Printf("I: "+f+"\n", v...) }
func Warningln(v ...any)         { std.Println(append([]any{"W:"}, v...)...) }
func Warningf(f string, v ...any) { std.Printf("W: "+f+"\n", v...) }
func Errorln(v ...any)           { std.Println(append([]any{"E:"}, v...)...) }
func Errorf(f string, v ...any)  { std.Printf("E: "+f+"\n", v...) }

// Fatalf logs and terminates the process, used only for unrecoverable
// programmer errors (never for I/O or protocol errors, which the core
// always returns up the call stack instead).
func Fatalf(f string, v ...any) {
	std.Printf("F: "+f+"\n", v...)
	panic(fmt.Sprintf(f, v...))
}
