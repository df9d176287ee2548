// Package debug provides build-tag-gated assertions. Asserts are
// no-ops unless built with -tags debug, so they carry no cost in
// production builds but document invariants inline.
package debug

import "fmt"

var enabled = false

// Enabled reports whether assertions are compiled in. Overridden to
// true by debug_on.go under the "debug" build tag.
func Enabled() bool { return enabled }

func Assert(cond bool, args ...any) {
	if !enabled || cond {
		return
	}
	panic(assertMsg(args))
}

func Assertf(cond bool, f string, args ...any) {
	if !enabled || cond {
		return
	}
	panic(assertMsgf(f, args))
}

func AssertNoErr(err error) {
	if !enabled || err == nil {
		return
	}
	panic(err)
}

func assertMsg(args []any) string {
	if len(args) == 0 {
		return "assertion failed"
	}
	return "assertion failed: " + fmt.Sprint(args...)
}

func assertMsgf(f string, args []any) string {
	return "assertion failed: " + fmt.Sprintf(f, args...)
}
