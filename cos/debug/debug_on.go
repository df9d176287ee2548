//go:build debug

package debug

func init() { enabled = true }
