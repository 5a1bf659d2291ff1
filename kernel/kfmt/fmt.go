// Package kfmt is the heap-backed logging facade used by every subsystem
// once kernel/mem/kheap is initialized. Before that point (boot, panic
// recovery, trap diagnostics) subsystems use kernel/kfmt/early instead,
// which cannot allocate.
package kfmt

import (
	"fmt"
	"io"
)

var (
	history ringBuffer

	// consoleFn is the active console sink. kernel/boot installs the real
	// SBI console writer once it is available; defaults to discarding
	// output so packages can log before a console is attached (useful in
	// tests).
	consoleFn io.Writer = io.Discard

	out io.Writer = io.MultiWriter(&history, consoleFn)
)

// SetConsole installs w as the console output target. Log history captured
// before this call remains available via History.
func SetConsole(w io.Writer) {
	consoleFn = w
	out = io.MultiWriter(&history, consoleFn)
}

// Printf writes a formatted message to the active console and the log ring
// buffer.
func Printf(format string, args ...interface{}) {
	fmt.Fprintf(out, format, args...)
}

// Fprintf writes a formatted message to w only (and still records it in the
// log history), matching the teacher's PrefixWriter-friendly signature.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(io.MultiWriter(&history, w), format, args...)
}

// History returns the most recently logged bytes, oldest first.
func History() []byte {
	return history.Snapshot()
}
