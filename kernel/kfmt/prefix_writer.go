package kfmt

import (
	"fmt"
	"io"
)

// PrefixWriter decorates every line written to it with a fixed prefix,
// e.g. "[sched] ". Subsystems obtain one via Logger(name) instead of calling
// Printf directly so log lines are always attributable to their subsystem.
type PrefixWriter struct {
	prefix     string
	atLineHead bool
}

// Logger returns a *PrefixWriter that tags every line with "[name] ".
func Logger(name string) *PrefixWriter {
	return &PrefixWriter{prefix: "[" + name + "] ", atLineHead: true}
}

// Write implements io.Writer.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	written := 0
	for _, b := range p {
		if w.atLineHead {
			io.WriteString(out, w.prefix)
			w.atLineHead = false
		}
		out.Write([]byte{b})
		written++
		if b == '\n' {
			w.atLineHead = true
		}
	}
	return written, nil
}

// Printf formats and writes through this prefixed writer. The prefixed
// writer already routes through the shared log history via out, so this
// calls fmt.Fprintf directly rather than kfmt.Fprintf to avoid recording the
// line twice.
func (w *PrefixWriter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
