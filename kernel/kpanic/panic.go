// Package kpanic implements the kernel's single fatal-error exit path. A
// call to Panic never returns: it prints the error and recent log history to
// the console and halts the calling hart.
package kpanic

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/kfmt"
	"rvos/kernel/kfmt/early"
)

// haltFn stops the CPU. kernel/boot replaces it via SetHalt with an SBI
// shutdown call; tests override it to avoid actually halting.
var haltFn = func() {
	for {
	}
}

// SetHalt installs the architecture halt routine.
func SetHalt(fn func()) {
	haltFn = fn
}

var errUnknown = &kerrors.Error{Module: "rt", Message: "unknown cause"}

// Panic reports e and halts the system. e may be a *kerrors.Error, a string,
// an error, or nil.
func Panic(e interface{}) {
	var err *kerrors.Error
	switch t := e.(type) {
	case *kerrors.Error:
		err = t
	case string:
		err = &kerrors.Error{Module: "rt", Message: t}
	case error:
		err = &kerrors.Error{Module: "rt", Message: t.Error()}
	case nil:
		err = nil
	default:
		err = errUnknown
	}

	early.Printf("\n-----------------------------------\n")
	if err != nil {
		early.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	if hist := kfmt.History(); len(hist) > 0 {
		early.Printf("recent log:\n%s", hist)
	}
	early.Printf("*** kernel panic: system halted ***\n")
	early.Printf("-----------------------------------\n")

	haltFn()
}
