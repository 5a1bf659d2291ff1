package trap

import (
	"rvos/kernel/kfmt"
)

// sstatusSPP is the bit in sstatus recording the privilege level the trap
// was taken from: 0 means the trapped context was U-mode, 1 means S-mode.
const sstatusSPP = 1 << 8

// FromUserMode reports whether f's saved sstatus shows the trap was taken
// from user mode.
func (f *Frame) FromUserMode() bool {
	return f.SSTATUS&sstatusSPP == 0
}

// TerminateCurrentTask ends the running task with the given exit signal
// (spec.md §7: "user-mode exceptions terminate the process with a signal;
// exit status encodes the signal number"). kernel/boot installs the real
// implementation, which marks the signal pending on the current task for
// delivery on return to user mode; the zero value here only exists so
// kernel/trap compiles and is testable on its own.
var TerminateCurrentTask = func(signal int) {}

// SIGSEGV and SIGILL are the signal numbers reported for the two exception
// families this kernel classifies (Linux numbering, matching the rest of
// the syscall-facing errno/signal surface).
const (
	SIGILL  = 4
	SIGSEGV = 11
)

func handlePageFault(f *Frame, cause Scause) {
	addr := ReadFaultAddress()

	if f.FromUserMode() {
		kfmt.Printf("trap: page fault for task at %#x (%s)\n", addr, pageFaultReason(cause))
		TerminateCurrentTask(SIGSEGV)
		return
	}

	fatalException(f, cause)
}

func pageFaultReason(cause Scause) string {
	switch cause.Code() {
	case ExceptionInstructionPageFault:
		return "instruction fetch"
	case ExceptionLoadPageFault:
		return "load"
	case ExceptionStoreAMOPageFault:
		return "store/amo"
	default:
		return "unknown"
	}
}
