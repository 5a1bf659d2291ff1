package trap

import (
	"rvos/kernel/ipi"
	"rvos/kernel/kfmt"
)

// ReadCause reads the scause CSR. Installed for real by kernel/boot; tests
// and non-hart builds override it.
var ReadCause = func() Scause { return 0 }

// ReadFaultAddress reads the stval CSR, the address that caused a
// misaligned/access/page-fault exception.
var ReadFaultAddress = func() uint64 { return 0 }

// AckTimer asks firmware to arm the next timer tick. Installed to
// kernel/sbi.SetTimer by kernel/boot.
var AckTimer = func() {}

// ClaimExternalIRQ asks the PLIC which pending IRQ to service next (0 means
// none). CompleteExternalIRQ acknowledges it once handled. Both are no-ops
// until kernel/boot wires a real PLIC driver; spec.md scopes concrete
// drivers out, so these exist purely as the dispatch point a driver would
// hook into.
var ClaimExternalIRQ = func() uint32 { return 0 }
var CompleteExternalIRQ = func(irq uint32) {}

// SyscallHandler services an ecall-from-U-mode exception. kernel/boot
// installs kernel/syscall's Dispatch; a0-a6 and the syscall number in a7 are
// read out of the frame, and the return value is written back to a0.
var SyscallHandler = func(f *Frame) {}

// TimerTick is invoked on every supervisor timer interrupt, after firmware
// has been told to arm the next one. kernel/sched installs the real
// time-slice bookkeeping.
var TimerTick = func() {}

// Resched, FlushTLB and Stop are the IPI callbacks passed to ipi.Handle.
// kernel/sched installs Resched; kernel/boot installs FlushTLB (sfence.vma)
// and Stop (sbi.HartStop).
var Resched = func() {}
var FlushTLB = func() {}
var Stop = func() {}

// CheckResched reports and clears whether the calling hart's current task
// has exhausted its quantum (set by TimerTick). kernel/sched installs
// Resched's own NeedResched as this hook so Dispatch can act on it before
// returning to user mode, rather than only on the next IPI.
var CheckResched = func() bool { return false }

// DeliverSignals runs at the return-to-user boundary, after syscall or
// interrupt handling, before the final register restore (spec.md §4.7). It
// may rewrite f in place to redirect execution into a user signal handler.
var DeliverSignals = func(f *Frame) {}

// exceptionHandlers is a registration table, one discretionary handler per
// synchronous exception code, in the same spirit as gopher-os's
// HandleException table (kernel/irq/handler_amd64.go) but keyed by scause's
// exception code instead of an IDT vector.
var exceptionHandlers = map[uint64]func(f *Frame, cause Scause){}

// RegisterExceptionHandler installs fn as the handler for the given
// synchronous exception code, overriding the fatal default.
func RegisterExceptionHandler(code uint64, fn func(f *Frame, cause Scause)) {
	exceptionHandlers[code] = fn
}

// Dispatch is called by the trap-vector assembly stub with the frame it just
// saved. It classifies scause and routes to the syscall, interrupt, or
// fatal-exception path, then (on the way back to user mode) runs pending
// signal delivery.
func Dispatch(f *Frame) {
	cause := ReadCause()

	if cause.IsInterrupt() {
		dispatchInterrupt(f, cause)
	} else {
		dispatchException(f, cause)
	}

	if CheckResched() {
		Resched()
	}
	DeliverSignals(f)
}

func dispatchInterrupt(f *Frame, cause Scause) {
	switch cause.Code() {
	case InterruptSupervisorTimer:
		AckTimer()
		TimerTick()
	case InterruptSupervisorSoftware:
		ipi.Handle(Resched, FlushTLB, Stop)
	case InterruptSupervisorExternal:
		if irq := ClaimExternalIRQ(); irq != 0 {
			CompleteExternalIRQ(irq)
		}
	default:
		kfmt.Printf("trap: unknown interrupt cause %d\n", cause.Code())
	}
}

func dispatchException(f *Frame, cause Scause) {
	switch cause.Code() {
	case ExceptionEnvironmentCallFromUMode:
		f.SEPC += 4 // ecall is always 4 bytes; advance past it before return
		SyscallHandler(f)
	case ExceptionInstructionPageFault, ExceptionLoadPageFault, ExceptionStoreAMOPageFault:
		handlePageFault(f, cause)
	default:
		if handler, ok := exceptionHandlers[cause.Code()]; ok {
			handler(f, cause)
			return
		}
		fatalException(f, cause)
	}
}
