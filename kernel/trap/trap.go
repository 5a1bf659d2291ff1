// Package trap implements component C5's trap entry/exit semantics in Go
// terms: the trap frame layout, scause-based fault classification, and the
// dispatch fabric that routes a trapped hart to the syscall, interrupt, or
// fatal-exception path (spec.md §4.5). gopher-os's kernel/irq plays the same
// role for amd64 (a Regs/Frame register snapshot plus a registration table
// of handlers keyed by exception number, see handler_amd64.go and
// interrupt_amd64.go); this package keeps that registration-table shape but
// replaces the IDT-indexed exception numbers with RISC-V's single scause
// value, since Sv39 has one trap vector rather than per-vector gates.
package trap

// Frame is the register snapshot saved by the trap-vector entry stub before
// calling into Go (spec.md §4.5, §3's task.trap_frame). It lives in a
// dedicated page owned by the task so that trap entry can locate it through
// a scratch CSR without touching any stack.
//
// Layout mirrors the RISC-V calling convention: ra/sp/gp/tp, the temporaries
// t0-t6, the saved registers s0-s11, and the argument registers a0-a7. x0
// (the hardwired zero register) is never saved.
type Frame struct {
	RA, SP, GP, TP                          uint64
	T0, T1, T2                              uint64
	S0, S1                                  uint64
	A0, A1, A2, A3, A4, A5, A6, A7           uint64
	S2, S3, S4, S5, S6, S7, S8, S9, S10, S11 uint64
	T3, T4, T5, T6                           uint64

	// SEPC is the user program counter at the moment of the trap; trap
	// return writes it back to sepc before sret.
	SEPC uint64
	// SSTATUS is the saved supervisor status register (holds the
	// previous privilege level and interrupt-enable state).
	SSTATUS uint64

	// KernelSP is the kernel stack pointer to switch to on entry, and
	// KernelSATP is the kernel page table's satp value, both filled in
	// at task-creation time so the trap-vector stub needs no lookups.
	KernelSP   uint64
	KernelSATP uint64
	// KernelTP is the per-CPU pointer to restore into tp for the
	// duration of kernel execution; trap entry saves the user's tp into
	// TP above and loads this value instead (spec.md §4.3's CPU-identity
	// contract).
	KernelTP uint64
	// KernelTrapHandler is the address of Dispatch's entry trampoline;
	// stored here rather than hard-coded so the assembly stub never
	// needs a symbol reference.
	KernelTrapHandler uint64
}

// Scause is the raw content of the scause CSR: the top bit marks an
// interrupt rather than an exception, and the remaining bits are the
// interrupt/exception code.
type Scause uint64

// IsInterrupt reports whether the trap was an asynchronous interrupt rather
// than a synchronous exception.
func (c Scause) IsInterrupt() bool {
	return c&(1<<63) != 0
}

// Code extracts the interrupt/exception code, masking off the interrupt bit.
func (c Scause) Code() uint64 {
	return uint64(c &^ (1 << 63))
}

// Interrupt codes (scause bit 63 set).
const (
	InterruptSupervisorSoftware = 1
	InterruptSupervisorTimer    = 5
	InterruptSupervisorExternal = 9
)

// Exception codes (scause bit 63 clear).
const (
	ExceptionInstructionAddressMisaligned = 0
	ExceptionInstructionAccessFault       = 1
	ExceptionIllegalInstruction           = 2
	ExceptionBreakpoint                   = 3
	ExceptionLoadAddressMisaligned        = 4
	ExceptionLoadAccessFault              = 5
	ExceptionStoreAMOAddressMisaligned    = 6
	ExceptionStoreAMOAccessFault          = 7
	ExceptionEnvironmentCallFromUMode     = 8
	ExceptionEnvironmentCallFromSMode     = 9
	ExceptionInstructionPageFault         = 12
	ExceptionLoadPageFault                = 13
	ExceptionStoreAMOPageFault            = 15
)
