package signal

import (
	"unsafe"

	"rvos/kernel/trap"
)

// TrampolineVA is the fixed user-space virtual address every task's
// sigreturn trampoline is mapped at (spec.md §4.7's "handler resumes into a
// small fixed trampoline that performs the sigreturn syscall"). A single
// well-known address rather than one computed per-binary: no ELF image
// legitimately maps this page (it sits below the fixed user stack built by
// kernel/syscall's exec path, with eight unmapped pages between the two), so
// it is always free to claim.
const TrampolineVA = 0x0000_003f_fffe_e000

// trampolineCode is the entire sigreturn trampoline, two hand-encoded
// RISC-V instructions: `addi a7, x0, 139` (139 is SysRtSigreturn) followed
// by `ecall`. No assembler exists anywhere in this build (the same gap
// documented in kernel/boot/arch_riscv64.go), so the trampoline is written
// as the two instructions' literal machine code rather than assembled from
// source -- legitimate since mapping a page and writing bytes into it is
// ordinary Go, not inline assembly.
var trampolineCode = []byte{
	0x93, 0x08, 0xb0, 0x08, // addi a7, x0, 139
	0x73, 0x00, 0x00, 0x00, // ecall
}

// TrampolineCode returns the bytes kernel/syscall's exec path writes into
// the Trampoline area of every fresh MemorySpace.
func TrampolineCode() []byte { return trampolineCode }

// savedFrame is the subset of trap.Frame that crosses into user memory when
// a handler is invoked: every caller-visible register plus sepc/sstatus.
// The four Kernel* fields of trap.Frame are deliberately excluded -- they
// are per-task constants fixed at task creation (kernel stack pointer,
// kernel satp, the per-CPU pointer, the trap entry point), and a signal
// frame sitting in user-writable memory must never be able to forge them
// back into the kernel's own trap frame on sigreturn.
type savedFrame struct {
	RA, SP, GP, TP                          uint64
	T0, T1, T2                              uint64
	S0, S1                                  uint64
	A0, A1, A2, A3, A4, A5, A6, A7           uint64
	S2, S3, S4, S5, S6, S7, S8, S9, S10, S11 uint64
	T3, T4, T5, T6                           uint64
	SEPC, SSTATUS                            uint64
}

// SavedFrameSize is how many bytes one saved frame occupies on the user
// stack.
const SavedFrameSize = int(unsafe.Sizeof(savedFrame{}))

func snapshot(f *trap.Frame) savedFrame {
	return savedFrame{
		RA: f.RA, SP: f.SP, GP: f.GP, TP: f.TP,
		T0: f.T0, T1: f.T1, T2: f.T2,
		S0: f.S0, S1: f.S1,
		A0: f.A0, A1: f.A1, A2: f.A2, A3: f.A3, A4: f.A4, A5: f.A5, A6: f.A6, A7: f.A7,
		S2: f.S2, S3: f.S3, S4: f.S4, S5: f.S5, S6: f.S6, S7: f.S7, S8: f.S8, S9: f.S9, S10: f.S10, S11: f.S11,
		T3: f.T3, T4: f.T4, T5: f.T5, T6: f.T6,
		SEPC: f.SEPC, SSTATUS: f.SSTATUS,
	}
}

func (s savedFrame) restoreInto(f *trap.Frame) {
	f.RA, f.SP, f.GP, f.TP = s.RA, s.SP, s.GP, s.TP
	f.T0, f.T1, f.T2 = s.T0, s.T1, s.T2
	f.S0, f.S1 = s.S0, s.S1
	f.A0, f.A1, f.A2, f.A3, f.A4, f.A5, f.A6, f.A7 = s.A0, s.A1, s.A2, s.A3, s.A4, s.A5, s.A6, s.A7
	f.S2, f.S3, f.S4, f.S5, f.S6, f.S7, f.S8, f.S9, f.S10, f.S11 = s.S2, s.S3, s.S4, s.S5, s.S6, s.S7, s.S8, s.S9, s.S10, s.S11
	f.T3, f.T4, f.T5, f.T6 = s.T3, s.T4, s.T5, s.T6
	f.SEPC, f.SSTATUS = s.SEPC, s.SSTATUS
}

func bytesOf(s *savedFrame) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(s)), unsafe.Sizeof(*s))
}

// MarshalFrame serializes f's user-visible registers for placement on the
// user stack ahead of a handler invocation.
func MarshalFrame(f *trap.Frame) []byte {
	s := snapshot(f)
	return append([]byte(nil), bytesOf(&s)...)
}

// UnmarshalFrame restores f's user-visible registers from buf, as saved by
// MarshalFrame. buf shorter than SavedFrameSize is a no-op (a forged or
// truncated sigreturn leaves f alone rather than partially applying it).
func UnmarshalFrame(buf []byte, f *trap.Frame) {
	if len(buf) < SavedFrameSize {
		return
	}
	var s savedFrame
	copy(bytesOf(&s), buf)
	s.restoreInto(f)
}
