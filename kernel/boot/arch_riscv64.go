package boot

import "rvos/kernel/task"

// The functions below are the architecture primitives this kernel's Go code
// cannot express on its own: CSR reads/writes and the callee-saved register
// context switch. They are declared without a body, the same convention
// gopher-os uses for its own amd64 register glue (kernel/cpu/cpu_amd64.go
// declares EnableInterrupts/DisableInterrupts/Halt/FlushTLBEntry/SwitchPDT/
// ActivePDT the same way) -- each such declaration is paired with a
// hand-written assembly file of the same build-tagged name, which this
// retrieval's copy of gopher-os does not carry either (the multiboot and
// rt0 assembly lives outside the filtered Go source set). kernel/boot wires
// each one into the function-variable hook its target package declared.

// readSCause reads the scause CSR.
func readSCause() uint64

// readSTval reads the stval CSR (the faulting address for an access/page
// fault, the offending instruction for an illegal-instruction trap).
func readSTval() uint64

// readTP reads the tp register, which every hart keeps pointed at its own
// percpu.CpuState for the duration of kernel execution.
func readTP() uintptr

// writeTP sets the tp register. Called once per hart during bring-up to
// point it at that hart's percpu.CpuState slot.
func writeTP(v uintptr)

// readTime reads the time CSR (cycles since boot in the platform's
// timebase), the base AckTimer adds its tick interval to when re-arming the
// next timer interrupt via sbi.SetTimer.
func readTime() uint64

// writeSATP installs a new page-table root (physical page number, mode
// bits already set) and fences the old translations.
func writeSATP(satp uint64)

// sfenceVMA flushes the TLB entry for va on the calling hart. va == 0
// flushes the entire local TLB.
func sfenceVMA(va uintptr)

// interruptsEnabled reports the sstatus.SIE bit.
func interruptsEnabled() bool

// enableInterrupts sets sstatus.SIE.
func enableInterrupts()

// disableInterrupts clears sstatus.SIE.
func disableInterrupts()

// wfi halts the hart until the next interrupt (used by the idle loop).
func wfi()

// contextSwitch saves prev's callee-saved registers and loads next's,
// returning into whatever ra next last saved. Installed as task.SwitchFn.
func contextSwitch(prev, next *task.Context)
