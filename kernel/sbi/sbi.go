// Package sbi wraps the Supervisor Binary Interface calls the kernel needs
// from M-mode firmware (spec.md §6): console output, shutdown, timer,
// inter-processor interrupts and hart start/stop (HSM). gopher-os has no
// equivalent (x86 talks to real hardware registers and the BIOS/UEFI
// directly), so this package is grounded on the teacher's general style for
// wrapping a privileged call behind a small typed Go function -- each
// extension call is a package-level function-variable, following the same
// "mocked by tests, inlined by the compiler" idiom used throughout this
// kernel (kernel/sync.IRQControl, kernel/ipi.SendFn) -- rather than on any
// single teacher file, since the underlying mechanism (an ECALL trap to
// M-mode) has no x86 analogue in the retrieved examples.
package sbi

// Extension IDs for the SBI calls this kernel relies on.
const (
	extBase   = 0x10
	extTimer  = 0x54494d45 // "TIME"
	extIPI    = 0x735049   // "sPI"
	extHSM    = 0x48534d   // "HSM"
	extLegacy = 0x00       // legacy console/shutdown extensions, EID == FID
)

// Legacy SBI function IDs (pre-SBI-0.2, still the most portable console and
// shutdown path across emulators).
const (
	legacyConsolePutChar = 1
	legacyConsoleGetChar = 2
	legacyShutdown       = 8
)

// noInputSentinel is the value the legacy console-getchar call returns in
// errorCode when no byte is waiting, per the SBI legacy extension's
// convention of returning -1 cast to the call's unsigned return width.
const noInputSentinel = ^uintptr(0)

// HSM function IDs.
const (
	hsmHartStart = 0
	hsmHartStop  = 1
)

// call issues an ecall to M-mode firmware with the given extension/function
// ID and up to three arguments, returning (error, value) per the SBI calling
// convention. Production builds implement this with the actual ecall
// instruction; tests replace it with a recording/simulating stub since no
// real firmware is present off hardware.
var call = func(ext, fid uintptr, a0, a1, a2 uintptr) (errorCode, value uintptr) {
	return 0, 0
}

// ConsolePutChar writes one byte to the firmware console. Installed as
// kernel/kfmt/early's sink during boot.
func ConsolePutChar(b byte) {
	call(extLegacy, legacyConsolePutChar, uintptr(b), 0, 0)
}

// ConsoleGetChar reads one byte from the firmware console, reporting false
// if none is waiting. Backs the stdio console device kernel/boot wires up
// for /init's fd 0.
func ConsoleGetChar() (byte, bool) {
	errCode, value := call(extLegacy, legacyConsoleGetChar, 0, 0, 0)
	if errCode == noInputSentinel {
		return 0, false
	}
	return byte(value), true
}

// Shutdown powers the machine off. Never returns on real firmware.
func Shutdown() {
	call(extLegacy, legacyShutdown, 0, 0, 0)
}

// SetTimer arms the next timer interrupt for absolute time value (in the
// platform's timebase, typically cycles since boot).
func SetTimer(value uint64) {
	call(extTimer, 0, uintptr(value), 0, 0)
}

// SendIPI asks firmware to raise a supervisor software interrupt on every
// hart set in hartMask (hart 0 is bit 0). Installed as kernel/ipi.SendFn.
func SendIPI(hartMask uint64) {
	call(extIPI, 0, uintptr(hartMask), 0, 0)
}

// HartStart asks firmware to start hartID executing at startAddr (a
// physical address) with opaque passed through as that hart's first general
// argument. Used during secondary-hart bring-up (spec.md §4.5).
func HartStart(hartID uint64, startAddr uintptr, opaque uintptr) error {
	errCode, _ := call(extHSM, hsmHartStart, uintptr(hartID), startAddr, opaque)
	if errCode != 0 {
		return Error(errCode)
	}
	return nil
}

// HartStop asks firmware to stop the calling hart. Used by the IPI Stop
// kind's handler during emergency shutdown.
func HartStop() {
	call(extHSM, hsmHartStop, 0, 0, 0)
}

// Error wraps an SBI error code (a small negative-style integer per the SBI
// spec, reported here as its unsigned bit pattern) so callers can propagate
// it through the kernel's ordinary error interface.
type Error uintptr

func (e Error) Error() string { return "sbi: firmware call failed" }
