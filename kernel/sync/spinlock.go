// Package sync provides the kernel's synchronization primitives (component
// C3): an interrupt-safe spinlock, a FIFO ticket lock, a reader/writer lock,
// a sleep lock, and a preemption counter. It plays the same role as
// gopher-os's kernel/sync package but adds the interrupt-safety and
// fairness/sleep variants spec.md §4.3 requires of a preemptive,
// multi-hart kernel.
package sync

import (
	"sync/atomic"
)

// IRQControl abstracts the architecture-specific "are interrupts enabled /
// enable / disable" operations so this package does not depend on
// kernel/trap (which in turn depends on kernel/sync for its own locking).
// kernel/boot wires the real RISC-V sstatus.SIE bit manipulation in at
// startup; tests install a software model.
var IRQControl = struct {
	Enabled func() bool
	Disable func()
	Enable  func()
}{
	Enabled: func() bool { return true },
	Disable: func() {},
	Enable:  func() {},
}

// SpinLock is a test-and-set lock that disables interrupts on the local hart
// for the duration of the critical section. This is mandatory for any lock
// that may also be taken from an interrupt handler: without disabling
// interrupts, a handler could spin forever waiting for a lock held by the
// very task it just preempted.
//
// The interrupt-enable state captured at Lock time is restored at Unlock
// time, so critical sections that take several locks nest correctly as long
// as they are released in LIFO order (the usual discipline): the outermost
// Lock call is the one that observed interrupts enabled, and its matching
// Unlock is the one that turns them back on.
type SpinLock struct {
	state uint32
	// savedIRQ records whether interrupts were enabled just before this
	// particular Lock call disabled them. It is only meaningful between a
	// successful Lock/TryLock and its matching Unlock, which the holder
	// alone observes.
	savedIRQ bool
}

// Lock blocks until the lock is acquired, disabling interrupts on this hart
// first so that an interrupt cannot re-enter the critical section.
func (l *SpinLock) Lock() {
	irqWasEnabled := IRQControl.Enabled()
	IRQControl.Disable()

	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		// busy wait; a real hart would pause/wfi-equivalent here.
	}

	l.savedIRQ = irqWasEnabled
}

// TryLock attempts to acquire the lock without blocking.
func (l *SpinLock) TryLock() bool {
	irqWasEnabled := IRQControl.Enabled()
	IRQControl.Disable()

	if !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		if irqWasEnabled {
			IRQControl.Enable()
		}
		return false
	}
	l.savedIRQ = irqWasEnabled
	return true
}

// Unlock releases the lock, restoring the interrupt-enable state observed by
// the matching Lock call.
func (l *SpinLock) Unlock() {
	restore := l.savedIRQ
	atomic.StoreUint32(&l.state, 0)
	if restore {
		IRQControl.Enable()
	}
}
