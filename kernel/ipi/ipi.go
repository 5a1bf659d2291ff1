// Package ipi implements inter-processor interrupts (component C3 §4.3):
// each hart has an atomic bitmask of pending IPI kinds, set with Release
// ordering by the sender and drained with AcqRel ordering by the receiving
// hart's software-interrupt handler.
package ipi

import (
	"sync/atomic"

	"rvos/kernel/percpu"
)

// Kind identifies a reason a hart was interrupted by another hart.
type Kind uint32

const (
	// Reschedule asks the target hart to re-evaluate its run queue at the
	// next safe point.
	Reschedule Kind = 1 << iota
	// TLBFlush asks the target hart to flush its entire TLB (spec.md
	// §4.4's coarse, whole-TLB shootdown).
	TLBFlush
	// Stop asks the target hart to halt (used for emergency shutdown).
	Stop
)

// pending holds one atomic bitmask of Kind values per hart.
var pending percpu.Array[uint32]

// SendFn issues the firmware call that actually raises a supervisor
// software interrupt on the target hart(s). kernel/sbi installs the real
// SBI IPI-extension call; tests install a recording stub.
var SendFn = func(hartMask uint64) {}

// Send sets bit k for the target hart and asks firmware to raise a
// supervisor-software interrupt there. The bitmask store uses Release
// ordering so that any kernel state the sender wrote before Send is visible
// to the receiver once it observes the bit (paired with Handle's AcqRel
// swap).
func Send(hart uint64, k Kind) {
	SendBatch(1<<hart, k)
}

// SendBatch sets bit k for every hart in mask and issues a single firmware
// call covering all of them, mirroring spec.md §4.3's "batch-send to a CPU
// mask in one firmware call".
func SendBatch(hartMask uint64, k Kind) {
	for hart, rest := uint64(0), hartMask; rest != 0; hart, rest = hart+1, rest>>1 {
		if rest&1 == 0 {
			continue
		}
		slot := pending.GetOf(hart)
		for {
			old := atomic.LoadUint32(slot)
			if atomic.CompareAndSwapUint32(slot, old, old|uint32(k)) {
				break
			}
		}
	}
	SendFn(hartMask)
}

// Handle is invoked from the supervisor-software-interrupt trap path on the
// receiving hart. It atomically swaps the local bitmask to zero (AcqRel, to
// synchronize with every Send that targeted this hart) and dispatches each
// set bit.
func Handle(resched func(), tlbFlush func(), stop func()) {
	slot := pending.GetMut()
	bits := Kind(atomic.SwapUint32(slot, 0))

	if bits&Reschedule != 0 && resched != nil {
		resched()
	}
	if bits&TLBFlush != 0 && tlbFlush != nil {
		tlbFlush()
	}
	if bits&Stop != 0 && stop != nil {
		stop()
	}
}
