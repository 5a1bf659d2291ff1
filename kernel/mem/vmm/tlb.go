package vmm

import (
	"rvos/kernel/ipi"
	"rvos/kernel/mem/addr"
)

// LocalFlush issues an SFENCE.VMA for vpn on the calling hart only.
// Production code installs the real instruction; tests count invocations.
var LocalFlush = func(vpn addr.VirtPage) {}

// NumHarts reports how many harts are online, so FlushAll knows whether a
// broadcast IPI is needed at all. kernel/boot updates it as secondary harts
// come up.
var NumHarts = func() int { return 1 }

// OnlineHartMask returns a bitmask of every hart currently online other than
// the caller, for SendBatch.
var OnlineHartMask = func() uint64 { return 0 }

// FlushAll implements spec.md §4.4's automatic TLB shootdown: every map,
// unmap and update_flags call flushes the local TLB for vpn, then -- if more
// than one hart is online -- broadcasts a TLBFlush IPI to the rest. Remote
// harts perform a full local TLB flush rather than tracking the specific
// VPN (spec.md's documented coarse-shootdown baseline).
func FlushAll(vpn addr.VirtPage) {
	LocalFlush(vpn)
	if NumHarts() > 1 {
		ipi.SendBatch(OnlineHartMask(), ipi.TLBFlush)
	}
}
