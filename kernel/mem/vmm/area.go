package vmm

import "rvos/kernel/mem/addr"

// AreaType classifies what a MappingArea backs, per spec.md §4.4.
type AreaType uint8

const (
	KernelText AreaType = iota
	KernelData
	KernelBSS
	KernelHeap
	UserText
	UserData
	UserHeap
	UserStack
	UserAnonymous
	Trampoline
	TrapContext
)

// MapType distinguishes the two ways a MappingArea backs its virtual pages.
type MapType uint8

const (
	// Direct areas map each VPN straight to the numerically identical PPN
	// plus a fixed offset (the kernel's direct map of physical memory).
	// No frame is owned by the area.
	Direct MapType = iota
	// Framed areas own one allocated frame per mapped VPN.
	Framed
)

// MappingArea is a contiguous, non-overlapping range of virtual pages with
// uniform permissions and backing policy (spec.md §4.4). Invariant: every
// page in VPNRange has either a live mapping in the owning table or none --
// partial mappings never occur.
type MappingArea struct {
	VPNRange   addr.PageRange
	Permission Permission
	MapType    MapType
	AreaType   AreaType
	DirectBase addr.PhysPage         // first physical page, for Direct areas
	Frames     map[addr.VirtPage]pmmFrame
}

// pmmFrame is the frame-ownership record for one Framed page: the owning
// MappingArea is the sole owner, matching spec.md §4.4's frame-ownership
// invariant (an interior node's frame belongs to the table; a leaf's frame
// belongs to exactly one area, or to nothing).
type pmmFrame struct {
	ppn addr.PhysPage
}

// NewDirectArea creates an area that maps vpnRange straight onto
// [directBase, directBase+len) with no frame ownership.
func NewDirectArea(vpnRange addr.PageRange, directBase addr.PhysPage, perm Permission, kind AreaType) MappingArea {
	return MappingArea{
		VPNRange:   vpnRange,
		Permission: perm,
		MapType:    Direct,
		AreaType:   kind,
		DirectBase: directBase,
	}
}

// NewFramedArea creates an empty Framed area awaiting pages to be mapped
// into it one at a time as frames are allocated.
func NewFramedArea(vpnRange addr.PageRange, perm Permission, kind AreaType) MappingArea {
	return MappingArea{
		VPNRange:   vpnRange,
		Permission: perm,
		MapType:    Framed,
		AreaType:   kind,
		Frames:     make(map[addr.VirtPage]pmmFrame),
	}
}

// ppnFor returns the physical page a Direct area maps vpn to.
func (a *MappingArea) ppnFor(vpn addr.VirtPage) addr.PhysPage {
	offset := uint64(vpn - a.VPNRange.Start)
	return a.DirectBase.Add(offset)
}
