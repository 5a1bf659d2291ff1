package vmm

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/mem/addr"
	"rvos/kernel/mem/pmm"
)

// levels is the number of Sv39 page-table levels.
const levels = 3

// vpnShifts gives, for each level (0 = root), the bit shift of that level's
// 9-bit index within a virtual page number.
var vpnShifts = [levels]uint{18, 9, 0}

func vpnIndex(vpn addr.VirtPage, level int) uint64 {
	return (uint64(vpn) >> vpnShifts[level]) & 0x1FF
}

// DirectMap returns a byte-addressable view of the 512 PTE slots stored in
// the physical page p. Production code installs the kernel's direct-map
// offset arithmetic during boot; tests install a function backed by a plain
// Go map simulating physical memory, since no MMU is present off real
// hardware.
var DirectMap = func(p addr.PhysPage) *[512]pte {
	panic("vmm: DirectMap not installed")
}

// DirectMapBytes is DirectMap's raw-byte twin, used wherever a page is
// addressed as content rather than as a table of PTEs (zeroing a fresh
// anonymous page, copying a Framed page's bytes during fork). Both views
// address the same physical page and must be installed together.
var DirectMapBytes = func(p addr.PhysPage) *[addr.PageSize]byte {
	panic("vmm: DirectMapBytes not installed")
}

// PageTable is one Sv39 three-level page table. It owns the physical frames
// backing its own interior nodes; leaf frames are owned by the MappingArea
// that installed them (Framed) or by nothing (Direct), per spec.md §4.4.
type PageTable struct {
	root   addr.PhysPage
	frames *pmm.Allocator
	owned  []pmm.Tracker // interior-node frames, freed when the table is torn down
}

// Init allocates the root table frame from frames.
func (t *PageTable) Init(frames *pmm.Allocator) *kerrors.Error {
	t.frames = frames
	tr, err := frames.AllocOne()
	if err != nil {
		return err
	}
	t.root = tr.PFN()
	t.owned = append(t.owned, tr)
	clearTable(t.root)
	return nil
}

// Root returns the physical page backing this table's root node (the value
// installed in satp on activation).
func (t *PageTable) Root() addr.PhysPage { return t.root }

func clearTable(p addr.PhysPage) {
	tbl := DirectMap(p)
	for i := range tbl {
		tbl[i] = 0
	}
}

// zero clears a page addressed as raw content rather than as a PTE table.
func zero(p addr.PhysPage) {
	b := DirectMapBytes(p)
	for i := range b {
		b[i] = 0
	}
}

// walk locates the leaf PTE for vpn, allocating interior nodes along the way
// when create is true. Returns the leaf slot pointer, or nil if the path
// does not exist and create is false.
func (t *PageTable) walk(vpn addr.VirtPage, create bool) (*pte, *kerrors.Error) {
	node := t.root
	for level := 0; level < levels; level++ {
		tbl := DirectMap(node)
		idx := vpnIndex(vpn, level)
		entry := &tbl[idx]

		if level == levels-1 {
			return entry, nil
		}

		if !entry.hasFlags(FlagValid) {
			if !create {
				return nil, nil
			}
			tr, err := t.frames.AllocOne()
			if err != nil {
				return nil, err
			}
			t.owned = append(t.owned, tr)
			clearTable(tr.PFN())
			entry.setPPN(tr.PFN())
			entry.setFlags(FlagValid)
		} else if entry.isLeaf() {
			return nil, kerrors.ErrInvalidPageSize // a huge page sits where a table was expected
		}
		node = entry.ppn()
	}
	panic("unreachable")
}

// Map installs a mapping from vpn to ppn with the given permission flags.
// Returns ErrAlreadyMapped if vpn already has a valid leaf entry.
func (t *PageTable) Map(vpn addr.VirtPage, ppn addr.PhysPage, perm Permission) *kerrors.Error {
	leaf, err := t.walk(vpn, true)
	if err != nil {
		return err
	}
	if leaf.hasFlags(FlagValid) {
		return kerrors.ErrAlreadyMapped
	}
	*leaf = 0
	leaf.setPPN(ppn)
	leaf.setFlags(FlagValid | FlagAccessed | FlagDirty | perm)
	FlushAll(vpn)
	return nil
}

// Unmap removes vpn's mapping. Returns ErrNotMapped if it has none.
func (t *PageTable) Unmap(vpn addr.VirtPage) *kerrors.Error {
	leaf, err := t.walk(vpn, false)
	if err != nil {
		return err
	}
	if leaf == nil || !leaf.hasFlags(FlagValid) {
		return kerrors.ErrNotMapped
	}
	*leaf = 0
	FlushAll(vpn)
	return nil
}

// UpdateFlags replaces vpn's permission bits in place, leaving its target
// PPN untouched. Returns ErrNotMapped if vpn has no mapping.
func (t *PageTable) UpdateFlags(vpn addr.VirtPage, perm Permission) *kerrors.Error {
	leaf, err := t.walk(vpn, false)
	if err != nil {
		return err
	}
	if leaf == nil || !leaf.hasFlags(FlagValid) {
		return kerrors.ErrNotMapped
	}
	leaf.clearFlags(FlagRead | FlagWrite | FlagExec | FlagUser | FlagGlobal)
	leaf.setFlags(perm)
	FlushAll(vpn)
	return nil
}

// WalkResult is the outcome of a successful Walk.
type WalkResult struct {
	PPN   addr.PhysPage
	Perm  Permission
	Level int
}

// Walk returns the current mapping for vpn without modifying the table.
// Returns ErrNotMapped if vpn has no leaf entry.
func (t *PageTable) Walk(vpn addr.VirtPage) (WalkResult, *kerrors.Error) {
	leaf, err := t.walk(vpn, false)
	if err != nil {
		return WalkResult{}, err
	}
	if leaf == nil || !leaf.hasFlags(FlagValid) {
		return WalkResult{}, kerrors.ErrNotMapped
	}
	return WalkResult{
		PPN:  leaf.ppn(),
		Perm: Permission(uint64(*leaf) & uint64(FlagRead|FlagWrite|FlagExec|FlagUser|FlagGlobal)),
	}, nil
}

// Translate resolves a full virtual address to its physical address.
func (t *PageTable) Translate(va addr.VirtAddr) (addr.PhysAddr, *kerrors.Error) {
	res, err := t.Walk(va.FloorPage())
	if err != nil {
		return 0, err
	}
	return addr.PhysAddr(uint64(res.PPN)<<addr.PageShift | va.PageOffset()), nil
}

// Teardown frees every interior-node frame this table owns. Leaf frames are
// the caller's (MappingArea's) responsibility.
func (t *PageTable) Teardown() {
	for i := range t.owned {
		t.owned[i].Free()
	}
	t.owned = nil
}
