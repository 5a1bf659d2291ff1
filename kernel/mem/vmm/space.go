package vmm

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/mem/addr"
	"rvos/kernel/mem/pmm"
)

// MaxUserHeapSize bounds how far brk may extend a user heap area (spec.md
// §4.4's brk error case).
const MaxUserHeapSize = 256 << 20

// MemorySpace is one page table plus the set of non-overlapping MappingAreas
// it backs, plus an optional user heap-top cursor (spec.md §4.4). Invariant:
// no two areas intersect; the root page-table frame lives for the lifetime
// of the MemorySpace.
type MemorySpace struct {
	Table   PageTable
	areas   []MappingArea
	frames  *pmm.Allocator
	heapTop addr.VirtPage
	hasHeap bool
}

// KernelSpace is the single MemorySpace shared by every hart in supervisor
// mode, built once at boot (spec.md §4.6).
var KernelSpace MemorySpace

// Init allocates the root table and readies an empty area list.
func (s *MemorySpace) Init(frames *pmm.Allocator) *kerrors.Error {
	s.frames = frames
	return s.Table.Init(frames)
}

// findArea returns the area containing vpn, or nil.
func (s *MemorySpace) findArea(vpn addr.VirtPage) *MappingArea {
	for i := range s.areas {
		if s.areas[i].VPNRange.Contains(vpn) {
			return &s.areas[i]
		}
	}
	return nil
}

// InsertArea adds area to the space, mapping every page it already owns
// (Direct areas map immediately; Framed areas typically start empty and are
// populated page-by-page via MapAnonymousPage). Returns ErrAlreadyMapped if
// area overlaps an existing one.
func (s *MemorySpace) InsertArea(area MappingArea) *kerrors.Error {
	for _, existing := range s.areas {
		if existing.VPNRange.Overlaps(area.VPNRange) {
			return kerrors.ErrAlreadyMapped
		}
	}
	s.areas = append(s.areas, area)
	inserted := &s.areas[len(s.areas)-1]

	if inserted.MapType == Direct {
		for vpn := inserted.VPNRange.Start; vpn < inserted.VPNRange.End; vpn++ {
			if err := s.Table.Map(vpn, inserted.ppnFor(vpn), inserted.Permission); err != nil {
				return err
			}
		}
	}
	return nil
}

// MapAnonymousPage allocates a fresh zeroed frame and maps it at vpn inside
// the Framed area that owns vpn.
func (s *MemorySpace) MapAnonymousPage(vpn addr.VirtPage) *kerrors.Error {
	area := s.findArea(vpn)
	if area == nil || area.MapType != Framed {
		return kerrors.ErrNotMapped
	}
	tr, err := s.frames.AllocOne()
	if err != nil {
		return err
	}
	zero(tr.PFN())
	if err := s.Table.Map(vpn, tr.PFN(), area.Permission); err != nil {
		tr.Free()
		return err
	}
	area.Frames[vpn] = pmmFrame{ppn: tr.PFN()}
	return nil
}

// RemoveArea unmaps and frees every page of the area starting at vpnStart,
// per spec.md §4.6's munmap/area-teardown semantics.
func (s *MemorySpace) RemoveArea(vpnStart addr.VirtPage) *kerrors.Error {
	for i := range s.areas {
		if s.areas[i].VPNRange.Start != vpnStart {
			continue
		}
		area := &s.areas[i]
		for vpn := area.VPNRange.Start; vpn < area.VPNRange.End; vpn++ {
			if area.MapType == Framed {
				if f, ok := area.Frames[vpn]; ok {
					if err := s.Table.Unmap(vpn); err != nil {
						return err
					}
					s.frames.FreeFrame(f.ppn)
					delete(area.Frames, vpn)
					continue
				}
			} else {
				if err := s.Table.Unmap(vpn); err != nil {
					return err
				}
			}
		}
		s.areas = append(s.areas[:i], s.areas[i+1:]...)
		return nil
	}
	return kerrors.ErrNotMapped
}

// SetHeap designates which existing area is the user heap and records its
// current end as the brk cursor.
func (s *MemorySpace) SetHeap(start addr.VirtPage) {
	s.heapTop = start
	s.hasHeap = true
}

// HeapArea returns the area tagged UserHeap, or nil if SetHeap was never
// called on this space.
func (s *MemorySpace) HeapArea() *MappingArea {
	if !s.hasHeap {
		return nil
	}
	for i := range s.areas {
		if s.areas[i].AreaType == UserHeap {
			return &s.areas[i]
		}
	}
	return nil
}

// NextAnonymousRange finds length free pages above every existing area, for
// an mmap call that did not request a fixed address. The baseline allocator
// is a simple bump past the highest mapped page; it never reuses space
// freed by munmap (spec.md leaves mmap address-space reuse an open
// question, decided here in favor of simplicity over fragmentation).
func (s *MemorySpace) NextAnonymousRange(length uint64) (addr.VirtPage, *kerrors.Error) {
	var top addr.VirtPage
	for _, area := range s.areas {
		if area.VPNRange.End > top {
			top = area.VPNRange.End
		}
	}
	if top == 0 {
		top = addr.VirtPage(1) // never start an anonymous mapping at VA 0
	}
	return top, nil
}

// UpdateFlags changes the permission of every page in [start, start+length)
// to perm, across however many areas that range spans (spec.md §4.9's
// mprotect). The owning area's own Permission is updated too so a later
// MapAnonymousPage (e.g. a page fault filling in a lazily-mapped page) uses
// the new permission.
func (s *MemorySpace) UpdateFlags(start addr.VirtPage, length addr.VirtPage, perm Permission) *kerrors.Error {
	for vpn := start; vpn < start+length; vpn++ {
		area := s.findArea(vpn)
		if area == nil {
			return kerrors.ErrNotMapped
		}
		if err := s.Table.UpdateFlags(vpn, perm); err != nil {
			return err
		}
		area.Permission = perm
	}
	return nil
}

// Brk implements spec.md §4.4's brk(new_end): round up to a page; extend by
// mapping fresh anonymous frames if new_end is above the current heap top,
// or unmap and free the trimmed pages if below. Returns the new heap-top
// VPN, or an error if the requested size would exceed MaxUserHeapSize.
func (s *MemorySpace) Brk(area *MappingArea, newEnd addr.VirtAddr) (addr.VirtPage, *kerrors.Error) {
	if !s.hasHeap {
		return 0, kerrors.ErrNotMapped
	}
	newTop := newEnd.CeilPage()
	if uint64(newTop-area.VPNRange.Start)*addr.PageSize > MaxUserHeapSize {
		return 0, kerrors.ErrOutOfMemory
	}

	switch {
	case newTop > s.heapTop:
		for vpn := s.heapTop; vpn < newTop; vpn++ {
			area.VPNRange.End = vpn + 1
			if err := s.MapAnonymousPage(vpn); err != nil {
				return 0, err
			}
		}
	case newTop < s.heapTop:
		for vpn := newTop; vpn < s.heapTop; vpn++ {
			if f, ok := area.Frames[vpn]; ok {
				if err := s.Table.Unmap(vpn); err != nil {
					return 0, err
				}
				s.frames.FreeFrame(f.ppn)
				delete(area.Frames, vpn)
			}
		}
		area.VPNRange.End = newTop
	}
	s.heapTop = newTop
	return newTop, nil
}

// Fork deep-copies every Framed area (fresh frames, byte-for-byte content)
// and recreates the mapping for every Direct area without copying frames
// (spec.md §4.4's fork semantics: Direct areas -- principally the kernel
// mapping inherited by every user space -- are shared read-only physical
// memory, so only the mapping need be recreated).
func (s *MemorySpace) Fork(dst *MemorySpace) *kerrors.Error {
	if err := dst.Init(s.frames); err != nil {
		return err
	}
	for _, area := range s.areas {
		switch area.MapType {
		case Direct:
			if err := dst.InsertArea(area); err != nil {
				return err
			}
		case Framed:
			copy := NewFramedArea(area.VPNRange, area.Permission, area.AreaType)
			if err := dst.InsertArea(copy); err != nil {
				return err
			}
			dstArea := &dst.areas[len(dst.areas)-1]
			for vpn, f := range area.Frames {
				if err := dst.MapAnonymousPage(vpn); err != nil {
					return err
				}
				*DirectMapBytes(dstArea.Frames[vpn].ppn) = *DirectMapBytes(f.ppn)
			}
		}
	}
	if s.hasHeap {
		dst.heapTop = s.heapTop
		dst.hasHeap = true
	}
	return nil
}

// Teardown frees every Framed area's frames and the page table's own
// interior nodes, for use on task exit (spec.md §4.6: "a Zombie's resources
// are freed except for the entry the parent reaps via wait").
func (s *MemorySpace) Teardown() {
	for _, area := range s.areas {
		if area.MapType == Framed {
			for _, f := range area.Frames {
				s.frames.FreeFrame(f.ppn)
			}
		}
	}
	s.areas = nil
	s.Table.Teardown()
}

// Translate resolves va through this space's own page table.
func (s *MemorySpace) Translate(va addr.VirtAddr) (addr.PhysAddr, *kerrors.Error) {
	return s.Table.Translate(va)
}
