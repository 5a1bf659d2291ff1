// Package vmm implements paging and address-space management (component C4,
// spec.md §4.4): SV39 three-level page tables, mapping areas, and the
// MemorySpace that owns them. It follows gopher-os's kernel/mem/vmm walk/
// Map/Unmap shape (a callback-driven table walk, frame allocation on demand
// for missing interior nodes, function-var hooks for anything that would
// otherwise need inline assembly) but replaces x86's 4-level recursive
// self-mapping with SV39's 3-level scheme, addressed through the kernel's
// direct map of all physical memory instead of a recursive virtual mapping
// trick -- gopher-os needs recursive mapping because accessing a page
// table's bytes otherwise requires a fresh virtual mapping, but spec.md
// §4.6 already direct-maps all of physical memory at boot, so a page table's
// bytes are simply read through DirectMap(pte's own frame) with no
// transient mapping required.
package vmm

import (
	"rvos/kernel/mem/addr"
)

// PTEFlag is a page-table-entry permission/attribute bit. Bit positions
// follow the RISC-V Sv39 PTE layout.
type PTEFlag uint64

const (
	FlagValid PTEFlag = 1 << iota
	FlagRead
	FlagWrite
	FlagExec
	FlagUser
	FlagGlobal
	FlagAccessed
	FlagDirty
)

// ppnShift is the bit offset of the PPN field within an Sv39 PTE.
const ppnShift = 10

// pte is one page-table-entry word.
type pte uint64

func (e pte) hasFlags(f PTEFlag) bool { return uint64(e)&uint64(f) == uint64(f) }
func (e *pte) setFlags(f PTEFlag)     { *e |= pte(f) }
func (e *pte) clearFlags(f PTEFlag)   { *e &^= pte(f) }

// isLeaf reports whether e is a leaf PTE (maps a page) rather than a pointer
// to the next-level table. A pointer-only entry has none of R/W/X set; a
// leaf has at least one.
func (e pte) isLeaf() bool {
	return uint64(e)&uint64(FlagRead|FlagWrite|FlagExec) != 0
}

func (e pte) ppn() addr.PhysPage { return addr.PhysPage(uint64(e) >> ppnShift) }

func (e *pte) setPPN(p addr.PhysPage) {
	*e = (*e &^ (pte(^uint64(0) &^ ((1 << ppnShift) - 1)))) | pte(uint64(p)<<ppnShift)
}

// Permission is the subset of PTEFlag an area's mapping exposes to
// Map/UpdateFlags callers (Read, Write, Exec, User, Global); Valid, Accessed
// and Dirty are managed internally by the page table itself.
type Permission = PTEFlag
