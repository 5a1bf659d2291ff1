package vmm

import (
	"unsafe"

	"rvos/kernel/mem/addr"
)

// directMapOffset is added to a physical address to reach its direct-mapped
// virtual alias, installed once by SetDirectMapOffset during boot. Zero
// means "not installed yet" -- DirectMap/DirectMapBytes keep their panicking
// defaults until then, same as gopher-os's nextAddrFn/flushTLBEntryFn hooks
// panic or no-op until kernel/hal wires real ones in.
var directMapOffset addr.VirtAddr

// SetDirectMapOffset installs DirectMap and DirectMapBytes as plain pointer
// arithmetic against offset: physical page p's direct-mapped address is
// offset + p.Addr(). kernel/boot calls this once, after it has chosen an
// offset and mapped a Direct area covering all of physical memory at that
// offset in KernelSpace, following gopher-os's Frame.Address() pattern of
// treating a physical page number as a uintptr offset and reinterpreting it
// via unsafe.Pointer (kernel/mem/pmm/frame.go, kernel/mem/vmm/pdt.go) --
// adapted here to add the direct-map base instead of assuming identity.
func SetDirectMapOffset(offset addr.VirtAddr) {
	directMapOffset = offset
	DirectMap = func(p addr.PhysPage) *[512]pte {
		va := uintptr(offset) + uintptr(p.Addr())
		return (*[512]pte)(unsafe.Pointer(va))
	}
	DirectMapBytes = func(p addr.PhysPage) *[addr.PageSize]byte {
		va := uintptr(offset) + uintptr(p.Addr())
		return (*[addr.PageSize]byte)(unsafe.Pointer(va))
	}
}

// DirectMapOffset returns the offset installed by SetDirectMapOffset, for
// callers (kernel/boot's own area construction, kernel/elf's ELF loader)
// that need to translate a physical page to its direct-mapped virtual
// address directly rather than through a byte/PTE view.
func DirectMapOffset() addr.VirtAddr { return directMapOffset }

// DirectMapAddr returns p's direct-mapped virtual address.
func DirectMapAddr(p addr.PhysPage) addr.VirtAddr {
	return directMapOffset + addr.VirtAddr(p.Addr())
}
