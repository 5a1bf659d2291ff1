package vmm

import "rvos/kernel/mem/addr"

// Translate resolves va against the kernel's own address space. User-space
// lookups go through that task's MemorySpace.Translate instead.
func Translate(va addr.VirtAddr) (addr.PhysAddr, error) {
	pa, err := KernelSpace.Table.Translate(va)
	if err != nil {
		return 0, err
	}
	return pa, nil
}
