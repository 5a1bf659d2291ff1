package syscall

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/mem/addr"
	"rvos/kernel/mem/vmm"
	"rvos/kernel/task"
	"rvos/kernel/trap"
)

// mmap prot/flags bits this kernel recognizes (spec.md §4.9: "mmap
// (anonymous)" only -- file-backed mappings are out of scope).
const (
	protRead  = 0x1
	protWrite = 0x2
	protExec  = 0x4

	mapAnonymous = 0x20
	mapFixed     = 0x10
)

func sysBrk(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	area := t.MemorySpace.HeapArea()
	if area == nil {
		return 0, kerrors.ErrNotMapped
	}
	if f.A0 == 0 {
		return uint64(area.VPNRange.End.Addr()), nil
	}
	top, err := t.MemorySpace.Brk(area, addr.VirtAddr(f.A0))
	if err != nil {
		return 0, err
	}
	return uint64(top.Addr()), nil
}

func protToPermission(prot uint64) vmm.Permission {
	perm := vmm.FlagValid | vmm.FlagUser
	if prot&protRead != 0 {
		perm |= vmm.FlagRead
	}
	if prot&protWrite != 0 {
		perm |= vmm.FlagWrite
	}
	if prot&protExec != 0 {
		perm |= vmm.FlagExec
	}
	return perm
}

func sysMmap(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	if f.A3&mapAnonymous == 0 {
		return 0, kerrors.ErrNotSupported
	}
	length := addr.VirtAddr(f.A1).CeilPage()
	var start addr.VirtPage
	if f.A3&mapFixed != 0 {
		start = addr.VirtAddr(f.A0).FloorPage()
	} else {
		var perr *kerrors.Error
		start, perr = t.MemorySpace.NextAnonymousRange(uint64(length))
		if perr != nil {
			return 0, perr
		}
	}
	area := vmm.NewFramedArea(addr.PageRange{Start: start, End: start + length}, protToPermission(f.A2), vmm.UserAnonymous)
	if err := t.MemorySpace.InsertArea(area); err != nil {
		return 0, err
	}
	for vpn := start; vpn < start+length; vpn++ {
		if err := t.MemorySpace.MapAnonymousPage(vpn); err != nil {
			return 0, err
		}
	}
	return uint64(start.Addr()), nil
}

func sysMunmap(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	start := addr.VirtAddr(f.A0).FloorPage()
	if err := t.MemorySpace.RemoveArea(start); err != nil {
		return 0, err
	}
	return 0, nil
}

func sysMprotect(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	start := addr.VirtAddr(f.A0).FloorPage()
	length := addr.VirtAddr(f.A1).CeilPage()
	if err := t.MemorySpace.UpdateFlags(start, length, protToPermission(f.A2)); err != nil {
		return 0, err
	}
	return 0, nil
}
