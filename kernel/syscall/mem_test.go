package syscall

import (
	"testing"

	"rvos/kernel/mem/addr"
	"rvos/kernel/mem/vmm"
	"rvos/kernel/trap"
)

func TestMmapMunmapMprotectLifecycle(t *testing.T) {
	tk := newTestTask(t)

	length := uint64(2 * addr.PageSize)
	mmapFrame := &trap.Frame{A1: length, A2: protRead | protWrite, A3: mapAnonymous}
	base, err := sysMmap(tk, mmapFrame)
	if err != nil {
		t.Fatalf("sysMmap: %v", err)
	}
	if base == 0 {
		t.Fatal("mmap should not place an anonymous mapping at address 0")
	}

	// The mapping must actually be usable: translate its first page.
	if _, terr := tk.MemorySpace.Translate(addr.VirtAddr(base)); terr != nil {
		t.Fatalf("Translate after mmap: %v", terr)
	}

	protectFrame := &trap.Frame{A0: base, A1: length, A2: protRead}
	if _, perr := sysMprotect(tk, protectFrame); perr != nil {
		t.Fatalf("sysMprotect: %v", perr)
	}

	unmapFrame := &trap.Frame{A0: base}
	if _, uerr := sysMunmap(tk, unmapFrame); uerr != nil {
		t.Fatalf("sysMunmap: %v", uerr)
	}
	if _, terr := tk.MemorySpace.Translate(addr.VirtAddr(base)); terr == nil {
		t.Fatal("address should be unmapped after munmap")
	}
}

func TestMmapRejectsNonAnonymousMapping(t *testing.T) {
	tk := newTestTask(t)
	f := &trap.Frame{A1: addr.PageSize, A2: protRead, A3: 0}
	if _, err := sysMmap(tk, f); err == nil {
		t.Fatal("mmap without MAP_ANONYMOUS should fail on this baseline")
	}
}

func TestBrkGrowsAndShrinksHeap(t *testing.T) {
	tk := newTestTask(t)
	heapStart := addr.VirtPage(0x4000)
	area := vmm.NewFramedArea(addr.PageRange{Start: heapStart, End: heapStart}, vmm.FlagValid|vmm.FlagUser|vmm.FlagRead|vmm.FlagWrite, vmm.UserHeap)
	if err := tk.MemorySpace.InsertArea(area); err != nil {
		t.Fatalf("InsertArea: %v", err)
	}
	tk.MemorySpace.SetHeap(heapStart)

	grown, err := sysBrk(tk, &trap.Frame{A0: uint64(heapStart.Addr()) + 3*addr.PageSize})
	if err != nil {
		t.Fatalf("sysBrk grow: %v", err)
	}
	if grown <= uint64(heapStart.Addr()) {
		t.Fatal("brk should have grown past the heap start")
	}

	shrunk, err := sysBrk(tk, &trap.Frame{A0: uint64(heapStart.Addr()) + addr.PageSize})
	if err != nil {
		t.Fatalf("sysBrk shrink: %v", err)
	}
	if shrunk >= grown {
		t.Fatal("brk should have shrunk below the grown top")
	}
}
