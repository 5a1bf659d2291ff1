package vmm

import (
	"testing"
	"unsafe"

	"rvos/kernel/mem/addr"
	"rvos/kernel/mem/pmm"
)

// testPhysMem backs DirectMap/DirectMapBytes for every test in this package:
// a plain byte array standing in for physical memory, since no real MMU or
// DRAM is available off actual RISC-V hardware.
var testPhysMem [256 * addr.PageSize]byte

func installTestDirectMap(t *testing.T) {
	t.Helper()
	oldPTE, oldBytes := DirectMap, DirectMapBytes
	DirectMap = func(p addr.PhysPage) *[512]pte {
		off := uint64(p) * addr.PageSize
		return (*[512]pte)(unsafe.Pointer(&testPhysMem[off]))
	}
	DirectMapBytes = func(p addr.PhysPage) *[addr.PageSize]byte {
		off := uint64(p) * addr.PageSize
		return (*[addr.PageSize]byte)(unsafe.Pointer(&testPhysMem[off]))
	}
	t.Cleanup(func() {
		DirectMap, DirectMapBytes = oldPTE, oldBytes
		for i := range testPhysMem {
			testPhysMem[i] = 0
		}
	})
}

func newTestAllocator(t *testing.T, pages uint64) *pmm.Allocator {
	t.Helper()
	var a pmm.Allocator
	a.Init(0, addr.PhysPage(pages))
	return &a
}

func TestPageTableMapWalkTranslate(t *testing.T) {
	installTestDirectMap(t)
	frames := newTestAllocator(t, 256)

	var pt PageTable
	if err := pt.Init(frames); err != nil {
		t.Fatalf("Init: %v", err)
	}

	vpn := addr.VirtPage(0x1000)
	ppn := addr.PhysPage(200)
	if err := pt.Map(vpn, ppn, FlagRead|FlagWrite); err != nil {
		t.Fatalf("Map: %v", err)
	}

	res, err := pt.Walk(vpn)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if res.PPN != ppn {
		t.Fatalf("walked ppn = %d, want %d", res.PPN, ppn)
	}

	va := vpn.Addr() + addr.VirtAddr(0x123)
	pa, err := pt.Translate(va)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if pa != ppn.Addr()+addr.PhysAddr(0x123) {
		t.Fatalf("translated pa = %#x, want %#x", pa, ppn.Addr()+addr.PhysAddr(0x123))
	}
}

func TestPageTableMapAlreadyMapped(t *testing.T) {
	installTestDirectMap(t)
	frames := newTestAllocator(t, 256)
	var pt PageTable
	pt.Init(frames)

	vpn := addr.VirtPage(5)
	if err := pt.Map(vpn, 10, FlagRead); err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := pt.Map(vpn, 11, FlagRead); err == nil {
		t.Fatal("expected AlreadyMapped error on second Map of the same vpn")
	}
}

func TestPageTableUnmapNotMapped(t *testing.T) {
	installTestDirectMap(t)
	frames := newTestAllocator(t, 256)
	var pt PageTable
	pt.Init(frames)

	if err := pt.Unmap(addr.VirtPage(7)); err == nil {
		t.Fatal("expected NotMapped error unmapping a never-mapped vpn")
	}
}

func TestPageTableUnmapThenWalkFails(t *testing.T) {
	installTestDirectMap(t)
	frames := newTestAllocator(t, 256)
	var pt PageTable
	pt.Init(frames)

	vpn := addr.VirtPage(9)
	pt.Map(vpn, 50, FlagRead|FlagWrite)
	if err := pt.Unmap(vpn); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if _, err := pt.Walk(vpn); err == nil {
		t.Fatal("expected NotMapped after Unmap")
	}
}

func TestPageTableUpdateFlags(t *testing.T) {
	installTestDirectMap(t)
	frames := newTestAllocator(t, 256)
	var pt PageTable
	pt.Init(frames)

	vpn := addr.VirtPage(3)
	pt.Map(vpn, 12, FlagRead)
	if err := pt.UpdateFlags(vpn, FlagRead|FlagWrite); err != nil {
		t.Fatalf("UpdateFlags: %v", err)
	}
	res, _ := pt.Walk(vpn)
	if res.Perm&FlagWrite == 0 {
		t.Fatal("expected FlagWrite to be set after UpdateFlags")
	}
}

func TestPageTableCrossesMultipleVPNIndices(t *testing.T) {
	installTestDirectMap(t)
	frames := newTestAllocator(t, 256)
	var pt PageTable
	pt.Init(frames)

	// vpn 0 and a vpn far enough away to land in a different level-0 slot
	// (so it needs its own level-1 and level-2 tables) exercise interior-node
	// allocation at every level.
	far := addr.VirtPage(1 << 18)
	if err := pt.Map(0, 1, FlagRead); err != nil {
		t.Fatalf("Map(0): %v", err)
	}
	if err := pt.Map(far, 2, FlagRead); err != nil {
		t.Fatalf("Map(far): %v", err)
	}
	r0, err := pt.Walk(0)
	if err != nil || r0.PPN != 1 {
		t.Fatalf("Walk(0) = %+v, %v", r0, err)
	}
	rf, err := pt.Walk(far)
	if err != nil || rf.PPN != 2 {
		t.Fatalf("Walk(far) = %+v, %v", rf, err)
	}
}

func TestMemorySpaceDirectAreaMapsImmediately(t *testing.T) {
	installTestDirectMap(t)
	frames := newTestAllocator(t, 256)

	var sp MemorySpace
	if err := sp.Init(frames); err != nil {
		t.Fatalf("Init: %v", err)
	}
	area := NewDirectArea(addr.PageRange{Start: 0x2000, End: 0x2004}, 100, FlagRead|FlagWrite, KernelData)
	if err := sp.InsertArea(area); err != nil {
		t.Fatalf("InsertArea: %v", err)
	}
	pa, err := sp.Translate(addr.VirtPage(0x2001).Addr())
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if pa != addr.PhysPage(101).Addr() {
		t.Fatalf("pa = %#x, want %#x", pa, addr.PhysPage(101).Addr())
	}
}

func TestMemorySpaceInsertAreaRejectsOverlap(t *testing.T) {
	installTestDirectMap(t)
	frames := newTestAllocator(t, 256)
	var sp MemorySpace
	sp.Init(frames)

	a1 := NewDirectArea(addr.PageRange{Start: 10, End: 20}, 0, FlagRead, KernelData)
	if err := sp.InsertArea(a1); err != nil {
		t.Fatalf("InsertArea a1: %v", err)
	}
	a2 := NewDirectArea(addr.PageRange{Start: 15, End: 25}, 0, FlagRead, KernelData)
	if err := sp.InsertArea(a2); err == nil {
		t.Fatal("expected overlap rejection")
	}
}

func TestMemorySpaceBrkExtendsAndTrimsHeap(t *testing.T) {
	installTestDirectMap(t)
	frames := newTestAllocator(t, 256)
	var sp MemorySpace
	sp.Init(frames)

	heapStart := addr.VirtPage(0x4000)
	area := NewFramedArea(addr.PageRange{Start: heapStart, End: heapStart}, FlagRead|FlagWrite, UserHeap)
	if err := sp.InsertArea(area); err != nil {
		t.Fatalf("InsertArea: %v", err)
	}
	sp.SetHeap(heapStart)
	areaPtr := &sp.areas[0]

	top, err := sp.Brk(areaPtr, heapStart.Addr()+addr.VirtAddr(3*addr.PageSize))
	if err != nil {
		t.Fatalf("Brk grow: %v", err)
	}
	if top != heapStart+3 {
		t.Fatalf("heap top = %d, want %d", top, heapStart+3)
	}
	if len(areaPtr.Frames) != 3 {
		t.Fatalf("expected 3 frames mapped, got %d", len(areaPtr.Frames))
	}

	top, err = sp.Brk(areaPtr, heapStart.Addr()+addr.VirtAddr(1*addr.PageSize))
	if err != nil {
		t.Fatalf("Brk shrink: %v", err)
	}
	if top != heapStart+1 {
		t.Fatalf("heap top after shrink = %d, want %d", top, heapStart+1)
	}
	if len(areaPtr.Frames) != 1 {
		t.Fatalf("expected 1 frame remaining, got %d", len(areaPtr.Frames))
	}
}

func TestMemorySpaceForkDeepCopiesFramedAreas(t *testing.T) {
	installTestDirectMap(t)
	frames := newTestAllocator(t, 256)
	var src MemorySpace
	src.Init(frames)

	vpn := addr.VirtPage(0x5000)
	area := NewFramedArea(addr.PageRange{Start: vpn, End: vpn + 1}, FlagRead|FlagWrite, UserData)
	src.InsertArea(area)
	if err := src.MapAnonymousPage(vpn); err != nil {
		t.Fatalf("MapAnonymousPage: %v", err)
	}
	DirectMapBytes(src.areas[0].Frames[vpn].ppn)[0] = 0x42

	var dst MemorySpace
	dst.Init(frames)
	if err := src.Fork(&dst); err != nil {
		t.Fatalf("Fork: %v", err)
	}

	srcPPN := src.areas[0].Frames[vpn].ppn
	dstPPN := dst.areas[0].Frames[vpn].ppn
	if srcPPN == dstPPN {
		t.Fatal("forked area aliased the parent's frame")
	}
	if DirectMapBytes(dstPPN)[0] != 0x42 {
		t.Fatal("forked page did not copy parent content")
	}

	// Writing through the child must not affect the parent.
	DirectMapBytes(dstPPN)[0] = 0x99
	if DirectMapBytes(srcPPN)[0] != 0x42 {
		t.Fatal("write through child frame leaked into parent frame")
	}
}

func TestMemorySpaceRemoveAreaFreesFrames(t *testing.T) {
	installTestDirectMap(t)
	frames := newTestAllocator(t, 256)
	var sp MemorySpace
	sp.Init(frames)

	vpn := addr.VirtPage(0x6000)
	area := NewFramedArea(addr.PageRange{Start: vpn, End: vpn + 2}, FlagRead|FlagWrite, UserAnonymous)
	sp.InsertArea(area)
	sp.MapAnonymousPage(vpn)
	sp.MapAnonymousPage(vpn + 1)

	statsBefore := frames.Stats()
	if err := sp.RemoveArea(vpn); err != nil {
		t.Fatalf("RemoveArea: %v", err)
	}
	statsAfter := frames.Stats()
	if statsAfter.Allocated != statsBefore.Allocated-2 {
		t.Fatalf("allocated frames after RemoveArea = %d, want %d", statsAfter.Allocated, statsBefore.Allocated-2)
	}
	if _, err := sp.Table.Walk(vpn); err == nil {
		t.Fatal("expected page to be unmapped after RemoveArea")
	}
}
