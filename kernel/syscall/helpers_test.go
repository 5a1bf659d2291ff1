package syscall

import (
	"testing"
	"unsafe"

	"rvos/kernel/mem/addr"
	"rvos/kernel/mem/kheap"
	"rvos/kernel/mem/pmm"
	"rvos/kernel/mem/vmm"
	"rvos/kernel/task"
	"rvos/kernel/vfs"
)

func init() {
	kheap.Heap.Init()
}

// testPhysMem stands in for physical memory: no real DRAM or MMU exists
// off actual RISC-V hardware, so every test installs DirectMap/
// DirectMapBytes over this array, mirroring kernel/mem/vmm's own test
// fixture.
var testPhysMem [512 * addr.PageSize]byte

func installTestDirectMap(t *testing.T) {
	t.Helper()
	oldBytes := vmm.DirectMapBytes
	vmm.DirectMapBytes = func(p addr.PhysPage) *[addr.PageSize]byte {
		off := uint64(p) * addr.PageSize
		return (*[addr.PageSize]byte)(unsafe.Pointer(&testPhysMem[off]))
	}
	t.Cleanup(func() {
		vmm.DirectMapBytes = oldBytes
		for i := range testPhysMem {
			testPhysMem[i] = 0
		}
	})
}

// newTestTask builds a task with its own MemorySpace (backed by a fresh
// frame allocator over testPhysMem), an FDTable, and a Cwd/Root rooted at
// a fresh in-memory filesystem.
func newTestTask(t *testing.T) *task.Task {
	t.Helper()
	installTestDirectMap(t)

	var alloc pmm.Allocator
	alloc.Init(0, 512)

	space := &vmm.MemorySpace{}
	if err := space.Init(&alloc); err != nil {
		t.Fatalf("MemorySpace.Init: %v", err)
	}

	fs := vfs.NewMemFS()
	root := vfs.NewDentry("/", fs.RootInode(), nil)

	tk := task.NewKernelTask(0)
	tk.MemorySpace = space
	tk.Cwd = root
	tk.Root = root
	return tk
}

// mapUserPages maps [start, start+pages) as a Framed, read-write, user
// area, returning the area's start VPN for convenience.
func mapUserPages(t *testing.T, tk *task.Task, start addr.VirtPage, pages uint64) {
	t.Helper()
	area := vmm.NewFramedArea(addr.PageRange{Start: start, End: start + addr.VirtPage(pages)}, vmm.FlagValid|vmm.FlagUser|vmm.FlagRead|vmm.FlagWrite, vmm.UserData)
	if err := tk.MemorySpace.InsertArea(area); err != nil {
		t.Fatalf("InsertArea: %v", err)
	}
	for vpn := start; vpn < start+addr.VirtPage(pages); vpn++ {
		if err := tk.MemorySpace.MapAnonymousPage(vpn); err != nil {
			t.Fatalf("MapAnonymousPage: %v", err)
		}
	}
}
