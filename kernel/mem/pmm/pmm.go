// Package pmm implements the physical frame allocator (component C1,
// spec.md §4.1): a watermark cursor plus a LIFO recycle stack. This mirrors
// the two-tier design gopher-os uses (a rudimentary BootMemAllocator handed
// off to a more advanced allocator) but folds both tiers into one type,
// since spec.md's watermark+recycle scheme is already cheap enough to serve
// as both the early and the steady-state allocator.
package pmm

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/mem/addr"
	"rvos/kernel/sync"
)

// Allocator is a physical frame allocator over the half-open page range
// [start, end). Guarded by a single global spinlock per spec.md §5.
type Allocator struct {
	mu sync.SpinLock

	start, end addr.PhysPage // managed range
	cursor     addr.PhysPage // watermark: next never-yet-allocated page
	recycled   []addr.PhysPage // LIFO stack of freed pages below the watermark
}

// Global is the single physical frame allocator kernel/boot builds over
// the FDT-reported memory range; components that need fresh frames after
// boot (kernel/elf's loader, mmap/exec's MemorySpace construction) reach
// it here rather than threading an *Allocator through every call.
var Global *Allocator

// Init sets up the allocator over [startPFN, endPFN).
func (a *Allocator) Init(startPFN, endPFN addr.PhysPage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.start = startPFN
	a.end = endPFN
	a.cursor = startPFN
	a.recycled = a.recycled[:0]
}

// Stats reports the allocator's current bookkeeping, used by the invariant
// test in spec.md §8: recycled-list size + (cursor - start) == total -
// currently-held-trackers.
type Stats struct {
	Total     uint64
	Allocated uint64
	Free      uint64
}

// Stats returns a snapshot of the allocator's accounting.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := uint64(a.end - a.start)
	watermarked := uint64(a.cursor - a.start)
	free := uint64(len(a.recycled)) + (total - watermarked)
	return Stats{Total: total, Allocated: total - free, Free: free}
}

// AllocOne reserves a single frame: pop from recycled if non-empty,
// otherwise advance the watermark.
func (a *Allocator) AllocOne() (Tracker, *kerrors.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	pfn, err := a.allocOneLocked()
	if err != nil {
		return Tracker{}, err
	}
	return Tracker{pfn: pfn, alloc: a}, nil
}

func (a *Allocator) allocOneLocked() (addr.PhysPage, *kerrors.Error) {
	if n := len(a.recycled); n > 0 {
		pfn := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return pfn, nil
	}
	if a.cursor >= a.end {
		return 0, kerrors.ErrOutOfMemory
	}
	pfn := a.cursor
	a.cursor++
	return pfn, nil
}

// AllocMany reserves n frames that need not be contiguous: n independent
// single allocations.
func (a *Allocator) AllocMany(n uint64) ([]Tracker, *kerrors.Error) {
	out := make([]Tracker, 0, n)
	for i := uint64(0); i < n; i++ {
		t, err := a.AllocOne()
		if err != nil {
			for _, held := range out {
				held.Free()
			}
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// AllocContiguous reserves n contiguous frames, unaligned. It only ever
// advances the watermark (never scans the recycle list) so that contiguity
// can be guaranteed cheaply.
func (a *Allocator) AllocContiguous(n uint64) (RangeTracker, *kerrors.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n == 0 {
		return RangeTracker{}, kerrors.ErrInvalidArgument
	}
	if a.cursor+addr.PhysPage(n) > a.end {
		return RangeTracker{}, kerrors.ErrOutOfMemory
	}
	start := a.cursor
	a.cursor += addr.PhysPage(n)
	return RangeTracker{start: start, end: a.cursor, alloc: a}, nil
}

// AllocContiguousAligned reserves n contiguous frames whose starting page
// number is a multiple of k, k a power of two. The watermark is advanced to
// the next k-aligned page first, wasting any intervening pages (they are not
// recycled automatically -- they were never handed to a tracker, so freeing
// them is unnecessary; they are simply skipped and remain part of the
// unallocated tail beyond the old watermark, forever below the new
// watermark and hence unreachable. This matches spec.md §4.1's
// watermark-only contiguous-aligned allocation rule.)
func (a *Allocator) AllocContiguousAligned(n, k uint64) (RangeTracker, *kerrors.Error) {
	if !addr.IsPowerOfTwo(k) {
		return RangeTracker{}, kerrors.ErrAlignment
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	aligned := addr.PhysPage(addr.AlignUp(uint64(a.cursor), k))
	if aligned+addr.PhysPage(n) > a.end {
		return RangeTracker{}, kerrors.ErrOutOfMemory
	}
	a.cursor = aligned + addr.PhysPage(n)
	return RangeTracker{start: aligned, end: a.cursor, alloc: a}, nil
}

// FreeFrame returns a raw physical page number to the allocator, for
// callers (kernel/mem/vmm's MappingArea/MemorySpace teardown paths) that
// track ownership themselves instead of holding a Tracker. Calling this on
// a PFN already freed, or never allocated from this allocator, corrupts the
// allocator's bookkeeping: callers must track ownership precisely.
func (a *Allocator) FreeFrame(pfn addr.PhysPage) {
	a.free(pfn)
}

// free returns pfn to the allocator. If pfn directly precedes the
// watermark, the watermark rewinds and then coalesces with the top of the
// recycle list while it remains contiguous below the new watermark;
// otherwise pfn is simply pushed onto the recycle list. This rewards the
// common teardown pattern of freeing in reverse allocation order.
func (a *Allocator) free(pfn addr.PhysPage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if pfn+1 == a.cursor {
		a.cursor--
		for n := len(a.recycled); n > 0 && a.recycled[n-1]+1 == a.cursor; n = len(a.recycled) {
			a.cursor--
			a.recycled = a.recycled[:n-1]
		}
		return
	}
	a.recycled = append(a.recycled, pfn)
}
