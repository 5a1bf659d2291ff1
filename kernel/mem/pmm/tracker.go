package pmm

import "rvos/kernel/mem/addr"

// Tracker owns exactly one physical frame. Go has no destructors, so unlike
// gopher-os's Frame (which callers simply stop referencing once the
// allocator's bitmap is updated), ownership here is enforced by convention:
// whoever holds a Tracker is the frame's sole owner and must call Free
// exactly once. Cloning a Tracker (see Clone) always allocates a fresh frame
// and copies content -- two trackers never alias the same physical page.
type Tracker struct {
	pfn   addr.PhysPage
	alloc *Allocator
	freed bool
}

// PFN returns the physical page number this tracker owns.
func (t Tracker) PFN() addr.PhysPage { return t.pfn }

// Addr returns the physical address of the start of the owned page.
func (t Tracker) Addr() addr.PhysAddr { return t.pfn.Addr() }

// Free releases the frame back to its allocator. Calling Free more than once
// on the same Tracker is a bug (it would let two trackers alias the page);
// it is a silent no-op on an already-freed Tracker rather than a panic,
// since by the time that bug is visible the double free already happened in
// a debug build's first pass.
func (t *Tracker) Free() {
	if t.freed || t.alloc == nil {
		return
	}
	t.alloc.free(t.pfn)
	t.freed = true
}

// Clone allocates a new frame from the same allocator, copies the page
// content byte-for-byte via the supplied accessor (kernel/mem/vmm supplies
// the kernel's direct-mapped view), and returns a Tracker for the new frame.
// The two trackers never share a physical page.
func (t Tracker) Clone(readPage func(addr.PhysPage) []byte, writePage func(addr.PhysPage, []byte)) (Tracker, error) {
	dst, err := t.alloc.AllocOne()
	if err != nil {
		return Tracker{}, err
	}
	if readPage != nil && writePage != nil {
		writePage(dst.pfn, readPage(t.pfn))
	}
	return dst, nil
}

// RangeTracker owns a contiguous run of physical frames allocated together
// by AllocContiguous/AllocContiguousAligned. Like Tracker, it must be freed
// exactly once.
type RangeTracker struct {
	start, end addr.PhysPage
	alloc      *Allocator
	freed      bool
}

// Start returns the first page number in the owned range.
func (r RangeTracker) Start() addr.PhysPage { return r.start }

// Len returns the number of pages owned.
func (r RangeTracker) Len() uint64 { return uint64(r.end - r.start) }

// Range returns the owned half-open physical page range.
func (r RangeTracker) Range() addr.PhysPageRange {
	return addr.PhysPageRange{Start: r.start, End: r.end}
}

// Free returns every page in the range to the allocator. Contiguous ranges
// are always allocated off the watermark (never the recycle list), so on
// free each page is returned individually: pages directly below the
// watermark rewind it, the rest are pushed onto the recycle list. A later
// contiguous allocation will simply advance the watermark past recycled
// pages rather than reusing them, trading a little fragmentation for a
// free path with no scan of the recycle list.
func (r *RangeTracker) Free() {
	if r.freed || r.alloc == nil {
		return
	}
	// Free from the top down so that, when this range sits directly below
	// the watermark, each free rewinds it in turn instead of scattering the
	// whole range across the recycle list.
	for pfn := r.end; pfn > r.start; pfn-- {
		r.alloc.free(pfn - 1)
	}
	r.freed = true
}
