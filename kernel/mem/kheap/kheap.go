// Package kheap implements the kernel's process-wide dynamic allocator
// (component C2, spec.md §4.2): a single-instance free-list allocator over a
// statically reserved region of the kernel's BSS. gopher-os's physical frame
// allocators (kernel/mem/pmm/allocator) hold their pool metadata in
// unsafe.Pointer-backed slices built with reflect.SliceHeader over a
// reserved region handed to them by the vmm; this package follows the same
// "claim a raw region, overlay Go struct headers on it with unsafe"
// technique, but for byte-granular allocation instead of page-granular.
package kheap

import (
	"unsafe"

	"rvos/kernel/kpanic"
	"rvos/kernel/mem/addr"
	"rvos/kernel/sync"
)

// regionSize is the size of the statically reserved heap region. A teaching
// kernel's worst-case container load (task table, dentry cache, page-table
// interior nodes) comfortably fits in 16 MiB.
const regionSize = 16 << 20

// region is the static backing store. Declared as a plain byte array so it
// lives in the kernel's BSS exactly like gopher-os's reserved regions,
// rather than being allocated at run time (there is nothing to allocate it
// with before the heap itself exists).
var region [regionSize]byte

// blockHeader precedes every block (free or allocated) in the region. size
// is the usable payload capacity and does not include the header itself.
// Free blocks additionally use the two machine words immediately following
// the header to hold free-list next/prev links.
type blockHeader struct {
	size uint64
	free bool
}

const (
	headerSize   = unsafe.Sizeof(blockHeader{})
	wordSize     = unsafe.Sizeof(uintptr(0))
	linkAreaSize = 2 * wordSize // next + prev, valid only while free
)

// minSplit is the smallest free remainder worth splitting into its own
// block; anything smaller is left attached to the allocation as internal
// fragmentation instead of creating a free block too small for any other
// request to reuse.
const minSplit = uint64(headerSize + linkAreaSize)

// Allocator is a first-fit, splitting-and-coalescing free-list allocator.
// Guarded by a single spinlock: spec.md §4.2 specifies "allocator-internal
// synchronization" with no further requirement, and the baseline allocator
// has no per-CPU fast path to justify anything finer.
type Allocator struct {
	mu       sync.SpinLock
	base     uintptr
	end      uintptr
	freeHead uintptr // address of the first free block's header, 0 if none
	ready    bool
}

// Heap is the kernel's single heap instance. kernel/boot calls Heap.Init
// once, after the frame allocator and before any subsystem that allocates
// variable-size state (the task table, the dentry cache, page-table
// interior nodes).
var Heap Allocator

// Init carves the whole reserved region into one free block spanning it.
func (a *Allocator) Init() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.base = uintptr(unsafe.Pointer(&region[0]))
	a.end = a.base + uintptr(len(region))
	a.ready = true

	hdr := (*blockHeader)(unsafe.Pointer(a.base))
	*hdr = blockHeader{size: uint64(a.end-a.base) - uint64(headerSize), free: true}
	setNext(a.base, 0)
	setPrev(a.base, 0)
	a.freeHead = a.base
}

// Alloc reserves size bytes aligned to align, which must be a power of two
// no larger than addr.PageSize (spec.md §4.2's "arbitrary alignment up to
// one page"). Panics on exhaustion: the baseline kernel has no recovery path
// for a heap OOM (spec.md §7's propagation policy).
//
// The returned pointer may sit anywhere inside its backing block once
// alignment padding is applied, so a backlink word recording the block's
// header address is stored immediately before the returned pointer; Free
// reads it back to locate the header regardless of how much padding Alloc
// inserted.
func (a *Allocator) Alloc(size uint64, align uint64) unsafe.Pointer {
	if align == 0 {
		align = 1
	}
	if !addr.IsPowerOfTwo(align) || align > addr.PageSize {
		kpanic.Panic("kheap: invalid alignment")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.ready {
		kpanic.Panic("kheap: Alloc before Init")
	}

	block, payload, pad := a.findFreeLocked(size, align)
	if block == 0 {
		kpanic.Panic("kheap: out of memory")
	}
	a.takeLocked(block, pad, size)

	*(*uintptr)(unsafe.Pointer(payload - wordSize)) = block
	return unsafe.Pointer(payload)
}

// findFreeLocked scans the free list for the first block able to satisfy
// size with alignment align, once the padding needed to leave room for the
// backlink word in front of the aligned payload is accounted for. Returns
// the block header address, the aligned payload address, and the resulting
// pad (bytes between the block's payload start and the backlink word), or
// all-zero if nothing fits.
func (a *Allocator) findFreeLocked(size, align uint64) (block, payload uintptr, pad uint64) {
	for cur := a.freeHead; cur != 0; cur = getNext(cur) {
		hdr := (*blockHeader)(unsafe.Pointer(cur))
		payloadStart := cur + headerSize
		aligned := addr.AlignUp(uint64(payloadStart)+uint64(wordSize), align)
		p := aligned - uint64(payloadStart)
		if hdr.size >= p+size {
			return cur, uintptr(aligned), p
		}
	}
	return 0, 0, 0
}

// takeLocked removes block from the free list and marks it allocated. If
// the block is large enough to leave a useful free remainder after pad+size
// bytes, it splits a new free block there instead of over-allocating.
func (a *Allocator) takeLocked(block uintptr, pad, size uint64) {
	hdr := (*blockHeader)(unsafe.Pointer(block))
	a.unlinkLocked(block)

	used := pad + size
	remainder := hdr.size - used
	if remainder >= minSplit {
		newBlock := block + headerSize + uintptr(used)
		newHdr := (*blockHeader)(unsafe.Pointer(newBlock))
		*newHdr = blockHeader{size: remainder - uint64(headerSize), free: true}
		setNext(newBlock, 0)
		setPrev(newBlock, 0)
		a.pushFrontLocked(newBlock)
		hdr.size = used
	}
	hdr.free = false
}

// Free returns a previously allocated block to the free list and coalesces
// it with an immediately following free neighbor, if any.
func (a *Allocator) Free(p unsafe.Pointer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	block := *(*uintptr)(unsafe.Pointer(uintptr(p) - wordSize))
	hdr := (*blockHeader)(unsafe.Pointer(block))
	hdr.free = true
	setNext(block, 0)
	setPrev(block, 0)
	a.pushFrontLocked(block)
	a.coalesceLocked(block)
}

func (a *Allocator) pushFrontLocked(block uintptr) {
	setNext(block, a.freeHead)
	setPrev(block, 0)
	if a.freeHead != 0 {
		setPrev(a.freeHead, block)
	}
	a.freeHead = block
}

func (a *Allocator) unlinkLocked(block uintptr) {
	prev := getPrev(block)
	next := getNext(block)
	if prev != 0 {
		setNext(prev, next)
	} else {
		a.freeHead = next
	}
	if next != 0 {
		setPrev(next, prev)
	}
}

// coalesceLocked merges block with the free block that immediately follows
// it in the region, if any. Merging with a preceding neighbor would require
// walking the region from its start (headers carry no back-link to the
// previous physical block), so the baseline allocator only coalesces
// forward; a block freed before its predecessor merges once the predecessor
// itself is freed and coalesces forward into it, while a block freed after
// its predecessor stays a separate free block.
func (a *Allocator) coalesceLocked(block uintptr) {
	hdr := (*blockHeader)(unsafe.Pointer(block))
	next := block + headerSize + uintptr(hdr.size)
	if next >= a.end {
		return
	}
	nextHdr := (*blockHeader)(unsafe.Pointer(next))
	if !nextHdr.free {
		return
	}
	a.unlinkLocked(next)
	hdr.size += uint64(headerSize) + nextHdr.size
}

func setNext(block uintptr, v uintptr) { *(*uintptr)(unsafe.Pointer(block + headerSize)) = v }
func getNext(block uintptr) uintptr    { return *(*uintptr)(unsafe.Pointer(block + headerSize)) }
func setPrev(block uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(block + headerSize + wordSize)) = v
}
func getPrev(block uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(block + headerSize + wordSize))
}
