// Package percpu implements the per-CPU container and CPU-identity plumbing
// of component C3. Each hart owns a CpuState whose address the hart keeps in
// a dedicated register (the RISC-V tp-class register per spec.md §4.3);
// trap entry saves the user's tp and reloads the kernel's value from the
// trap frame. Since this module never runs on bare-metal RISC-V hardware in
// this retrieval, CurrentHartID is a function variable rather than a direct
// register read -- the same "mocked by tests, inlined by the compiler"
// pattern gopher-os uses for its CR2/CR3 accessors -- and kernel/boot
// installs the hart-local implementation during bring-up.
package percpu

// MaxCPUCount bounds every per-CPU array in the kernel. A teaching kernel
// targets small SMP counts; raising this only costs array size.
const MaxCPUCount = 8

// cacheLineSize is the padding unit used to keep each hart's slot on its own
// cache line and avoid false sharing between harts hammering adjacent
// counters.
const cacheLineSize = 64

// CpuState is the per-hart kernel state block. cpu_id must remain the first
// field: trap entry recovers the owning hart's identity with a single
// indirect load through the tp-class register, and that load assumes
// cpu_id sits at offset 0.
type CpuState struct {
	CPUID uint64

	// CurrentTaskID is 0 when no task is running on this hart (true only
	// during the brief context-switch window described in spec.md §5's
	// cross-hart invariants).
	CurrentTaskID uint64

	// InIdle is true while this hart's idle task is the one executing.
	InIdle bool

	// NeedResched is set by the timer interrupt handler when this hart's
	// current task has exhausted its time slice.
	NeedResched bool
}

// CurrentHartID returns the hart id of the calling goroutine/hart context.
// Overridden by kernel/boot once each hart has installed its CpuState
// pointer; defaults to hart 0 so single-hart code (and tests) work without
// explicit setup.
var CurrentHartID = func() uint64 { return 0 }

// Array is a fixed-size, cache-line-padded array of per-CPU slots. Use
// Get/GetMut for the calling hart's own slot (preemption must be disabled
// around the access -- see kernel/sync.PreemptCounter) and GetOf for another
// hart's slot (read-only, no preemption discipline required or enforced).
type Array[T any] struct {
	slots [MaxCPUCount]paddedSlot[T]
}

// paddedSlot reserves a full cache line of trailing padding after value so
// that adjacent harts' slots never share a cache line. This is a fixed
// over-allocation rather than an exact sizeof(T)-rounded pad (Go array
// lengths must be compile-time constants, so the padding cannot be computed
// from T's size); it trades a little memory for simplicity, which is within
// budget for the small structs this container holds (CpuState, run-queue
// head pointers).
type paddedSlot[T any] struct {
	value T
	_     [cacheLineSize]byte
}

// Get returns a copy of the calling hart's slot.
func (a *Array[T]) Get() T {
	return a.slots[CurrentHartID()].value
}

// GetMut returns a pointer to the calling hart's slot so it can be mutated
// in place. Callers must hold preemption disabled for the duration of any
// read-modify-write sequence.
func (a *Array[T]) GetMut() *T {
	return &a.slots[CurrentHartID()].value
}

// GetOf returns a pointer to another hart's slot. Intended for read-mostly
// diagnostics (e.g. the scheduler peeking at another hart's run queue
// length); writers must use a lock shared across harts instead.
func (a *Array[T]) GetOf(cpu uint64) *T {
	return &a.slots[cpu].value
}
