package task

import (
	"rvos/kernel/mem/kheap"
	"rvos/kernel/mem/vmm"
)

// KernelStackSize is the size of the contiguous stack allocated for every
// task (spec.md §4.6's "kernel_stack: owned contiguous frames").
const KernelStackSize = 16 << 10

// NewKernelTask allocates a bare task descriptor with a kernel stack and an
// empty memory space, entering context at entry once first scheduled
// in (spec.md §4.6 item 6: "context.ra = schedule_entry_kthread"). Used both
// for idle tasks and as the bootstrap step of building a user task from an
// ELF image (kernel/boot attaches a trap frame afterwards and
// kernel/syscall's Exec fills in its entry point, stack pointer and a0).
func NewKernelTask(entry uintptr) *Task {
	tableMu.Lock()
	tid := allocTID()
	tableMu.Unlock()

	stack := kheap.Heap.Alloc(KernelStackSize, 16)
	t := &Task{
		TID:         tid,
		PID:         tid,
		State:       Runnable,
		kernelStack: stack,
		MemorySpace: &vmm.MemorySpace{},
		FDTable:     newFDTable(),
		Affinity:    -1,
	}
	t.KernelSP = uintptr(stack) + KernelStackSize
	t.Context.RA = uint64(entry)
	t.Context.SP = uint64(t.KernelSP)

	Register(t)
	return t
}

// Fork creates a child of parent: deep-copies MemorySpace, clones the
// FDTable into an independent copy that still shares the underlying Files
// (spec.md §4.6: "Clone FDTable: files are shared by default after fork" --
// the table itself is private so the child's close/dup2 never mutates the
// parent's fd slots), copies signal handlers by value, and byte-copies the
// parent's trap frame with the return-value register zeroed so the child
// observes fork() returning 0 while the parent observes the child's tid.
func (parent *Task) Fork() (*Task, error) {
	tableMu.Lock()
	tid := allocTID()
	tableMu.Unlock()

	childSpace := &vmm.MemorySpace{}
	if err := parent.MemorySpace.Fork(childSpace); err != nil {
		return nil, err
	}

	stack := kheap.Heap.Alloc(KernelStackSize, 16)
	child := &Task{
		TID:         tid,
		PID:         tid,
		State:       Runnable,
		kernelStack: stack,
		MemorySpace: childSpace,
		FDTable:     parent.FDTable.Clone(), // independent table, shared Files
		Affinity:    -1,
	}
	child.KernelSP = uintptr(stack) + KernelStackSize

	if parent.TrapFrame != nil {
		frame := *parent.TrapFrame
		frame.A0 = 0 // child sees fork() return 0
		child.TrapFrame = &frame
	}
	if parent.SignalHandlers != nil {
		handlers := *parent.SignalHandlers
		child.SignalHandlers = &handlers
	}

	parent.AddChild(child)
	Register(child)
	return child, nil
}

// Exit transitions t to Zombie with the given exit code. Its resources
// (memory space, kernel stack) are released immediately; only the task
// table entry survives for the parent to reap via Wait (spec.md §4.6's
// Zombie invariant).
func (t *Task) Exit(code int) {
	t.Lock()
	t.State = Zombie
	t.ExitCode = code
	t.Unlock()

	if t.MemorySpace != nil {
		t.MemorySpace.Teardown()
	}
	if t.kernelStack != nil {
		kheap.Heap.Free(t.kernelStack)
		t.kernelStack = nil
	}

	for _, child := range t.Children() {
		if InitTask != nil && InitTask != t {
			InitTask.AddChild(child)
			continue
		}
		child.Lock()
		child.Parent = nil
		child.Unlock()
	}
}

// Wait scans t's children for one already in Zombie state, reaps and
// returns it. Returns (nil, false) if none are ready yet; the actual
// sleep/wake while waiting is the caller's job (kernel/syscall's sysWait4
// wraps this in a sleep loop).
func (t *Task) Wait() (*Task, bool) {
	for _, child := range t.Children() {
		child.Lock()
		isZombie := child.State == Zombie
		child.Unlock()
		if isZombie {
			t.ReapChild(child)
			return child, true
		}
	}
	return nil, false
}

// ReapChild removes child from t's children, unregisters it from the task
// table, and returns it. Used by Wait and by wait4(specific_pid, ...) to
// reap exactly the zombie child that was matched, never whichever zombie
// happens to be found first.
func (t *Task) ReapChild(child *Task) {
	t.RemoveChild(child)
	Unregister(child.TID)
}

func newFDTable() *FDTable {
	return &FDTable{}
}
