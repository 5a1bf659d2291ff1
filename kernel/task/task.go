// Package task implements component C6's process/thread descriptor and task
// table (spec.md §4.6). gopher-os never grew a scheduler (it stops at
// single-threaded kernel bring-up), so there is no teacher file for a task
// struct; this package follows the teacher's general shape instead --
// plain structs guarded by kernel/sync locks, Arc-style sharing expressed as
// plain pointers plus an explicit reference count where spec.md calls for
// one, and the same "mocked by tests, installed by kernel/boot" function-var
// pattern used by kernel/trap and kernel/sbi for anything that would
// otherwise need inline assembly (here, the callee-saved-register context
// switch).
package task

import (
	"unsafe"

	"rvos/kernel/mem/vmm"
	"rvos/kernel/sync"
	"rvos/kernel/trap"
	"rvos/kernel/vfs"
)

// State is a task's scheduling state (spec.md §4.6).
type State int

const (
	Runnable State = iota
	Running
	InterruptibleSleep
	UninterruptibleSleep
	Stopped
	Zombie
	Dead
)

func (s State) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Running:
		return "running"
	case InterruptibleSleep:
		return "sleep"
	case UninterruptibleSleep:
		return "disk-sleep"
	case Stopped:
		return "stopped"
	case Zombie:
		return "zombie"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// Context holds the callee-saved registers captured at the last voluntary
// switch-out (spec.md §4.6's context field): ra, sp, and s0-s11. Interrupts,
// address-space switches and the user trap frame are trap-boundary concerns
// (kernel/trap), not context-switch concerns -- the assembly this struct
// backs only ever saves/restores these fourteen words and returns.
type Context struct {
	RA, SP                                    uint64
	S0, S1, S2, S3, S4, S5, S6, S7, S8, S9, S10, S11 uint64
}

// SwitchFn performs the architecture context switch: save the callee-saved
// registers of prev into its Context, load next's Context, and return into
// next. kernel/boot installs the real assembly trampoline; tests install a
// stub that just copies state so scheduling logic can be exercised without
// a real stack switch.
var SwitchFn = func(prev, next *Context) {}

// FDTable is the minimal shape kernel/task needs from kernel/vfs's file
// descriptor table. Fork gives the child a private copy of it (Clone); the
// Files in it stay shared.
type FDTable = vfs.FDTable

// Task is a single process/thread descriptor (spec.md §4.6's TaskStruct).
type Task struct {
	mu sync.SpinLock

	TID, PID, PPID uint64
	State          State
	ExitCode       int

	Parent   *Task
	children []*Task

	kernelStack unsafe.Pointer
	KernelSP    uintptr

	TrapFrame *trap.Frame
	Context   Context

	MemorySpace *vmm.MemorySpace
	FDTable     *FDTable
	Cwd, Root   *vfs.Dentry

	SignalHandlers *SignalHandlers
	SignalPending  uint64
	SignalMask     uint64

	Affinity int // -1 means no affinity
}

// SignalHandlers is the process-wide (shared-by-thread-group, one-per-task
// in this baseline) disposition table kernel/signal installs and consults.
// Declared here (rather than imported from kernel/signal) to avoid an
// import cycle, since kernel/signal needs *Task to deliver into a trap
// frame; kernel/signal defines the concrete handler-entry shape and casts
// through this alias.
type SignalHandlers struct {
	mu       sync.SpinLock
	Handlers [64]SignalAction
}

// SignalAction mirrors a POSIX sigaction's disposition.
type SignalAction struct {
	Default bool
	Ignore  bool
	Handler uintptr
	Flags   uint32
}

// Lock/Unlock expose the task's own spinlock to callers that must update
// multiple fields atomically (state transitions, child-list edits).
func (t *Task) Lock()   { t.mu.Lock() }
func (t *Task) Unlock() { t.mu.Unlock() }

// AddChild appends c to t's children list under t's lock.
func (t *Task) AddChild(c *Task) {
	t.Lock()
	defer t.Unlock()
	t.children = append(t.children, c)
	c.Parent = t
	c.PPID = t.PID
}

// Children returns a snapshot of t's children list.
func (t *Task) Children() []*Task {
	t.Lock()
	defer t.Unlock()
	out := make([]*Task, len(t.children))
	copy(out, t.children)
	return out
}

// RemoveChild deletes c from t's children list (called once c has been
// reaped by Wait).
func (t *Task) RemoveChild(c *Task) {
	t.Lock()
	defer t.Unlock()
	for i, ch := range t.children {
		if ch == c {
			t.children = append(t.children[:i], t.children[i+1:]...)
			return
		}
	}
}
