// Package sched implements component C6's per-CPU run queue and round-robin
// scheduler (spec.md §4.6's Scheduler, §5's scheduling model). Neither
// gopher-os nor any other example repo runs multiple tasks, so there is no
// teacher file this package adapts line-for-line; it follows the repo's own
// established idiom instead (percpu.Array per-hart slots, a spinlock per
// slot as spec.md §5's shared-resource policy requires: "one lock per CPU,
// cross-CPU wakeup takes target's lock") and wires into kernel/trap's timer
// and IPI dispatch points the same way kernel/mem/vmm wires into
// kernel/trap's page-fault dispatch.
package sched

import (
	"rvos/kernel/ipi"
	"rvos/kernel/percpu"
	"rvos/kernel/sync"
	"rvos/kernel/task"
	"rvos/kernel/trap"
)

// DefaultQuantum is the time-slice every task is given on schedule-in,
// counted in timer ticks (spec.md §4.6's "Time slice").
const DefaultQuantum = 10

type runQueue struct {
	mu    sync.SpinLock
	tasks []*task.Task
}

// perCPU holds each hart's run queue and idle task.
type perCPU struct {
	rq      runQueue
	idle    *task.Task
	current *task.Task
	quantum int
}

var cpus percpu.Array[perCPU]

// SetIdleTask installs the calling hart's idle task. Never placed on any run
// queue (spec.md §4.5's Idle task contract).
func SetIdleTask(t *task.Task) {
	cpus.GetMut().idle = t
}

// Current returns the task currently running on the calling hart, or nil
// before the first schedule.
func Current() *task.Task {
	return cpus.GetMut().current
}

// Enqueue adds t to the calling hart's run queue tail and marks it
// Runnable.
func Enqueue(t *task.Task) {
	t.Lock()
	t.State = task.Runnable
	t.Unlock()

	cpu := cpus.GetMut()
	cpu.rq.mu.Lock()
	cpu.rq.tasks = append(cpu.rq.tasks, t)
	cpu.rq.mu.Unlock()
}

// EnqueueOn adds t to hart's run queue and sends it a Reschedule IPI so its
// next trap-return picks the task up (spec.md §4.6's cross-CPU wakeup).
func EnqueueOn(hart uint64, t *task.Task) {
	t.Lock()
	t.State = task.Runnable
	t.Unlock()

	cpu := cpus.GetOf(hart)
	cpu.rq.mu.Lock()
	cpu.rq.tasks = append(cpu.rq.tasks, t)
	cpu.rq.mu.Unlock()

	ipi.Send(hart, ipi.Reschedule)
}

func (rq *runQueue) pop() *task.Task {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	if len(rq.tasks) == 0 {
		return nil
	}
	t := rq.tasks[0]
	rq.tasks = rq.tasks[1:]
	return t
}

// Schedule implements spec.md §4.6's schedule(): take the current task off
// the CPU, pop the next runnable task (or the idle task if the queue is
// empty), requeue the previous task if it's still Runnable, and switch.
func Schedule() {
	cpu := cpus.GetMut()
	prev := cpu.current

	next := cpu.rq.pop()
	if next == nil {
		next = cpu.idle
	}

	if prev != nil {
		prev.Lock()
		// Running is the state a task has while it's the one that called
		// Schedule (e.g. a voluntary Yield or a timer-driven reschedule);
		// it is requeued exactly like Runnable. Only a task that
		// explicitly changed its own state first (Sleep, Exit) is left
		// off the queue.
		stillRunnable := prev.State == task.Runnable || prev.State == task.Running
		prev.Unlock()
		if stillRunnable && prev != cpu.idle {
			cpu.rq.mu.Lock()
			cpu.rq.tasks = append(cpu.rq.tasks, prev)
			cpu.rq.mu.Unlock()
		}
	}

	if next == prev {
		return
	}

	next.Lock()
	next.State = task.Running
	next.Unlock()
	cpu.current = next
	cpu.quantum = DefaultQuantum

	if prev == nil {
		task.SwitchFn(&task.Context{}, &next.Context)
		return
	}
	task.SwitchFn(&prev.Context, &next.Context)
}

// Yield voluntarily gives up the CPU, keeping the caller Runnable.
func Yield() {
	Schedule()
}

// Sleep transitions the calling hart's current task to state and removes it
// from scheduling consideration (it is not on any run queue while asleep; a
// later call to Wake re-enqueues it) then switches away.
func Sleep(state task.State) {
	cpu := cpus.GetMut()
	if cpu.current == nil {
		return
	}
	cpu.current.Lock()
	cpu.current.State = state
	cpu.current.Unlock()
	Schedule()
}

// Wake marks t Runnable and enqueues it on the calling hart's run queue.
// Cross-CPU wakeup should use EnqueueOn with t's home hart instead.
func Wake(t *task.Task) {
	Enqueue(t)
}

// Tick is installed as trap.TimerTick: decrements the current task's
// quantum and marks NeedResched on the owning CpuState once it runs out
// (spec.md §4.6's "Time slice").
func Tick() {
	cpu := cpus.GetMut()
	if cpu.current == nil || cpu.current == cpu.idle {
		return
	}
	cpu.quantum--
	if cpu.quantum <= 0 {
		markNeedResched()
	}
}

// markNeedResched flips the calling hart's CpuState.NeedResched bit so the
// trap-return path knows to call Schedule before restoring user state.
func markNeedResched() {
	st := cpuStates.GetMut()
	st.NeedResched = true
}

// cpuStates is the percpu.CpuState array kernel/percpu itself doesn't own a
// singleton for; kernel/boot installs CurrentHartID and this package reuses
// it to flag reschedule points.
var cpuStates percpu.Array[percpu.CpuState]

// NeedResched reports and clears whether the calling hart's current task
// should be rescheduled, for the trap-return path to consult.
func NeedResched() bool {
	st := cpuStates.GetMut()
	need := st.NeedResched
	st.NeedResched = false
	return need
}

// init wires kernel/sync's Scheduler hook to this package, per
// sync.WaitQueue's own doc comment: "kernel/sched installs" Current/Block/
// Wake so SleepLock and WaitQueue can suspend and resume real tasks
// without kernel/sync importing kernel/sched (which would cycle back
// through kernel/task).
func init() {
	sync.Scheduler.Current = func() sync.TaskID {
		t := Current()
		if t == nil {
			return 0
		}
		return sync.TaskID(t.TID)
	}
	sync.Scheduler.Block = func(unlock func()) {
		unlock()
		Sleep(task.InterruptibleSleep)
	}
	sync.Scheduler.Wake = func(tid sync.TaskID) {
		if t, ok := task.Lookup(uint64(tid)); ok {
			Wake(t)
		}
	}
	trap.Resched = Schedule
	trap.CheckResched = NeedResched
}
