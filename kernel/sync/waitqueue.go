package sync

// TaskID identifies a blocked task. kernel/sync has no dependency on
// kernel/task (which would create an import cycle, since kernel/task uses
// kernel/sync's locks) so blocked tasks are referred to by opaque id only.
type TaskID uint64

// WaitQueue is a FIFO list of blocked tasks, used by SleepLock, pipes and
// wait4. It only tracks membership; actually suspending and resuming a task
// is delegated to Scheduler, which kernel/sched installs at boot. This keeps
// kernel/sync a leaf package with no dependency on the scheduler.
type WaitQueue struct {
	mu      SpinLock
	waiters []TaskID
}

// Scheduler is the hook kernel/sched installs so that blocking primitives in
// this package (WaitQueue, SleepLock) can actually suspend and resume tasks
// without kernel/sync importing kernel/sched.
var Scheduler = struct {
	// Current returns the id of the task running on this hart.
	Current func() TaskID
	// Block transitions the current task to InterruptibleSleep and calls
	// schedule(); it returns when the task is later woken. unlock is
	// invoked by Block immediately before giving up the CPU, after the
	// task has been recorded as sleeping, so that the caller's lock is
	// never held across the blocking call (a blocked task must never
	// hold a spinlock).
	Block func(unlock func())
	// Wake makes tid Runnable again and enqueues it on its hart's run
	// queue.
	Wake func(tid TaskID)
}{
	Current: func() TaskID { return 0 },
	Block:   func(unlock func()) { unlock() },
	Wake:    func(TaskID) {},
}

// Enqueue appends tid to the tail of the queue.
func (q *WaitQueue) Enqueue(tid TaskID) {
	q.mu.Lock()
	q.waiters = append(q.waiters, tid)
	q.mu.Unlock()
}

// Dequeue removes and returns the task at the head of the queue.
func (q *WaitQueue) Dequeue() (TaskID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiters) == 0 {
		return 0, false
	}
	tid := q.waiters[0]
	q.waiters = q.waiters[1:]
	return tid, true
}

// Remove drops tid from the queue if present (used when a sleep is cut short
// by a signal, per spec.md §5's EINTR contract).
func (q *WaitQueue) Remove(tid TaskID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, w := range q.waiters {
		if w == tid {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return
		}
	}
}

// Len returns the number of waiting tasks.
func (q *WaitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

// WakeOne wakes and removes the task at the head of the queue, if any.
func (q *WaitQueue) WakeOne() {
	if tid, ok := q.Dequeue(); ok {
		Scheduler.Wake(tid)
	}
}

// WakeAll wakes and removes every waiting task.
func (q *WaitQueue) WakeAll() {
	for {
		tid, ok := q.Dequeue()
		if !ok {
			return
		}
		Scheduler.Wake(tid)
	}
}

// Sleep enqueues the current task and blocks until woken or removed.
func (q *WaitQueue) Sleep() {
	tid := Scheduler.Current()
	q.Enqueue(tid)
	Scheduler.Block(func() {})
}
