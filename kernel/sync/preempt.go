package sync

import "sync/atomic"

// PreemptCounter gates scheduler preemption of the current task while
// non-zero. Code that touches per-CPU state (component C3's per-CPU
// container) must bracket the access with Disable/Enable so that a timer
// interrupt cannot switch away mid-update. PreemptGuard is the RAII-style
// helper preferred by callers.
type PreemptCounter struct {
	depth uint32
}

// Disable increments the counter, disabling preemption.
func (c *PreemptCounter) Disable() {
	atomic.AddUint32(&c.depth, 1)
}

// Enable decrements the counter; preemption resumes once it reaches zero.
func (c *PreemptCounter) Enable() {
	atomic.AddUint32(&c.depth, ^uint32(0))
}

// Disabled reports whether preemption is currently disabled.
func (c *PreemptCounter) Disabled() bool {
	return atomic.LoadUint32(&c.depth) != 0
}

// PreemptGuard disables preemption for the lifetime of the guard.
type PreemptGuard struct {
	c *PreemptCounter
}

// Preempt returns a guard that disables preemption until Release is called.
func Preempt(c *PreemptCounter) PreemptGuard {
	c.Disable()
	return PreemptGuard{c: c}
}

// Release re-enables preemption.
func (g PreemptGuard) Release() {
	g.c.Enable()
}
