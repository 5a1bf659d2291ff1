package sync

import "sync/atomic"

// TicketLock provides FIFO fairness: waiters are served in the order they
// arrived, unlike SpinLock where a newly-arriving hart can race an
// already-waiting one for the cache line. Used where starvation of a waiter
// under contention would be unacceptable (spec.md §4.3).
type TicketLock struct {
	nextTicket   uint64
	servingTicket uint64
}

// Lock blocks until this caller's ticket is being served.
func (l *TicketLock) Lock() uint64 {
	my := atomic.AddUint64(&l.nextTicket, 1) - 1
	for atomic.LoadUint64(&l.servingTicket) != my {
		// busy wait
	}
	return my
}

// Unlock advances service to the next ticket.
func (l *TicketLock) Unlock() {
	atomic.AddUint64(&l.servingTicket, 1)
}
