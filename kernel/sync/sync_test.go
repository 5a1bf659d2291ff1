package sync

import (
	"sync"
	"testing"
)

func TestSpinLockMutualExclusion(t *testing.T) {
	var l SpinLock
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()
	if counter != 5000 {
		t.Errorf("counter = %d, want 5000", counter)
	}
}

func TestSpinLockRestoresIRQState(t *testing.T) {
	enabled := true
	IRQControl.Enabled = func() bool { return enabled }
	IRQControl.Disable = func() { enabled = false }
	IRQControl.Enable = func() { enabled = true }
	defer func() {
		IRQControl.Enabled = func() bool { return true }
		IRQControl.Disable = func() {}
		IRQControl.Enable = func() {}
	}()

	var l SpinLock
	l.Lock()
	if enabled {
		t.Error("interrupts should be disabled while lock is held")
	}
	l.Unlock()
	if !enabled {
		t.Error("interrupts should be restored after Unlock")
	}
}

func TestTicketLockFIFO(t *testing.T) {
	var l TicketLock
	order := make([]int, 0, 10)
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Hold ticket 0 up front so every goroutine queues behind it; each one
	// records the ticket it was served with, and FIFO service means those
	// tickets come out in increasing order.
	l.Lock()
	started := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			started <- struct{}{}
			ticket := l.Lock()
			mu.Lock()
			order = append(order, int(ticket))
			mu.Unlock()
			l.Unlock()
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-started
	}
	l.Unlock()
	wg.Wait()

	if len(order) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(order))
	}
	for i, ticket := range order {
		if ticket != i+1 {
			t.Fatalf("tickets served out of order: %v", order)
		}
	}
}

func TestRWLockAllowsConcurrentReaders(t *testing.T) {
	var l RWLock
	l.RLock()
	l.RLock()
	// Should not deadlock: two readers can coexist.
	l.RUnlock()
	l.RUnlock()

	l.Lock()
	l.Unlock()
}

func TestPreemptCounter(t *testing.T) {
	var c PreemptCounter
	if c.Disabled() {
		t.Fatal("should start enabled")
	}
	g := Preempt(&c)
	if !c.Disabled() {
		t.Fatal("should be disabled after Preempt()")
	}
	g2 := Preempt(&c)
	g2.Release()
	if !c.Disabled() {
		t.Fatal("should still be disabled (nested guard)")
	}
	g.Release()
	if c.Disabled() {
		t.Fatal("should be enabled after all guards released")
	}
}

func TestWaitQueueFIFO(t *testing.T) {
	var q WaitQueue
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)
	q.Remove(2)

	first, ok := q.Dequeue()
	if !ok || first != 1 {
		t.Fatalf("expected 1, got %v ok=%v", first, ok)
	}
	second, ok := q.Dequeue()
	if !ok || second != 3 {
		t.Fatalf("expected 3 (2 was removed), got %v ok=%v", second, ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("queue should be empty")
	}
}
