package ipi

import (
	"testing"

	"rvos/kernel/percpu"
)

func TestSendAndHandleDispatchesSetBits(t *testing.T) {
	old := percpu.CurrentHartID
	defer func() { percpu.CurrentHartID = old }()

	var sentMasks []uint64
	SendFn = func(mask uint64) { sentMasks = append(sentMasks, mask) }
	defer func() { SendFn = func(uint64) {} }()

	percpu.CurrentHartID = func() uint64 { return 2 }
	Send(2, Reschedule)
	Send(2, TLBFlush)

	if len(sentMasks) != 2 || sentMasks[0] != 1<<2 {
		t.Fatalf("unexpected sent masks: %v", sentMasks)
	}

	var gotResched, gotFlush, gotStop bool
	Handle(
		func() { gotResched = true },
		func() { gotFlush = true },
		func() { gotStop = true },
	)

	if !gotResched || !gotFlush || gotStop {
		t.Errorf("resched=%v flush=%v stop=%v, want true,true,false", gotResched, gotFlush, gotStop)
	}

	// A second Handle with nothing pending should invoke nothing.
	gotResched, gotFlush, gotStop = false, false, false
	Handle(
		func() { gotResched = true },
		func() { gotFlush = true },
		func() { gotStop = true },
	)
	if gotResched || gotFlush || gotStop {
		t.Error("expected no pending IPIs after drain")
	}
}

func TestSendBatchTargetsMultipleHarts(t *testing.T) {
	old := percpu.CurrentHartID
	defer func() { percpu.CurrentHartID = old }()
	SendFn = func(uint64) {}

	SendBatch(0b101, Stop)

	percpu.CurrentHartID = func() uint64 { return 0 }
	var stopped0 bool
	Handle(nil, nil, func() { stopped0 = true })
	if !stopped0 {
		t.Error("hart 0 should have received Stop")
	}

	percpu.CurrentHartID = func() uint64 { return 1 }
	var stopped1 bool
	Handle(nil, nil, func() { stopped1 = true })
	if stopped1 {
		t.Error("hart 1 should not have received Stop")
	}

	percpu.CurrentHartID = func() uint64 { return 2 }
	var stopped2 bool
	Handle(nil, nil, func() { stopped2 = true })
	if !stopped2 {
		t.Error("hart 2 should have received Stop")
	}
}
