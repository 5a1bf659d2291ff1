package syscall

import (
	"testing"

	"rvos/kernel/signal"
	"rvos/kernel/trap"
)

func TestKillSetsPendingBitOnTarget(t *testing.T) {
	sender := newTestTask(t)
	target := newTestTask(t)

	f := &trap.Frame{A0: target.PID, A1: uint64(signal.SIGUSR1)}
	if _, err := sysKill(sender, f); err != nil {
		t.Fatalf("sysKill: %v", err)
	}
	if target.SignalPending&(1<<(signal.SIGUSR1-1)) == 0 {
		t.Fatal("target should have SIGUSR1 pending after kill")
	}
}

func TestKillRejectsNonPositivePID(t *testing.T) {
	sender := newTestTask(t)
	if _, err := sysKill(sender, &trap.Frame{A0: 0, A1: uint64(signal.SIGTERM)}); err == nil {
		t.Fatal("kill with pid <= 0 should fail on this baseline")
	}
}

func TestRtSigprocmaskSetsMask(t *testing.T) {
	tk := newTestTask(t)
	mapUserPages(t, tk, 0x6000, 1)
	uva := uint64(0x6000 * 0x1000)

	want := uint64(1 << (signal.SIGUSR2 - 1))
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(want >> (8 * i))
	}
	if err := CopyOut(tk.MemorySpace, uva, buf); err != nil {
		t.Fatalf("CopyOut: %v", err)
	}

	if _, err := sysRtSigprocmask(tk, &trap.Frame{A0: sigSetmask, A1: uva}); err != nil {
		t.Fatalf("sysRtSigprocmask: %v", err)
	}
	if tk.SignalMask != want {
		t.Fatalf("SignalMask = %#x, want %#x", tk.SignalMask, want)
	}
}

func TestTgkillTargetsSpecificTask(t *testing.T) {
	sender := newTestTask(t)
	target := newTestTask(t)

	if _, err := sysTgkill(sender, &trap.Frame{A1: target.TID, A2: uint64(signal.SIGHUP)}); err != nil {
		t.Fatalf("sysTgkill: %v", err)
	}
	if target.SignalPending&(1<<(signal.SIGHUP-1)) == 0 {
		t.Fatal("target should have SIGHUP pending after tgkill")
	}
}
