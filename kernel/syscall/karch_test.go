package syscall

import (
	"encoding/binary"
	"testing"

	"rvos/kernel/trap"
)

func TestKarchPsReportsRegisteredTasks(t *testing.T) {
	tk := newTestTask(t)
	mapUserPages(t, tk, 0x7000, 1)
	uva := uint64(0x7000 * 0x1000)

	total, err := sysKarchPs(tk, &trap.Frame{A0: uva, A1: 64})
	if err != nil {
		t.Fatalf("sysKarchPs: %v", err)
	}
	if total == 0 {
		t.Fatal("expected at least the calling task to be reported")
	}

	buf, cerr := CopyIn(tk.MemorySpace, uva, karchPsRowSize)
	if cerr != nil {
		t.Fatalf("CopyIn: %v", cerr)
	}
	gotTID := binary.LittleEndian.Uint64(buf[0:])
	gotPID := binary.LittleEndian.Uint64(buf[8:])
	if gotTID == 0 || gotPID == 0 {
		t.Fatal("first row should carry a real tid/pid")
	}
}

func TestKarchPsRespectsSmallerCapacity(t *testing.T) {
	tk := newTestTask(t)
	mapUserPages(t, tk, 0x7000, 1)
	uva := uint64(0x7000 * 0x1000)

	total, err := sysKarchPs(tk, &trap.Frame{A0: uva, A1: 0})
	if err != nil {
		t.Fatalf("sysKarchPs: %v", err)
	}
	if total == 0 {
		t.Fatal("the reported total task count should not depend on buffer capacity")
	}
}
