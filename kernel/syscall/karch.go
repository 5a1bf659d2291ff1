package syscall

import (
	"encoding/binary"

	"rvos/kernel/kerrors"
	"rvos/kernel/task"
	"rvos/kernel/trap"
)

// karchPsRowSize is the packed wire size of one task.Info row: four
// uint64s (tid, pid, ppid, numChildren packed as uint64) plus a uint32
// state and int32 exit code.
const karchPsRowSize = 4*8 + 4 + 4

// sysKarchPs implements the non-POSIX debug syscall SPEC_FULL.md's process
// introspection note describes: a is a user buffer, f.A1 its capacity in
// rows. Returns the number of tasks actually registered, which may exceed
// the rows copied out if the buffer was too small -- callers retry with a
// bigger buffer the way getdents64 callers do.
func sysKarchPs(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	rows := task.Snapshot()
	capacity := int(f.A1)
	n := len(rows)
	if n > capacity {
		n = capacity
	}

	buf := make([]byte, n*karchPsRowSize)
	for i := 0; i < n; i++ {
		r := rows[i]
		off := i * karchPsRowSize
		binary.LittleEndian.PutUint64(buf[off:], r.TID)
		binary.LittleEndian.PutUint64(buf[off+8:], r.PID)
		binary.LittleEndian.PutUint64(buf[off+16:], r.PPID)
		binary.LittleEndian.PutUint64(buf[off+24:], uint64(r.NumChildren))
		binary.LittleEndian.PutUint32(buf[off+32:], uint32(r.State))
		binary.LittleEndian.PutUint32(buf[off+36:], uint32(r.ExitCode))
	}
	if n > 0 {
		if err := CopyOut(t.MemorySpace, f.A0, buf); err != nil {
			return 0, err
		}
	}
	return uint64(len(rows)), nil
}
