package syscall

import (
	"encoding/binary"

	"rvos/kernel/kerrors"
	"rvos/kernel/task"
	"rvos/kernel/trap"
	"rvos/kernel/vfs"
)

// rtc is the wall-clock source gettimeofday/clock_gettime read from, set by
// RegisterRtc. Nothing in this tree calls RegisterRtc, so rtc stays nil and
// both syscalls report the epoch rather than failing outright, since
// spec.md's Non-goals exclude concrete device drivers but a missing clock
// shouldn't break every timestamp-reading program.
var rtc vfs.RtcDevice

// RegisterRtc installs the wall-clock source gettimeofday/clock_gettime use.
func RegisterRtc(d vfs.RtcDevice) {
	rtc = d
}

func now() (int64, int64) {
	if rtc == nil {
		return 0, 0
	}
	return rtc.Now()
}

// clock_gettime/gettimeofday ids this core recognizes.
const (
	clockRealtime  = 0
	clockMonotonic = 1
)

func writeTimespec(t *task.Task, uva uint64, seconds, nanos int64) *kerrors.Error {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(seconds))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(nanos))
	return CopyOut(t.MemorySpace, uva, buf)
}

func sysGettimeofday(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	if f.A0 == 0 {
		return 0, nil
	}
	seconds, nanos := now()
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(seconds))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(nanos/1000)) // struct timeval wants microseconds
	if err := CopyOut(t.MemorySpace, f.A0, buf); err != nil {
		return 0, err
	}
	return 0, nil
}

func sysClockGettime(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	switch f.A0 {
	case clockRealtime, clockMonotonic:
	default:
		return 0, kerrors.ErrInvalidArgument
	}
	seconds, nanos := now()
	if err := writeTimespec(t, f.A1, seconds, nanos); err != nil {
		return 0, err
	}
	return 0, nil
}
