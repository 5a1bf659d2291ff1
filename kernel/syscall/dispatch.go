package syscall

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/sched"
	"rvos/kernel/task"
	"rvos/kernel/trap"
)

// handlerFunc implements one syscall: t is the calling task, f is its trap
// frame (a0-a5 are the arguments; the handler's return value is written
// back to a0 by Dispatch). Handlers return a kernel *kerrors.Error rather
// than a raw errno so Dispatch can apply kerrors.Errno uniformly.
type handlerFunc func(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error)

var table = map[uint64]handlerFunc{
	SysRead:          sysRead,
	SysWrite:         sysWrite,
	SysOpenat:        sysOpenat,
	SysClose:         sysClose,
	SysLseek:         sysLseek,
	SysFstat:         sysFstat,
	SysNewfstatat:    sysNewfstatat,
	SysGetdents64:    sysGetdents64,
	SysPipe2:         sysPipe2,
	SysDup:           sysDup,
	SysDup2:          sysDup2,
	SysDup3:          sysDup3,
	SysFcntl:         sysFcntl,
	SysIoctl:         sysIoctl,
	SysMount:         sysMount,
	SysUmount2:       sysUmount2,
	SysChdir:         sysChdir,
	SysGetcwd:        sysGetcwd,
	SysMkdirat:       sysMkdirat,
	SysUnlinkat:      sysUnlinkat,
	SysLinkat:        sysLinkat,
	SysSymlinkat:     sysSymlinkat,
	SysReadlinkat:    sysReadlinkat,
	SysBrk:           sysBrk,
	SysMmap:          sysMmap,
	SysMunmap:        sysMunmap,
	SysMprotect:      sysMprotect,
	SysClone:         sysClone,
	SysExecve:        sysExecve,
	SysExit:          sysExit,
	SysExitGroup:     sysExit,
	SysWait4:         sysWait4,
	SysGetpid:        sysGetpid,
	SysGetppid:       sysGetppid,
	SysGettid:        sysGetpid,
	SysSchedYield:    sysSchedYield,
	SysNanosleep:     sysNanosleep,
	SysGettimeofday:  sysGettimeofday,
	SysClockGettime:  sysClockGettime,
	SysRtSigaction:   sysRtSigaction,
	SysRtSigprocmask: sysRtSigprocmask,
	SysKill:          sysKill,
	SysTgkill:        sysTgkill,
	SysRtSigreturn:   sysRtSigreturn,
	SysSetTidAddress: sysSetTidAddress,
	SysKarchPs:       sysKarchPs,
}

// Dispatch is installed as trap.SyscallHandler. It reads the syscall number
// from a7, looks up the handler, and writes the result (or negative errno)
// back into a0 (spec.md §4.5's ecall dispatch, §4.9's "returns a
// non-negative success value or a negative errno").
func Dispatch(f *trap.Frame) {
	t := sched.Current()
	if t == nil {
		f.A0 = uint64(kerrors.Errno(kerrors.ErrNoSuchSyscall))
		return
	}

	h, ok := table[f.A7]
	if !ok {
		f.A0 = uint64(kerrors.Errno(kerrors.ErrNoSuchSyscall))
		return
	}

	ret, err := h(t, f)
	if err != nil {
		f.A0 = uint64(kerrors.Errno(err))
		return
	}
	f.A0 = ret
}
