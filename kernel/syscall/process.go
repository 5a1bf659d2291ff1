package syscall

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/sched"
	"rvos/kernel/task"
	"rvos/kernel/trap"
	"rvos/kernel/vfs"
)

// sysClone implements both fork(2) (clone with no flags) and the clone(2)
// syscall glibc's fork() wrapper actually issues: spec.md §4.9 lists
// clone/fork together and §8's testable property is "fork followed by any
// syscall in the parent returns the child's tid; in the child, returns 0" --
// this baseline does not interpret clone's flags word (no CLONE_VM/threads),
// treating every clone as a fork.
func sysClone(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	child, err := t.Fork()
	if err != nil {
		return 0, err
	}
	child.TrapFrame.A0 = 0
	sched.Enqueue(child)
	return child.TID, nil
}

// sysExecve loads a new ELF image into the calling task's address space in
// place (spec.md §4.6's exec semantics: same tid/pid, fresh MemorySpace,
// argv/envp rebuilt on the new user stack). The actual load is
// kernel/elf's job; this handler only does the user-pointer marshalling
// execve's ABI requires.
func sysExecve(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	path, err := CopyInString(t.MemorySpace, f.A0, vfs.MaxPathLen)
	if err != nil {
		return 0, err
	}
	argv, err := copyInStringVector(t, f.A1)
	if err != nil {
		return 0, err
	}
	envp, err := copyInStringVector(t, f.A2)
	if err != nil {
		return 0, err
	}

	d, rerr := vfs.Resolve(resolveCtx(t), path, false)
	if rerr != nil {
		return 0, rerr
	}
	if eerr := Exec(t, d, argv, envp); eerr != nil {
		return 0, eerr
	}
	// execve never returns to the caller on success: the trap frame was
	// overwritten in place with the new program's entry point and stack.
	return 0, nil
}

func copyInStringVector(t *task.Task, uva uint64) ([]string, *kerrors.Error) {
	var out []string
	for i := 0; ; i++ {
		ptrBytes, err := CopyIn(t.MemorySpace, uva+uint64(i)*8, 8)
		if err != nil {
			return nil, err
		}
		ptr := uint64(ptrBytes[0]) | uint64(ptrBytes[1])<<8 | uint64(ptrBytes[2])<<16 | uint64(ptrBytes[3])<<24 |
			uint64(ptrBytes[4])<<32 | uint64(ptrBytes[5])<<40 | uint64(ptrBytes[6])<<48 | uint64(ptrBytes[7])<<56
		if ptr == 0 {
			break
		}
		s, serr := CopyInString(t.MemorySpace, ptr, vfs.MaxPathLen)
		if serr != nil {
			return nil, serr
		}
		out = append(out, s)
	}
	return out, nil
}

func sysExit(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	code := int(int64(f.A0))
	t.Exit(code)
	vfs.ReleaseLocksForTask(t.PID)
	sched.Yield()
	return 0, nil
}

func sysWait4(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	target := int64(f.A0)
	for {
		child, ok := reap(t, target)
		if ok {
			if f.A1 != 0 {
				status := make([]byte, 4)
				status[0] = byte(child.ExitCode << 8)
				status[1] = byte(child.ExitCode)
				if werr := CopyOut(t.MemorySpace, f.A1, status); werr != nil {
					return 0, werr
				}
			}
			return child.TID, nil
		}
		if len(t.Children()) == 0 {
			return 0, kerrors.ErrNoChild
		}
		sched.Sleep(task.InterruptibleSleep)
		if t.SignalPending&^t.SignalMask != 0 {
			return 0, kerrors.ErrInterrupted
		}
	}
}

func reap(t *task.Task, target int64) (*task.Task, bool) {
	if target <= 0 {
		return t.Wait()
	}
	for _, c := range t.Children() {
		if int64(c.TID) != target {
			continue
		}
		c.Lock()
		isZombie := c.State == task.Zombie
		c.Unlock()
		if isZombie {
			t.ReapChild(c)
			return c, true
		}
		return nil, false
	}
	return nil, false
}

func sysGetpid(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	return t.TID, nil
}

func sysGetppid(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	return t.PPID, nil
}

func sysSchedYield(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	sched.Yield()
	return 0, nil
}

func sysNanosleep(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	// No timer-queue integration exists yet for arbitrary durations
	// (spec.md §5's timeout mechanism is reserved for blocking syscalls
	// with a wait queue, not a bare sleep); a single voluntary
	// reschedule is the closest approximation available.
	sched.Yield()
	return 0, nil
}

func sysSetTidAddress(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	// clear_child_tid is a libc/pthread bookkeeping hint this baseline
	// does not act on (no futex-based thread join is implemented).
	return t.TID, nil
}
