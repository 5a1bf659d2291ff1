package syscall

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/signal"
	"rvos/kernel/task"
	"rvos/kernel/trap"
)

// rt_sigprocmask's how values: add to, remove from, or replace the mask.
const (
	sigBlock   = 0
	sigUnblock = 1
	sigSetmask = 2
)

func sysRtSigaction(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	n := signal.Number(f.A0)
	if f.A1 != 0 {
		buf, err := CopyIn(t.MemorySpace, f.A1, 16)
		if err != nil {
			return 0, err
		}
		handler := uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
			uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56
		action := task.SignalAction{Handler: uintptr(handler)}
		switch handler {
		case 0: // SIG_DFL
			action.Default = true
		case 1: // SIG_IGN
			action.Ignore = true
		}
		if !signal.SetAction(t, n, action) {
			return 0, kerrors.ErrInvalidArgument
		}
	}
	return 0, nil
}

func sysRtSigprocmask(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	how := f.A0
	if f.A1 == 0 {
		return 0, nil
	}
	buf, err := CopyIn(t.MemorySpace, f.A1, 8)
	if err != nil {
		return 0, err
	}
	requested := uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
		uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56

	t.Lock()
	cur := t.SignalMask
	t.Unlock()

	var next uint64
	switch how {
	case sigBlock:
		next = cur | requested
	case sigUnblock:
		next = cur &^ requested
	case sigSetmask:
		next = requested
	default:
		return 0, kerrors.ErrInvalidArgument
	}
	signal.SetMask(t, next)
	return 0, nil
}

func sysKill(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	pid := int64(f.A0)
	n := signal.Number(f.A1)
	if pid <= 0 {
		// Process-group and "every process" targets aren't modeled
		// (this core has no group concept); only a single positive
		// pid delivers.
		return 0, kerrors.ErrInvalidArgument
	}
	target, ok := task.Lookup(uint64(pid))
	if !ok {
		return 0, kerrors.ErrNoSuchProcess
	}
	signal.Pending(target, n)
	return 0, nil
}

func sysTgkill(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	tid := f.A1
	n := signal.Number(f.A2)
	target, ok := task.Lookup(tid)
	if !ok {
		return 0, kerrors.ErrNoSuchProcess
	}
	signal.Pending(target, n)
	return 0, nil
}

// rt_sigreturn is reached through a genuine ecall: the trampoline page a
// handler's epilogue jumps back into does nothing but load a7 with this
// syscall's number and trap. The frame builder installed by kernel/boot
// saved the pre-signal register file to the user stack before diverting
// execution into the handler, so by the time the handler's own epilogue has
// unwound its locals, f.SP points at that saved copy again -- read it back
// and restore it into f, undoing everything the frame builder did. The four
// Kernel* fields of f are left untouched; they are per-task constants, not
// part of what a signal frame saves.
func sysRtSigreturn(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	buf, err := CopyIn(t.MemorySpace, f.SP, signal.SavedFrameSize)
	if err != nil {
		return 0, err
	}
	signal.UnmarshalFrame(buf, f)
	return f.A0, nil
}
