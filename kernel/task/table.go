package task

import "rvos/kernel/sync"

var (
	tableMu sync.SpinLock
	table   = map[uint64]*Task{}
	nextTID uint64
)

// InitTask is PID 1, the reparenting target for orphaned children (spec.md
// §4.6's exit semantics: "reparent children to PID 1"). kernel/boot sets
// this once it has created the first task; nil until then, in which case
// Exit leaves orphans parentless (only possible before /init itself runs).
var InitTask *Task

// allocTID returns a fresh task ID. Called with tableMu held.
func allocTID() uint64 {
	nextTID++
	return nextTID
}

// Register adds t to the global task table, keyed by TID.
func Register(t *Task) {
	tableMu.Lock()
	defer tableMu.Unlock()
	table[t.TID] = t
}

// Unregister removes t from the global task table (called once its Zombie
// entry has been reaped).
func Unregister(tid uint64) {
	tableMu.Lock()
	defer tableMu.Unlock()
	delete(table, tid)
}

// Lookup finds a task by TID.
func Lookup(tid uint64) (*Task, bool) {
	tableMu.Lock()
	defer tableMu.Unlock()
	t, ok := table[tid]
	return t, ok
}

// All returns a snapshot of every task currently registered, in no
// particular order. Used by Snapshot.
func All() []*Task {
	tableMu.Lock()
	defer tableMu.Unlock()
	out := make([]*Task, 0, len(table))
	for _, t := range table {
		out = append(out, t)
	}
	return out
}
