package vfs

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/sync"
)

// LockType mirrors fcntl's F_RDLCK/F_WRLCK/F_UNLCK.
type LockType int

const (
	ReadLock LockType = iota
	WriteLock
	Unlock
)

// FileLock describes one advisory byte-range lock (spec.md §4.8's advisory
// locking: "global table keyed by (device, inode); per-region {start, len,
// type, pid}").
type FileLock struct {
	Type  LockType
	Start int64
	Len   int64 // 0 means "to end of file"
	PID   uint64
}

func (l FileLock) overlaps(o FileLock) bool {
	lEnd := l.Start + l.Len
	oEnd := o.Start + o.Len
	if l.Len == 0 {
		lEnd = 1<<63 - 1
	}
	if o.Len == 0 {
		oEnd = 1<<63 - 1
	}
	return l.Start < oEnd && o.Start < lEnd
}

func (l FileLock) conflicts(o FileLock) bool {
	if l.PID == o.PID {
		return false
	}
	if l.Type == ReadLock && o.Type == ReadLock {
		return false
	}
	return l.overlaps(o)
}

// lockKey identifies the inode a set of locks is held against. Device is
// the filesystem's device number (each memFS instance gets its own from
// nextMemFSDev), so locks don't collide across distinct filesystems.
type lockKey struct {
	dev     uint64
	inodeNo uint64
}

type inodeLocks struct {
	locks []FileLock
}

// lockManager is the global table described by spec.md §4.8, keyed by
// (device, inode) rather than by File, so locks set through different fds
// on the same inode still see each other (POSIX fcntl semantics).
type heldByFile struct {
	key lockKey
	pid uint64
}

type lockManager struct {
	mu      sync.SpinLock
	byInode map[lockKey]*inodeLocks
	// byFile tracks which (key, pid) pairs a given File instance has taken,
	// so Close can release exactly the locks that file is responsible for.
	byFile map[File][]heldByFile
}

var globalLockManager = newLockManager()

func newLockManager() *lockManager {
	return &lockManager{byInode: map[lockKey]*inodeLocks{}, byFile: map[File][]heldByFile{}}
}

func keyOf(f File) lockKey {
	m, err := f.Metadata()
	if err != nil {
		return lockKey{}
	}
	return lockKey{dev: m.Dev, inodeNo: m.InodeNo}
}

// TestLock implements fcntl's F_GETLK: it reports a lock that would
// conflict with req, or req itself unchanged if none would.
func TestLock(f File, req FileLock) (FileLock, bool) {
	k := keyOf(f)
	m := &globalLockManager
	m.mu.Lock()
	defer m.mu.Unlock()
	il, ok := m.byInode[k]
	if !ok {
		return req, false
	}
	for _, held := range il.locks {
		if held.conflicts(req) {
			return held, true
		}
	}
	return req, false
}

// SetLock implements fcntl's F_SETLK: it takes or releases a lock
// non-blockingly, returning ErrWouldBlock on conflict. F_SETLKW (blocking
// acquire) is not implemented; callers that need it must poll via
// ErrWouldBlock, a documented baseline gap.
func SetLock(f File, req FileLock) *kerrors.Error {
	k := keyOf(f)
	m := &globalLockManager
	m.mu.Lock()
	defer m.mu.Unlock()

	il, ok := m.byInode[k]
	if !ok {
		il = &inodeLocks{}
		m.byInode[k] = il
	}

	if req.Type == Unlock {
		kept := il.locks[:0]
		for _, held := range il.locks {
			if held.PID == req.PID && held.overlaps(req) {
				continue
			}
			kept = append(kept, held)
		}
		il.locks = kept
		return nil
	}

	for _, held := range il.locks {
		if held.conflicts(req) {
			return kerrors.ErrWouldBlock
		}
	}
	il.locks = append(il.locks, req)
	m.byFile[f] = append(m.byFile[f], heldByFile{key: k, pid: req.PID})
	return nil
}

// ReleaseLocksForFile drops every lock f's closing task holds through f
// (spec.md §4.8: "locks are released on close() of the owning fd, or on
// task exit"). Called from RegFile.Close.
func ReleaseLocksForFile(f File) {
	m := &globalLockManager
	m.mu.Lock()
	held := m.byFile[f]
	delete(m.byFile, f)
	m.mu.Unlock()

	for _, h := range held {
		m.mu.Lock()
		il, ok := m.byInode[h.key]
		if ok {
			kept := il.locks[:0]
			for _, l := range il.locks {
				if l.PID == h.pid {
					continue
				}
				kept = append(kept, l)
			}
			il.locks = kept
		}
		m.mu.Unlock()
	}
}

// ReleaseLocksForTask drops every lock held by pid, across every inode
// (spec.md §4.8's "released ... on task exit").
func ReleaseLocksForTask(pid uint64) {
	m := &globalLockManager
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, il := range m.byInode {
		kept := il.locks[:0]
		for _, held := range il.locks {
			if held.PID == pid {
				continue
			}
			kept = append(kept, held)
		}
		il.locks = kept
	}
}
