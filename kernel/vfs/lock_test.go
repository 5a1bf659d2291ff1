package vfs

import "testing"

func newLockTestFile(t *testing.T) *RegFile {
	fs := NewMemFS()
	d, err := fs.RootInode().Create("f", TypeRegular, 0644)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return NewRegFile(d, true, true, false)
}

func TestSetLockRejectsOverlappingWriteLocks(t *testing.T) {
	f := newLockTestFile(t)

	if err := SetLock(f, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 1}); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if err := SetLock(f, FileLock{Type: WriteLock, Start: 5, Len: 10, PID: 2}); err == nil {
		t.Fatal("overlapping write lock from a different pid should be rejected")
	}
}

func TestSetLockAllowsSharedReadLocks(t *testing.T) {
	f := newLockTestFile(t)

	if err := SetLock(f, FileLock{Type: ReadLock, Start: 0, Len: 10, PID: 1}); err != nil {
		t.Fatalf("first read lock: %v", err)
	}
	if err := SetLock(f, FileLock{Type: ReadLock, Start: 0, Len: 10, PID: 2}); err != nil {
		t.Fatalf("overlapping read lock from a different pid should be allowed: %v", err)
	}
}

func TestSetLockSamePIDNeverConflicts(t *testing.T) {
	f := newLockTestFile(t)

	if err := SetLock(f, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 1}); err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if err := SetLock(f, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 1}); err != nil {
		t.Fatalf("re-locking the same region from the same pid should succeed: %v", err)
	}
}

func TestTestLockReportsConflictWithoutAcquiring(t *testing.T) {
	f := newLockTestFile(t)
	SetLock(f, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 1})

	held, conflict := TestLock(f, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 2})
	if !conflict || held.PID != 1 {
		t.Fatalf("TestLock should report the conflicting holder's lock, got %+v conflict=%v", held, conflict)
	}
}

func TestUnlockReleasesRegion(t *testing.T) {
	f := newLockTestFile(t)
	SetLock(f, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 1})
	if err := SetLock(f, FileLock{Type: Unlock, Start: 0, Len: 10, PID: 1}); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := SetLock(f, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 2}); err != nil {
		t.Fatalf("lock should be free after unlock: %v", err)
	}
}

func TestReleaseLocksForFileDropsOnlyThatFilesLocks(t *testing.T) {
	f1 := newLockTestFile(t)
	SetLock(f1, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 1})

	ReleaseLocksForFile(f1)

	if err := SetLock(f1, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 2}); err != nil {
		t.Fatalf("lock should be free after ReleaseLocksForFile: %v", err)
	}
}

func TestReleaseLocksForTaskDropsAcrossInodes(t *testing.T) {
	f1 := newLockTestFile(t)
	f2 := newLockTestFile(t)
	SetLock(f1, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 7})
	SetLock(f2, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 7})

	ReleaseLocksForTask(7)

	if err := SetLock(f1, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 9}); err != nil {
		t.Fatalf("f1 lock should be free: %v", err)
	}
	if err := SetLock(f2, FileLock{Type: WriteLock, Start: 0, Len: 10, PID: 9}); err != nil {
		t.Fatalf("f2 lock should be free: %v", err)
	}
}
