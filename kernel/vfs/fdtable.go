package vfs

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/sync"
)

// MaxOpenFiles bounds the size of one task's FDTable (spec.md §4.9's
// EMFILE case).
const MaxOpenFiles = 256

// fdEntry pairs an open File with its close-on-exec flag.
type fdEntry struct {
	file    File
	cloexec bool
}

// FDTable is one task's open-file table (spec.md §4.8). Fork gives the
// child a private copy of the table (Clone); the Files in it stay shared.
type FDTable struct {
	mu      sync.SpinLock
	entries [MaxOpenFiles]*fdEntry
}

// Alloc installs file at the lowest free index (spec.md §4.8's alloc).
func (t *FDTable) Alloc(file File) (int, *kerrors.Error) {
	return t.AllocWithFlags(file, false)
}

// AllocWithFlags installs file at the lowest free index with the given
// close-on-exec flag.
func (t *FDTable) AllocWithFlags(file File, cloexec bool) (int, *kerrors.Error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		if t.entries[i] == nil {
			t.entries[i] = &fdEntry{file: file, cloexec: cloexec}
			return i, nil
		}
	}
	return -1, kerrors.ErrTooManyOpenFiles
}

// InstallAt replaces (or extends to) index fd with file, closing whatever
// was there first.
func (t *FDTable) InstallAt(fd int, file File, cloexec bool) *kerrors.Error {
	if fd < 0 || fd >= MaxOpenFiles {
		return kerrors.ErrBadFD
	}
	t.mu.Lock()
	old := t.entries[fd]
	t.entries[fd] = &fdEntry{file: file, cloexec: cloexec}
	t.mu.Unlock()
	if old != nil {
		old.file.Close()
	}
	return nil
}

// Get returns the File at fd.
func (t *FDTable) Get(fd int) (File, *kerrors.Error) {
	if fd < 0 || fd >= MaxOpenFiles {
		return nil, kerrors.ErrBadFD
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[fd]
	if e == nil {
		return nil, kerrors.ErrBadFD
	}
	return e.file, nil
}

// Close removes and closes fd.
func (t *FDTable) Close(fd int) *kerrors.Error {
	if fd < 0 || fd >= MaxOpenFiles {
		return kerrors.ErrBadFD
	}
	t.mu.Lock()
	e := t.entries[fd]
	t.entries[fd] = nil
	t.mu.Unlock()
	if e == nil {
		return kerrors.ErrBadFD
	}
	return e.file.Close()
}

// Dup allocates a new fd referring to the same File as old (spec.md §4.8's
// dup).
func (t *FDTable) Dup(old int) (int, *kerrors.Error) {
	f, err := t.Get(old)
	if err != nil {
		return -1, err
	}
	return t.Alloc(f)
}

// Dup2 installs old's File at new, closing whatever new held first; if
// old == new it is a no-op that returns new unchanged (spec.md §4.8).
func (t *FDTable) Dup2(old, new int) (int, *kerrors.Error) {
	if old == new {
		if _, err := t.Get(old); err != nil {
			return -1, err
		}
		return new, nil
	}
	f, err := t.Get(old)
	if err != nil {
		return -1, err
	}
	if err := t.InstallAt(new, f, false); err != nil {
		return -1, err
	}
	return new, nil
}

// Dup3 is Dup2 but rejects old == new (spec.md §4.8).
func (t *FDTable) Dup3(old, new int, cloexec bool) (int, *kerrors.Error) {
	if old == new {
		return -1, kerrors.ErrInvalidArgument
	}
	f, err := t.Get(old)
	if err != nil {
		return -1, err
	}
	if err := t.InstallAt(new, f, cloexec); err != nil {
		return -1, err
	}
	return new, nil
}

// SetCloexec toggles fd's close-on-exec flag (fcntl F_SETFD).
func (t *FDTable) SetCloexec(fd int, cloexec bool) *kerrors.Error {
	if fd < 0 || fd >= MaxOpenFiles {
		return kerrors.ErrBadFD
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[fd]
	if e == nil {
		return kerrors.ErrBadFD
	}
	e.cloexec = cloexec
	return nil
}

// Cloexec reports fd's close-on-exec flag.
func (t *FDTable) Cloexec(fd int) (bool, *kerrors.Error) {
	if fd < 0 || fd >= MaxOpenFiles {
		return false, kerrors.ErrBadFD
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[fd]
	if e == nil {
		return false, kerrors.ErrBadFD
	}
	return e.cloexec, nil
}

// CloseCloexec closes every fd flagged close-on-exec (used by execve).
func (t *FDTable) CloseCloexec() {
	t.mu.Lock()
	var toClose []File
	for i := range t.entries {
		if e := t.entries[i]; e != nil && e.cloexec {
			toClose = append(toClose, e.file)
			t.entries[i] = nil
		}
	}
	t.mu.Unlock()
	for _, f := range toClose {
		f.Close()
	}
}

// Clone returns a private copy of t sharing the same underlying Files (used
// by kernel/task's Fork to give the child its own table).
func (t *FDTable) Clone() *FDTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	clone := &FDTable{}
	for i := range t.entries {
		if t.entries[i] != nil {
			e := *t.entries[i]
			clone.entries[i] = &e
		}
	}
	return clone
}
