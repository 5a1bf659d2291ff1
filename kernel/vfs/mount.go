package vfs

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/sync"
)

// mountPoint records one filesystem mounted at a path.
type mountPoint struct {
	fs   FileSystem
	root *Dentry
	// covers is the dentry that was standing at this path before this
	// filesystem was mounted over it, restored on umount.
	covers *Dentry
}

// MountTable tracks every mounted filesystem, keyed by the absolute path it
// is mounted at (spec.md §4.8's mount table). Stacked mounts at the same
// path are supported: umount reveals whatever was mounted there before.
type MountTable struct {
	mu     sync.SpinLock
	stacks map[string][]*mountPoint
}

// NewMountTable creates an empty mount table.
func NewMountTable() *MountTable {
	return &MountTable{stacks: map[string][]*mountPoint{}}
}

// Mount grafts fs's root inode onto the dentry at path, making path resolve
// transparently into fs from then on (spec.md §4.8: "mount grafts a
// filesystem's root onto an existing dentry; resolution crosses the
// boundary transparently").
func (m *MountTable) Mount(ctx ResolveContext, path string, fs FileSystem) *kerrors.Error {
	target, err := Resolve(ctx, path, true)
	if err != nil {
		return err
	}
	meta, merr := target.Inode.Metadata()
	if merr != nil {
		return wrapIOError(merr)
	}
	if meta.Type != TypeDirectory {
		return kerrors.ErrNotDirectory
	}

	root := NewDentry(target.Name, fs.RootInode(), target.Parent)

	m.mu.Lock()
	defer m.mu.Unlock()
	covers := target.MountRoot
	target.MountRoot = root
	m.stacks[path] = append(m.stacks[path], &mountPoint{fs: fs, root: root, covers: covers})
	return nil
}

// Unmount reverses the most recent Mount at path, restoring whatever
// filesystem (or lack of one) was there before. Returns ErrBusy if path has
// no active mount.
func (m *MountTable) Unmount(ctx ResolveContext, path string) *kerrors.Error {
	target, err := Resolve(ctx, path, true)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.stacks[path]
	if len(stack) == 0 {
		return kerrors.ErrBusy
	}
	top := stack[len(stack)-1]
	if serr := top.fs.Sync(); serr != nil {
		return wrapIOError(serr)
	}
	if uerr := top.fs.Unmount(); uerr != nil {
		return wrapIOError(uerr)
	}
	target.MountRoot = top.covers
	m.stacks[path] = stack[:len(stack)-1]
	if len(m.stacks[path]) == 0 {
		delete(m.stacks, path)
	}
	return nil
}

// FindMount reports the filesystem currently mounted at path, if any
// (spec.md §4.8's find_mount).
func (m *MountTable) FindMount(path string) (FileSystem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.stacks[path]
	if len(stack) == 0 {
		return nil, false
	}
	return stack[len(stack)-1].fs, true
}
