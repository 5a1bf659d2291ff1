package syscall

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/task"
	"rvos/kernel/trap"
	"rvos/kernel/vfs"
)

// RootMountTable is the single mount table the kernel's root namespace
// uses; kernel/boot installs it before mounting the root filesystem. Every
// task's Root dentry lives under it.
var RootMountTable = vfs.NewMountTable()

func sysMount(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	// source (a0) and filesystemtype (a2) are accepted but unused: this
	// baseline mounts whatever FileSystem was already constructed and
	// handed to kernel/boot's fstab, rather than probing a source device
	// (spec.md §1's Non-goals excludes concrete filesystem drivers).
	target, err := CopyInString(t.MemorySpace, f.A1, vfs.MaxPathLen)
	if err != nil {
		return 0, err
	}
	fs, ok := pendingMounts[target]
	if !ok {
		return 0, kerrors.ErrNoDevice
	}
	if merr := RootMountTable.Mount(resolveCtx(t), target, fs); merr != nil {
		return 0, merr
	}
	return 0, nil
}

// pendingMounts maps a target path to the FileSystem kernel/boot registered
// for it ahead of time (RegisterFilesystem), since spec.md's mount(2)
// surface takes a source string this core never resolves to a device.
var pendingMounts = map[string]vfs.FileSystem{}

// RegisterFilesystem makes fs available to a later mount(2) of target.
func RegisterFilesystem(target string, fs vfs.FileSystem) {
	pendingMounts[target] = fs
}

func sysUmount2(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	target, err := CopyInString(t.MemorySpace, f.A0, vfs.MaxPathLen)
	if err != nil {
		return 0, err
	}
	if merr := RootMountTable.Unmount(resolveCtx(t), target); merr != nil {
		return 0, merr
	}
	return 0, nil
}

func sysChdir(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	path, err := CopyInString(t.MemorySpace, f.A0, vfs.MaxPathLen)
	if err != nil {
		return 0, err
	}
	d, rerr := vfs.Resolve(resolveCtx(t), path, false)
	if rerr != nil {
		return 0, rerr
	}
	meta, merr := d.Inode.Metadata()
	if merr != nil {
		return 0, wrapErr(merr)
	}
	if meta.Type != vfs.TypeDirectory {
		return 0, kerrors.ErrNotDirectory
	}
	t.Lock()
	t.Cwd = d
	t.Unlock()
	return 0, nil
}

func sysGetcwd(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	t.Lock()
	path := t.Cwd.Path()
	t.Unlock()
	buf := append([]byte(path), 0)
	if uint64(len(buf)) > f.A1 {
		return 0, kerrors.ErrInvalidArgument
	}
	if werr := CopyOut(t.MemorySpace, f.A0, buf); werr != nil {
		return 0, werr
	}
	return f.A0, nil
}

func sysMkdirat(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	path, err := CopyInString(t.MemorySpace, f.A1, vfs.MaxPathLen)
	if err != nil {
		return 0, err
	}
	dir, name := splitParent(path)
	parent, perr := vfs.Resolve(resolveCtx(t), dir, false)
	if perr != nil {
		return 0, perr
	}
	if _, cerr := parent.Inode.Mkdir(name, uint32(f.A2)); cerr != nil {
		return 0, wrapErr(cerr)
	}
	return 0, nil
}

func sysUnlinkat(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	path, err := CopyInString(t.MemorySpace, f.A1, vfs.MaxPathLen)
	if err != nil {
		return 0, err
	}
	dir, name := splitParent(path)
	parent, perr := vfs.Resolve(resolveCtx(t), dir, false)
	if perr != nil {
		return 0, perr
	}
	const atRemoveDir = 0x200
	if f.A2&atRemoveDir != 0 {
		if rerr := parent.Inode.Rmdir(name); rerr != nil {
			return 0, wrapErr(rerr)
		}
		parent.Uncache(name)
		return 0, nil
	}
	if uerr := parent.Inode.Unlink(name); uerr != nil {
		return 0, wrapErr(uerr)
	}
	parent.Uncache(name)
	return 0, nil
}

func sysLinkat(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	oldPath, err := CopyInString(t.MemorySpace, f.A1, vfs.MaxPathLen)
	if err != nil {
		return 0, err
	}
	newPath, err := CopyInString(t.MemorySpace, f.A3, vfs.MaxPathLen)
	if err != nil {
		return 0, err
	}
	oldDentry, oerr := vfs.Resolve(resolveCtx(t), oldPath, false)
	if oerr != nil {
		return 0, oerr
	}
	dir, name := splitParent(newPath)
	parent, perr := vfs.Resolve(resolveCtx(t), dir, false)
	if perr != nil {
		return 0, perr
	}
	if _, lerr := parent.Inode.Link(name, oldDentry.Inode); lerr != nil {
		return 0, wrapErr(lerr)
	}
	return 0, nil
}

func sysSymlinkat(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	target, err := CopyInString(t.MemorySpace, f.A0, vfs.MaxPathLen)
	if err != nil {
		return 0, err
	}
	linkPath, err := CopyInString(t.MemorySpace, f.A2, vfs.MaxPathLen)
	if err != nil {
		return 0, err
	}
	dir, name := splitParent(linkPath)
	parent, perr := vfs.Resolve(resolveCtx(t), dir, false)
	if perr != nil {
		return 0, perr
	}
	if _, serr := parent.Inode.Symlink(name, target); serr != nil {
		return 0, wrapErr(serr)
	}
	return 0, nil
}

func sysReadlinkat(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	path, err := CopyInString(t.MemorySpace, f.A1, vfs.MaxPathLen)
	if err != nil {
		return 0, err
	}
	d, rerr := vfs.Resolve(resolveCtx(t), path, true)
	if rerr != nil {
		return 0, rerr
	}
	target, terr := d.Inode.Readlink()
	if terr != nil {
		return 0, wrapErr(terr)
	}
	buf := []byte(target)
	if uint64(len(buf)) > f.A3 {
		buf = buf[:f.A3]
	}
	if werr := CopyOut(t.MemorySpace, f.A2, buf); werr != nil {
		return 0, werr
	}
	return uint64(len(buf)), nil
}
