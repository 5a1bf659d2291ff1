package syscall

import (
	"encoding/binary"

	"rvos/kernel/kerrors"
	"rvos/kernel/task"
	"rvos/kernel/trap"
	"rvos/kernel/vfs"
)

// Open flags (O_*), matching Linux's generic bit assignments.
const (
	oRDONLY  = 0x0
	oWRONLY  = 0x1
	oRDWR    = 0x2
	oCREAT   = 0x40
	oEXCL    = 0x80
	oTRUNC   = 0x200
	oAPPEND  = 0x400
	oCLOEXEC = 0x80000
)

func resolveCtx(t *task.Task) vfs.ResolveContext {
	return vfs.ResolveContext{Root: t.Root, Cwd: t.Cwd}
}

func sysRead(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	file, err := t.FDTable.Get(int(f.A0))
	if err != nil {
		return 0, err
	}
	buf := make([]byte, f.A2)
	n, rerr := file.Read(buf)
	if rerr != nil {
		return 0, rerr
	}
	if werr := CopyOut(t.MemorySpace, f.A1, buf[:n]); werr != nil {
		return 0, werr
	}
	return uint64(n), nil
}

func sysWrite(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	file, err := t.FDTable.Get(int(f.A0))
	if err != nil {
		return 0, err
	}
	buf, cerr := CopyIn(t.MemorySpace, f.A1, int(f.A2))
	if cerr != nil {
		return 0, cerr
	}
	n, werr := file.Write(buf)
	if werr != nil {
		return 0, werr
	}
	return uint64(n), nil
}

func sysOpenat(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	path, err := CopyInString(t.MemorySpace, f.A1, vfs.MaxPathLen)
	if err != nil {
		return 0, err
	}
	flags := f.A2
	mode := uint32(f.A3)

	d, rerr := vfs.Resolve(resolveCtx(t), path, false)
	if rerr != nil {
		if rerr != kerrors.ErrNotFound || flags&oCREAT == 0 {
			return 0, rerr
		}
		dir, name := splitParent(path)
		parent, perr := vfs.Resolve(resolveCtx(t), dir, false)
		if perr != nil {
			return 0, perr
		}
		created, cerr := parent.Inode.Create(name, vfs.TypeRegular, mode)
		if cerr != nil {
			return 0, wrapErr(cerr)
		}
		d = created
	} else if flags&(oCREAT|oEXCL) == oCREAT|oEXCL {
		return 0, kerrors.ErrExists
	}

	read := flags&oWRONLY == 0
	write := flags&(oWRONLY|oRDWR) != 0
	if flags&oTRUNC != 0 {
		if terr := d.Inode.Truncate(0); terr != nil {
			return 0, wrapErr(terr)
		}
	}
	rf := vfs.NewRegFile(d, read, write, flags&oAPPEND != 0)
	fd, aerr := t.FDTable.AllocWithFlags(rf, flags&oCLOEXEC != 0)
	if aerr != nil {
		return 0, aerr
	}
	return uint64(fd), nil
}

func sysClose(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	if err := t.FDTable.Close(int(f.A0)); err != nil {
		return 0, err
	}
	return 0, nil
}

func sysLseek(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	file, err := t.FDTable.Get(int(f.A0))
	if err != nil {
		return 0, err
	}
	off, serr := file.Lseek(int64(f.A1), int(f.A2))
	if serr != nil {
		return 0, serr
	}
	return uint64(off), nil
}

// statSize is the size of stat(2)'s wire layout, filled by marshalStat with
// only the fields spec.md's
// Metadata actually tracks; the rest of Linux's struct stat is padding on
// this kernel since no other field is ever populated meaningfully.
const statSize = 128

func marshalStat(m vfs.Metadata) []byte {
	buf := make([]byte, statSize)
	binary.LittleEndian.PutUint64(buf[0:], m.Dev)
	binary.LittleEndian.PutUint64(buf[8:], m.InodeNo)
	binary.LittleEndian.PutUint32(buf[16:], m.Mode|modeBitsFor(m.Type))
	binary.LittleEndian.PutUint32(buf[20:], m.NLink)
	binary.LittleEndian.PutUint32(buf[24:], m.UID)
	binary.LittleEndian.PutUint32(buf[28:], m.GID)
	binary.LittleEndian.PutUint64(buf[32:], m.RDev)
	binary.LittleEndian.PutUint64(buf[48:], uint64(m.Size))
	binary.LittleEndian.PutUint64(buf[72:], uint64(m.ATime.Unix()))
	binary.LittleEndian.PutUint64(buf[88:], uint64(m.MTime.Unix()))
	binary.LittleEndian.PutUint64(buf[104:], uint64(m.CTime.Unix()))
	return buf
}

func modeBitsFor(t vfs.FileType) uint32 {
	switch t {
	case vfs.TypeDirectory:
		return 0040000
	case vfs.TypeSymlink:
		return 0120000
	case vfs.TypeCharDevice:
		return 0020000
	case vfs.TypeBlockDevice:
		return 0060000
	case vfs.TypeFIFO:
		return 0010000
	case vfs.TypeSocket:
		return 0140000
	default:
		return 0100000
	}
}

func sysFstat(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	file, err := t.FDTable.Get(int(f.A0))
	if err != nil {
		return 0, err
	}
	meta, merr := file.Metadata()
	if merr != nil {
		return 0, merr
	}
	if werr := CopyOut(t.MemorySpace, f.A1, marshalStat(meta)); werr != nil {
		return 0, werr
	}
	return 0, nil
}

func sysNewfstatat(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	path, err := CopyInString(t.MemorySpace, f.A1, vfs.MaxPathLen)
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
	if werr := CopyOut(t.MemorySpace, f.A2, marshalStat(meta)); werr != nil {
		return 0, werr
	}
	return 0, nil
}

// sysGetdents64 writes records in Linux's linux_dirent64 layout: ino(8) off(8) reclen(2)
// type(1) name(variable, NUL-terminated), reclen rounded to 8 bytes.
func sysGetdents64(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	file, err := t.FDTable.Get(int(f.A0))
	if err != nil {
		return 0, err
	}
	dirEntries, derr := file.Inode().Readdir()
	if derr != nil {
		return 0, wrapErr(derr)
	}

	max := int(f.A2)
	out := make([]byte, 0, max)
	for i, e := range dirEntries {
		nameBytes := append([]byte(e.Name), 0)
		reclen := (19 + len(nameBytes) + 7) &^ 7
		if len(out)+reclen > max {
			break
		}
		rec := make([]byte, reclen)
		binary.LittleEndian.PutUint64(rec[0:], e.InodeNo)
		binary.LittleEndian.PutUint64(rec[8:], uint64(i+1))
		binary.LittleEndian.PutUint16(rec[16:], uint16(reclen))
		rec[18] = direntType(e.Type)
		copy(rec[19:], nameBytes)
		out = append(out, rec...)
	}
	if werr := CopyOut(t.MemorySpace, f.A1, out); werr != nil {
		return 0, werr
	}
	return uint64(len(out)), nil
}

func direntType(t vfs.FileType) byte {
	switch t {
	case vfs.TypeDirectory:
		return 4
	case vfs.TypeSymlink:
		return 10
	case vfs.TypeCharDevice:
		return 2
	case vfs.TypeBlockDevice:
		return 6
	case vfs.TypeFIFO:
		return 1
	case vfs.TypeSocket:
		return 12
	default:
		return 8
	}
}

func sysPipe2(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	r, w := vfs.NewPipe(vfs.DefaultPipeCapacity)
	cloexec := f.A1&oCLOEXEC != 0
	rfd, err := t.FDTable.AllocWithFlags(r, cloexec)
	if err != nil {
		return 0, err
	}
	wfd, err := t.FDTable.AllocWithFlags(w, cloexec)
	if err != nil {
		t.FDTable.Close(rfd)
		return 0, err
	}
	var fds [8]byte
	binary.LittleEndian.PutUint32(fds[0:], uint32(rfd))
	binary.LittleEndian.PutUint32(fds[4:], uint32(wfd))
	if werr := CopyOut(t.MemorySpace, f.A0, fds[:]); werr != nil {
		return 0, werr
	}
	return 0, nil
}

func sysDup(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	fd, err := t.FDTable.Dup(int(f.A0))
	if err != nil {
		return 0, err
	}
	return uint64(fd), nil
}

func sysDup2(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	fd, err := t.FDTable.Dup2(int(f.A0), int(f.A1))
	if err != nil {
		return 0, err
	}
	return uint64(fd), nil
}

func sysDup3(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	fd, err := t.FDTable.Dup3(int(f.A0), int(f.A1), f.A2&oCLOEXEC != 0)
	if err != nil {
		return 0, err
	}
	return uint64(fd), nil
}

// fcntl commands this kernel implements (spec.md §4.9's selected subset).
const (
	fGetFD   = 1
	fSetFD   = 2
	fGetFL   = 3
	fSetFL   = 4
	fGetLK   = 5
	fSetLK   = 6
	fSetLKW  = 7
	fDupFD   = 0
)

func sysFcntl(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	fd := int(f.A0)
	if _, err := t.FDTable.Get(fd); err != nil {
		return 0, err
	}
	switch f.A1 {
	case fDupFD:
		newFd, err := t.FDTable.Dup(fd)
		if err != nil {
			return 0, err
		}
		return uint64(newFd), nil
	case fGetFD:
		ce, err := t.FDTable.Cloexec(fd)
		if err != nil {
			return 0, err
		}
		if ce {
			return 1, nil
		}
		return 0, nil
	case fSetFD:
		if err := t.FDTable.SetCloexec(fd, f.A2 != 0); err != nil {
			return 0, err
		}
		return 0, nil
	case fGetFL, fSetFL:
		// Per-open-file status flags beyond O_APPEND are not modeled
		// separately from the File's own read/write booleans; report
		// success without changing anything.
		return 0, nil
	case fGetLK, fSetLK, fSetLKW:
		// F_SETLKW does not block: it is handled exactly like F_SETLK, so a
		// conflicting lock fails with ErrWouldBlock and callers retry.
		file, _ := t.FDTable.Get(fd)
		req, cerr := CopyIn(t.MemorySpace, f.A2, 24)
		if cerr != nil {
			return 0, cerr
		}
		lock := vfs.FileLock{
			Type:  vfs.LockType(binary.LittleEndian.Uint32(req[0:])),
			Start: int64(binary.LittleEndian.Uint64(req[8:])),
			Len:   int64(binary.LittleEndian.Uint64(req[16:])),
			PID:   t.PID,
		}
		if f.A1 == fGetLK {
			held, conflict := vfs.TestLock(file, lock)
			resp := make([]byte, 24)
			if conflict {
				binary.LittleEndian.PutUint32(resp[0:], uint32(held.Type))
				binary.LittleEndian.PutUint64(resp[8:], uint64(held.Start))
				binary.LittleEndian.PutUint64(resp[16:], uint64(held.Len))
			} else {
				binary.LittleEndian.PutUint32(resp[0:], uint32(vfs.Unlock))
			}
			if werr := CopyOut(t.MemorySpace, f.A2, resp); werr != nil {
				return 0, werr
			}
			return 0, nil
		}
		if serr := vfs.SetLock(file, lock); serr != nil {
			return 0, serr
		}
		return 0, nil
	}
	return 0, kerrors.ErrInvalidArgument
}

func sysIoctl(t *task.Task, f *trap.Frame) (uint64, *kerrors.Error) {
	// No CharDevice is wired to a live driver in this core (spec.md §1's
	// Non-goals excludes concrete device drivers); every ioctl on a
	// plain file or pipe is simply not a terminal control operation.
	return 0, kerrors.ErrNotSupported
}

func splitParent(path string) (dir, name string) {
	last := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			last = i
			break
		}
	}
	if last < 0 {
		return ".", path
	}
	if last == 0 {
		return "/", path[1:]
	}
	return path[:last], path[last+1:]
}

func wrapErr(err error) *kerrors.Error {
	if err == nil {
		return nil
	}
	if ke, ok := err.(*kerrors.Error); ok {
		return ke
	}
	return kerrors.ErrIO
}
