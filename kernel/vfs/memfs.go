package vfs

import (
	"sync/atomic"
	"time"

	"rvos/kernel/kerrors"
	"rvos/kernel/sync"
)

// nextMemFSDev hands out a distinct device number to each memFS instance,
// so locking and stat's (dev, inode) pair stays unique across filesystems
// even though each one numbers its own inodes starting from 1.
var nextMemFSDev uint64

// memFS is the core's only built-in FileSystem: a plain in-memory tree,
// used for the test suite and as the root the boot sequence mounts before
// any real filesystem driver takes over (spec.md §1's Non-goals excludes
// concrete filesystems, but something has to answer Lookup on "/" before
// one is mounted).
type memFS struct {
	mu      sync.SpinLock
	root    *memInode
	dev     uint64
	nextIno uint64
}

// NewMemFS creates an empty in-memory filesystem with a root directory.
func NewMemFS() *memFS {
	fs := &memFS{dev: atomic.AddUint64(&nextMemFSDev, 1), nextIno: 1}
	fs.root = fs.newInode(TypeDirectory, 0755)
	return fs
}

func (fs *memFS) FSType() string    { return "memfs" }
func (fs *memFS) RootInode() Inode  { return fs.root }
func (fs *memFS) Sync() error       { return nil }
func (fs *memFS) Unmount() error    { return nil }
func (fs *memFS) Statfs() (StatFS, error) {
	return StatFS{BlockSize: 4096, Blocks: 1 << 20, BlocksFree: 1 << 19}, nil
}

func (fs *memFS) allocIno() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ino := fs.nextIno
	fs.nextIno++
	return ino
}

func (fs *memFS) newInode(t FileType, mode uint32) *memInode {
	now := time.Time{}
	return &memInode{
		fs:       fs,
		ino:      fs.allocIno(),
		fileType: t,
		mode:     mode,
		atime:    now,
		mtime:    now,
		ctime:    now,
		entries:  map[string]*memDentryEntry{},
	}
}

// memDentryEntry pairs a child name with the dentry memfs has already
// constructed for it, so repeated Lookups return the same Inode pointer.
type memDentryEntry struct {
	dentry *Dentry
}

// memInode is memfs's single Inode implementation: TypeRegular inodes hold
// data in a byte slice, TypeDirectory inodes hold named children,
// TypeSymlink inodes hold a target string.
type memInode struct {
	mu       sync.SpinLock
	fs       *memFS
	ino      uint64
	fileType FileType
	mode     uint32
	uid, gid uint32
	nlink    uint32
	data     []byte
	target   string // symlink target
	entries  map[string]*memDentryEntry
	atime, mtime, ctime time.Time
}

func (n *memInode) Metadata() (Metadata, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nlink := n.nlink
	if nlink == 0 {
		nlink = 1
	}
	return Metadata{
		InodeNo: n.ino,
		Type:    n.fileType,
		Size:    int64(len(n.data)),
		Mode:    n.mode,
		UID:     n.uid,
		GID:     n.gid,
		NLink:   nlink,
		Dev:     n.fs.dev,
		ATime:   n.atime,
		MTime:   n.mtime,
		CTime:   n.ctime,
	}, nil
}

func (n *memInode) ReadAt(buf []byte, offset int64) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fileType != TypeRegular {
		return 0, kerrors.ErrIsDirectory
	}
	if offset >= int64(len(n.data)) {
		return 0, nil
	}
	return copy(buf, n.data[offset:]), nil
}

func (n *memInode) WriteAt(buf []byte, offset int64) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fileType != TypeRegular {
		return 0, kerrors.ErrIsDirectory
	}
	end := offset + int64(len(buf))
	if end > int64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[offset:], buf)
	n.mtime = time.Time{}
	return len(buf), nil
}

func (n *memInode) Lookup(name string) (*Dentry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fileType != TypeDirectory {
		return nil, kerrors.ErrNotDirectory
	}
	e, ok := n.entries[name]
	if !ok {
		return nil, kerrors.ErrNotFound
	}
	return e.dentry, nil
}

func (n *memInode) Create(name string, fileType FileType, mode uint32) (*Dentry, error) {
	n.mu.Lock()
	if n.fileType != TypeDirectory {
		n.mu.Unlock()
		return nil, kerrors.ErrNotDirectory
	}
	if _, exists := n.entries[name]; exists {
		n.mu.Unlock()
		return nil, kerrors.ErrExists
	}
	child := n.fs.newInode(fileType, mode)
	child.nlink = 1
	n.mu.Unlock()

	d := NewDentry(name, child, nil)
	n.mu.Lock()
	n.entries[name] = &memDentryEntry{dentry: d}
	n.mu.Unlock()
	return d, nil
}

func (n *memInode) Mkdir(name string, mode uint32) (*Dentry, error) {
	return n.Create(name, TypeDirectory, mode)
}

func (n *memInode) Unlink(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.entries[name]
	if !ok {
		return kerrors.ErrNotFound
	}
	if inode, ok := e.dentry.Inode.(*memInode); ok && inode.fileType == TypeDirectory {
		return kerrors.ErrIsDirectory
	}
	delete(n.entries, name)
	return nil
}

func (n *memInode) Rmdir(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.entries[name]
	if !ok {
		return kerrors.ErrNotFound
	}
	inode, ok := e.dentry.Inode.(*memInode)
	if !ok || inode.fileType != TypeDirectory {
		return kerrors.ErrNotDirectory
	}
	inode.mu.Lock()
	empty := len(inode.entries) == 0
	inode.mu.Unlock()
	if !empty {
		return kerrors.ErrDirNotEmpty
	}
	delete(n.entries, name)
	return nil
}

func (n *memInode) Symlink(name, target string) (*Dentry, error) {
	d, err := n.Create(name, TypeSymlink, 0777)
	if err != nil {
		return nil, err
	}
	d.Inode.(*memInode).target = target
	return d, nil
}

func (n *memInode) Link(name string, target Inode) (*Dentry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.entries[name]; exists {
		return nil, kerrors.ErrExists
	}
	mi, ok := target.(*memInode)
	if !ok {
		return nil, kerrors.ErrCrossDevice
	}
	mi.mu.Lock()
	mi.nlink++
	mi.mu.Unlock()
	d := NewDentry(name, mi, nil)
	n.entries[name] = &memDentryEntry{dentry: d}
	return d, nil
}

func (n *memInode) Readlink() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fileType != TypeSymlink {
		return "", kerrors.ErrInvalidArgument
	}
	return n.target, nil
}

func (n *memInode) Mknod(name string, fileType FileType, mode uint32, dev uint64) (*Dentry, error) {
	return n.Create(name, fileType, mode)
}

func (n *memInode) Readdir() ([]DirEntry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fileType != TypeDirectory {
		return nil, kerrors.ErrNotDirectory
	}
	out := make([]DirEntry, 0, len(n.entries))
	for name, e := range n.entries {
		mi := e.dentry.Inode.(*memInode)
		out = append(out, DirEntry{Name: name, InodeNo: mi.ino, Type: mi.fileType})
	}
	return out, nil
}

func (n *memInode) Truncate(size int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fileType != TypeRegular {
		return kerrors.ErrIsDirectory
	}
	if size < int64(len(n.data)) {
		n.data = n.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, n.data)
	n.data = grown
	return nil
}

func (n *memInode) Chmod(mode uint32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mode = mode
	return nil
}

func (n *memInode) Chown(uid, gid uint32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.uid, n.gid = uid, gid
	return nil
}

func (n *memInode) SetTimes(atime, mtime time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.atime, n.mtime = atime, mtime
	return nil
}

func (n *memInode) Sync() error { return nil }
