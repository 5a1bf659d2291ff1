// Package vfs implements component C7's filesystem core (spec.md §4.8):
// dentries, inodes, the file abstraction, file descriptor tables, the mount
// table, pipes, stdio, and advisory locking. Concrete filesystems and block
// devices are out of scope (spec.md §1's Non-goals); this package defines
// only the trait contracts (spec.md §6) they would implement, plus an
// in-memory filesystem used by the test suite and by /init's tmpfs-style
// root before any real filesystem driver mounts over it.
//
// gopher-os never grew a VFS layer (device/tty and device/video/console are
// its only I/O-shaped code), so this package follows the repo's own
// established shape -- small interfaces, plain structs guarded by
// kernel/sync locks -- rather than adapting a specific teacher file.
package vfs

import "time"

// FileType classifies what an Inode represents.
type FileType int

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
	TypeCharDevice
	TypeBlockDevice
	TypeFIFO
	TypeSocket
)

// Metadata is the subset of stat(2) fields the core exposes.
type Metadata struct {
	InodeNo  uint64
	Type     FileType
	Size     int64
	Mode     uint32
	UID, GID uint32
	NLink    uint32
	Dev      uint64
	RDev     uint64
	ATime    time.Time
	MTime    time.Time
	CTime    time.Time
}

// DirEntry is one row of a readdir() result.
type DirEntry struct {
	Name    string
	InodeNo uint64
	Type    FileType
}

// Inode is the core's storage-object contract (spec.md §6's Inode trait).
// A concrete filesystem driver (out of scope) implements this; the in-memory
// filesystem in this package (memfs.go) is the only implementation the core
// itself ships.
type Inode interface {
	Metadata() (Metadata, error)
	ReadAt(buf []byte, offset int64) (int, error)
	WriteAt(buf []byte, offset int64) (int, error)

	Lookup(name string) (*Dentry, error)
	Create(name string, fileType FileType, mode uint32) (*Dentry, error)
	Mkdir(name string, mode uint32) (*Dentry, error)
	Unlink(name string) error
	Rmdir(name string) error
	Symlink(name, target string) (*Dentry, error)
	Link(name string, target Inode) (*Dentry, error)
	Readlink() (string, error)
	Mknod(name string, fileType FileType, mode uint32, dev uint64) (*Dentry, error)
	Readdir() ([]DirEntry, error)

	Truncate(size int64) error
	Chmod(mode uint32) error
	Chown(uid, gid uint32) error
	SetTimes(atime, mtime time.Time) error
	Sync() error
}

// FileSystem is the contract a mounted filesystem implements (spec.md §6).
type FileSystem interface {
	FSType() string
	RootInode() Inode
	Sync() error
	Unmount() error
	Statfs() (StatFS, error)
}

// StatFS is the statfs(2) result shape.
type StatFS struct {
	BlockSize  uint64
	Blocks     uint64
	BlocksFree uint64
	Files      uint64
	FilesFree  uint64
}

// IrqController is the interrupt controller contract (spec.md §6); the
// PLIC driver kernel/trap's external-interrupt path claims/completes
// through is out of scope, but this is the shape it must satisfy.
type IrqController interface {
	Claim() uint32
	Complete(irq uint32)
	Enable(irq uint32, cpu uint64)
}

// BlockDevice is the block-storage contract a filesystem driver reads/writes
// through.
type BlockDevice interface {
	ReadBlock(id uint64, buf []byte) error
	WriteBlock(id uint64, buf []byte) error
	BlockSize() uint32
	TotalBlocks() uint64
}

// CharDevice backs device nodes like /dev/ttyS0.
type CharDevice interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Ioctl(req uint64, arg uintptr) (uintptr, error)
}

// RtcDevice provides wall-clock time to gettimeofday/clock_gettime.
type RtcDevice interface {
	Now() (seconds int64, nanos int64)
}

// NetDevice is the network-interface contract; no syscalls in spec.md §4.9
// exercise it, but it is named in spec.md §6 as part of the core's device
// surface.
type NetDevice interface {
	Send(frame []byte) error
	Receive() ([]byte, bool)
	MAC() [6]byte
	MTU() int
}
