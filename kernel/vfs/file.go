package vfs

import (
	"sync/atomic"

	"rvos/kernel/kerrors"
)

// Whence values for lseek (matching Linux's SEEK_SET/CUR/END).
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// File is the core's open-file contract (spec.md §4.8's File contract).
// Every concrete file type -- RegFile, Pipe, StdioFile -- implements it;
// operations a type does not support return ErrNotSupported rather than
// being absent, so callers can treat every fd uniformly.
type File interface {
	Readable() bool
	Writable() bool
	Read(buf []byte) (int, *kerrors.Error)
	Write(buf []byte) (int, *kerrors.Error)
	Metadata() (Metadata, *kerrors.Error)
	Lseek(offset int64, whence int) (int64, *kerrors.Error)
	Dentry() *Dentry
	Inode() Inode
	Close() *kerrors.Error
}

// baseFile supplies the NotSupported default for every File method, so each
// concrete type only needs to override what it actually implements (the
// same "default then override" shape gopher-os uses for its Console
// interface default methods).
type baseFile struct{}

func (baseFile) Readable() bool                               { return false }
func (baseFile) Writable() bool                                { return false }
func (baseFile) Read(buf []byte) (int, *kerrors.Error)         { return 0, kerrors.ErrNotSupported }
func (baseFile) Write(buf []byte) (int, *kerrors.Error)        { return 0, kerrors.ErrNotSupported }
func (baseFile) Metadata() (Metadata, *kerrors.Error)          { return Metadata{}, kerrors.ErrNotSupported }
func (baseFile) Lseek(int64, int) (int64, *kerrors.Error)      { return 0, kerrors.ErrNotSupported }
func (baseFile) Dentry() *Dentry                               { return nil }
func (baseFile) Inode() Inode                                  { return nil }
func (baseFile) Close() *kerrors.Error                         { return nil }

// RegFile wraps a dentry with an atomic offset (spec.md §4.8's RegFile):
// read/write delegate to the inode's ReadAt/WriteAt and advance offset;
// O_APPEND forces every write to the current end of file first.
type RegFile struct {
	baseFile
	dentry  *Dentry
	offset  int64
	append  bool
	read    bool
	write   bool
	closed  int32
}

// NewRegFile opens dentry for reading and/or writing.
func NewRegFile(d *Dentry, read, write, appendMode bool) *RegFile {
	return &RegFile{dentry: d, read: read, write: write, append: appendMode}
}

func (f *RegFile) Readable() bool { return f.read }
func (f *RegFile) Writable() bool { return f.write }

func (f *RegFile) Read(buf []byte) (int, *kerrors.Error) {
	if !f.read {
		return 0, kerrors.ErrBadFD
	}
	off := atomic.LoadInt64(&f.offset)
	n, err := f.dentry.Inode.ReadAt(buf, off)
	if n > 0 {
		atomic.AddInt64(&f.offset, int64(n))
	}
	return n, wrapIOError(err)
}

func (f *RegFile) Write(buf []byte) (int, *kerrors.Error) {
	if !f.write {
		return 0, kerrors.ErrBadFD
	}
	off := atomic.LoadInt64(&f.offset)
	if f.append {
		meta, err := f.dentry.Inode.Metadata()
		if err == nil {
			off = meta.Size
		}
	}
	n, err := f.dentry.Inode.WriteAt(buf, off)
	if n > 0 {
		atomic.StoreInt64(&f.offset, off+int64(n))
	}
	return n, wrapIOError(err)
}

func (f *RegFile) Metadata() (Metadata, *kerrors.Error) {
	m, err := f.dentry.Inode.Metadata()
	return m, wrapIOError(err)
}

func (f *RegFile) Lseek(offset int64, whence int) (int64, *kerrors.Error) {
	switch whence {
	case SeekSet:
		atomic.StoreInt64(&f.offset, offset)
	case SeekCur:
		atomic.AddInt64(&f.offset, offset)
	case SeekEnd:
		meta, err := f.dentry.Inode.Metadata()
		if err != nil {
			return 0, wrapIOError(err)
		}
		atomic.StoreInt64(&f.offset, meta.Size+offset)
	default:
		return 0, kerrors.ErrInvalidArgument
	}
	return atomic.LoadInt64(&f.offset), nil
}

func (f *RegFile) Dentry() *Dentry { return f.dentry }
func (f *RegFile) Inode() Inode    { return f.dentry.Inode }

func (f *RegFile) Close() *kerrors.Error {
	atomic.StoreInt32(&f.closed, 1)
	ReleaseLocksForFile(f)
	return nil
}

func wrapIOError(err error) *kerrors.Error {
	if err == nil {
		return nil
	}
	if kerr, ok := err.(*kerrors.Error); ok {
		return kerr
	}
	return kerrors.ErrIO
}
