package vfs

import "rvos/kernel/kerrors"

// ConsoleDevice is the minimal character-device contract StdioFile reads
// from and writes through (spec.md §6's CharDevice, narrowed to what a
// console backs). The real driver lives outside this package's scope;
// tests substitute an in-memory stand-in.
type ConsoleDevice interface {
	ReadByte() (byte, bool)
	WriteBytes(p []byte) int
}

// stdioKind distinguishes stdin from stdout/stderr so Readable/Writable
// report correctly without needing two nearly-identical types.
type stdioKind int

const (
	stdioIn stdioKind = iota
	stdioOut
)

// StdioFile wraps a console device as fd 0/1/2 (spec.md §4.8: "stdin reads
// from the console driver, stdout/stderr write to it; neither is
// seekable"). /init inherits these three already open, per spec.md §4.6.
type StdioFile struct {
	baseFile
	console ConsoleDevice
	kind    stdioKind
}

// NewStdin wraps console as a read-only stdio file.
func NewStdin(console ConsoleDevice) *StdioFile {
	return &StdioFile{console: console, kind: stdioIn}
}

// NewStdout wraps console as a write-only stdio file (used for both stdout
// and stderr; callers open two distinct fds over the same console).
func NewStdout(console ConsoleDevice) *StdioFile {
	return &StdioFile{console: console, kind: stdioOut}
}

func (f *StdioFile) Readable() bool { return f.kind == stdioIn }
func (f *StdioFile) Writable() bool { return f.kind == stdioOut }

func (f *StdioFile) Read(buf []byte) (int, *kerrors.Error) {
	if f.kind != stdioIn {
		return 0, kerrors.ErrBadFD
	}
	n := 0
	for n < len(buf) {
		b, ok := f.console.ReadByte()
		if !ok {
			break
		}
		buf[n] = b
		n++
	}
	return n, nil
}

func (f *StdioFile) Write(buf []byte) (int, *kerrors.Error) {
	if f.kind != stdioOut {
		return 0, kerrors.ErrBadFD
	}
	return f.console.WriteBytes(buf), nil
}

// Lseek is explicitly unsupported: stdio fds are never seekable.
func (f *StdioFile) Lseek(int64, int) (int64, *kerrors.Error) {
	return 0, kerrors.ErrNotSupported
}
