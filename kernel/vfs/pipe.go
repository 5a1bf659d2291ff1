package vfs

import (
	"rvos/kernel/kerrors"
	"rvos/kernel/sync"
)

// DefaultPipeCapacity is the default ring-buffer size for a new pipe
// (spec.md §4.8: "default 4 KiB, min/max bounded").
const DefaultPipeCapacity = 4096

// MinPipeCapacity and MaxPipeCapacity bound a caller-requested pipe size
// (F_SETPIPE_SZ is not in the spec.md §4.9 syscall list, but the bounds
// still apply to NewPipe for anything that constructs one directly).
const (
	MinPipeCapacity = 512
	MaxPipeCapacity = 1 << 20
)

// PipeBufAtomic is PIPE_BUF: writes at or below this size are atomic with
// respect to other writers (spec.md §4.8).
const PipeBufAtomic = 4096

// pipeBuffer is the shared ring buffer backing both ends of a pipe.
type pipeBuffer struct {
	mu         sync.SpinLock
	notEmpty   sync.WaitQueue
	notFull    sync.WaitQueue
	data       []byte
	head, size int
	readers    int
	writers    int
}

// NewPipe creates a connected (readEnd, writeEnd) pair sharing one ring
// buffer of capacity bytes (spec.md §4.8's Pipe).
func NewPipe(capacity int) (*PipeReadEnd, *PipeWriteEnd) {
	if capacity < MinPipeCapacity {
		capacity = MinPipeCapacity
	}
	if capacity > MaxPipeCapacity {
		capacity = MaxPipeCapacity
	}
	buf := &pipeBuffer{data: make([]byte, capacity), readers: 1, writers: 1}
	return &PipeReadEnd{buf: buf}, &PipeWriteEnd{buf: buf}
}

// PipeReadEnd is the read half of a pipe.
type PipeReadEnd struct {
	baseFile
	buf    *pipeBuffer
	closed bool
}

func (r *PipeReadEnd) Readable() bool { return true }

// Read blocks while the buffer is empty and the write end is still open;
// returns 0 once the buffer is empty and the write end has closed (EOF).
func (r *PipeReadEnd) Read(out []byte) (int, *kerrors.Error) {
	b := r.buf
	b.mu.Lock()
	for b.size == 0 && b.writers > 0 {
		b.mu.Unlock()
		b.notEmpty.Sleep()
		b.mu.Lock()
	}
	n := 0
	for n < len(out) && b.size > 0 {
		out[n] = b.data[b.head]
		b.head = (b.head + 1) % len(b.data)
		b.size--
		n++
	}
	b.mu.Unlock()
	if n > 0 {
		b.notFull.WakeOne()
	}
	return n, nil
}

func (r *PipeReadEnd) Close() *kerrors.Error {
	if r.closed {
		return nil
	}
	r.closed = true
	b := r.buf
	b.mu.Lock()
	b.readers--
	b.mu.Unlock()
	b.notFull.WakeAll()
	return nil
}

// PipeWriteEnd is the write half of a pipe.
type PipeWriteEnd struct {
	baseFile
	buf    *pipeBuffer
	closed bool
}

func (w *PipeWriteEnd) Writable() bool { return true }

// Write blocks while the buffer is full and the read end is still open;
// fails with BrokenPipe once the read end has closed. Writes at or below
// PipeBufAtomic either land in full or not at all (spec.md §4.8's atomicity
// guarantee); larger writes may be split across multiple buffer-full waits
// and so may interleave with other writers, as documented.
func (w *PipeWriteEnd) Write(in []byte) (int, *kerrors.Error) {
	b := w.buf
	b.mu.Lock()

	if b.readers == 0 {
		b.mu.Unlock()
		return 0, kerrors.ErrBrokenPipe
	}

	capacity := len(b.data)
	if len(in) <= PipeBufAtomic {
		for capacity-b.size < len(in) {
			if b.readers == 0 {
				b.mu.Unlock()
				return 0, kerrors.ErrBrokenPipe
			}
			b.mu.Unlock()
			b.notFull.Sleep()
			b.mu.Lock()
		}
	}

	n := 0
	for n < len(in) {
		for b.size == capacity {
			if b.readers == 0 {
				b.notEmpty.WakeAll()
				b.mu.Unlock()
				return n, kerrors.ErrBrokenPipe
			}
			b.mu.Unlock()
			b.notFull.Sleep()
			b.mu.Lock()
		}
		tail := (b.head + b.size) % capacity
		b.data[tail] = in[n]
		b.size++
		n++
	}
	b.notEmpty.WakeAll()
	b.mu.Unlock()
	return n, nil
}

func (w *PipeWriteEnd) Close() *kerrors.Error {
	if w.closed {
		return nil
	}
	w.closed = true
	b := w.buf
	b.mu.Lock()
	b.writers--
	b.mu.Unlock()
	b.notEmpty.WakeAll()
	return nil
}
