package vfs

import "testing"

func TestPipeWriteThenReadRoundTrips(t *testing.T) {
	r, w := NewPipe(MinPipeCapacity)

	n, err := w.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}

	buf := make([]byte, 5)
	n, err = r.Read(buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("Read: n=%d err=%v buf=%q", n, err, buf)
	}
}

func TestPipeReadAfterWriterCloseReturnsEOF(t *testing.T) {
	r, w := NewPipe(MinPipeCapacity)
	w.Write([]byte("x"))
	w.Close()

	buf := make([]byte, 1)
	n, err := r.Read(buf)
	if err != nil || n != 1 {
		t.Fatalf("Read of buffered byte: n=%d err=%v", n, err)
	}

	n, err = r.Read(buf)
	if err != nil || n != 0 {
		t.Fatalf("Read after drain+close: n=%d err=%v; want 0, nil (EOF)", n, err)
	}
}

func TestPipeWriteAfterReaderCloseReturnsBrokenPipe(t *testing.T) {
	r, w := NewPipe(MinPipeCapacity)
	r.Close()

	_, err := w.Write([]byte("x"))
	if err == nil {
		t.Fatal("Write to a pipe with no readers should fail with BrokenPipe")
	}
}

func TestPipeCapacityIsClampedToBounds(t *testing.T) {
	r, w := NewPipe(1)
	if len(r.buf.data) != MinPipeCapacity {
		t.Fatalf("capacity = %d, want clamped to %d", len(r.buf.data), MinPipeCapacity)
	}
	if r.buf != w.buf {
		t.Fatal("read and write ends must share one buffer")
	}

	r2, _ := NewPipe(MaxPipeCapacity * 2)
	if len(r2.buf.data) != MaxPipeCapacity {
		t.Fatalf("capacity = %d, want clamped to %d", len(r2.buf.data), MaxPipeCapacity)
	}
}

func TestPipeFillThenDrainWrapsRingBuffer(t *testing.T) {
	r, w := NewPipe(MinPipeCapacity)
	capacity := len(r.buf.data)

	first := make([]byte, capacity)
	for i := range first {
		first[i] = byte(i)
	}
	if n, err := w.Write(first); err != nil || n != capacity {
		t.Fatalf("fill: n=%d err=%v", n, err)
	}

	readBuf := make([]byte, capacity/2)
	if n, err := r.Read(readBuf); err != nil || n != capacity/2 {
		t.Fatalf("partial drain: n=%d err=%v", n, err)
	}

	second := make([]byte, capacity/2)
	if n, err := w.Write(second); err != nil || n != capacity/2 {
		t.Fatalf("wrap write: n=%d err=%v", n, err)
	}

	rest := make([]byte, capacity)
	total := 0
	for total < capacity {
		n, err := r.Read(rest[total:])
		if err != nil {
			t.Fatalf("drain rest: err=%v", err)
		}
		if n == 0 {
			break
		}
		total += n
	}
	if total != capacity {
		t.Fatalf("drained %d bytes, want %d", total, capacity)
	}
}
