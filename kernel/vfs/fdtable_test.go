package vfs

import (
	"testing"

	"rvos/kernel/kerrors"
)

type nullFile struct {
	baseFile
	closed bool
}

func (f *nullFile) Close() *kerrors.Error { return nil }

func newNullFile() *nullFile { return &nullFile{} }

func TestFDTableAllocIsLowestFree(t *testing.T) {
	tbl := &FDTable{}
	a, err := tbl.Alloc(newNullFile())
	if err != nil || a != 0 {
		t.Fatalf("first alloc = %d, %v; want 0, nil", a, err)
	}
	b, err := tbl.Alloc(newNullFile())
	if err != nil || b != 1 {
		t.Fatalf("second alloc = %d, %v; want 1, nil", b, err)
	}
	tbl.Close(0)
	c, err := tbl.Alloc(newNullFile())
	if err != nil || c != 0 {
		t.Fatalf("alloc after close = %d, %v; want 0, nil (lowest free)", c, err)
	}
}

func TestFDTableDup2OldEqualsNewIsNoop(t *testing.T) {
	tbl := &FDTable{}
	fd, _ := tbl.Alloc(newNullFile())
	got, err := tbl.Dup2(fd, fd)
	if err != nil || got != fd {
		t.Fatalf("Dup2(fd, fd) = %d, %v; want %d, nil", got, err, fd)
	}
}

func TestFDTableDup3RejectsOldEqualsNew(t *testing.T) {
	tbl := &FDTable{}
	fd, _ := tbl.Alloc(newNullFile())
	if _, err := tbl.Dup3(fd, fd, false); err == nil {
		t.Fatal("Dup3(fd, fd) should reject old == new")
	}
}

func TestFDTableCloexecClosedOnExec(t *testing.T) {
	tbl := &FDTable{}
	keep, _ := tbl.AllocWithFlags(newNullFile(), false)
	drop, _ := tbl.AllocWithFlags(newNullFile(), true)

	tbl.CloseCloexec()

	if _, err := tbl.Get(keep); err != nil {
		t.Fatal("non-cloexec fd should survive CloseCloexec")
	}
	if _, err := tbl.Get(drop); err == nil {
		t.Fatal("cloexec fd should be closed by CloseCloexec")
	}
}

func TestFDTableAllocReturnsTooManyOpenFiles(t *testing.T) {
	tbl := &FDTable{}
	for i := 0; i < MaxOpenFiles; i++ {
		if _, err := tbl.Alloc(newNullFile()); err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
	}
	if _, err := tbl.Alloc(newNullFile()); err == nil {
		t.Fatal("alloc past MaxOpenFiles should fail")
	}
}

func TestFDTableCloneIsIndependentButSharesFiles(t *testing.T) {
	tbl := &FDTable{}
	f := newNullFile()
	fd, _ := tbl.Alloc(f)

	clone := tbl.Clone()
	clone.Close(fd)

	if _, err := tbl.Get(fd); err != nil {
		t.Fatal("closing fd in the clone should not affect the original table")
	}
}
