package syscall

import (
	"testing"

	"rvos/kernel/task"
	"rvos/kernel/trap"
	"rvos/kernel/vfs"
)

func writeUserString(t *testing.T, tk *task.Task, uva uint64, s string) {
	t.Helper()
	buf := append([]byte(s), 0)
	if err := CopyOut(tk.MemorySpace, uva, buf); err != nil {
		t.Fatalf("CopyOut: %v", err)
	}
}

func TestMkdiratThenUnlinkatRemovesDirectory(t *testing.T) {
	tk := newTestTask(t)
	mapUserPages(t, tk, 0x8000, 1)
	uva := uint64(0x8000 * 0x1000)
	writeUserString(t, tk, uva, "/sub")

	if _, err := sysMkdirat(tk, &trap.Frame{A1: uva, A2: 0o755}); err != nil {
		t.Fatalf("sysMkdirat: %v", err)
	}

	d, rerr := vfs.Resolve(resolveCtx(tk), "/sub", false)
	if rerr != nil {
		t.Fatalf("Resolve after mkdirat: %v", rerr)
	}
	meta, merr := d.Inode.Metadata()
	if merr != nil || meta.Type != vfs.TypeDirectory {
		t.Fatalf("expected /sub to be a directory, got %+v err=%v", meta, merr)
	}

	const atRemoveDir = 0x200
	if _, err := sysUnlinkat(tk, &trap.Frame{A1: uva, A2: atRemoveDir}); err != nil {
		t.Fatalf("sysUnlinkat: %v", err)
	}
	if _, rerr := vfs.Resolve(resolveCtx(tk), "/sub", false); rerr == nil {
		t.Fatal("/sub should no longer resolve after rmdir")
	}
}

func TestChdirUpdatesCwd(t *testing.T) {
	tk := newTestTask(t)
	mapUserPages(t, tk, 0x8000, 1)
	uva := uint64(0x8000 * 0x1000)
	writeUserString(t, tk, uva, "/dir")

	if _, err := sysMkdirat(tk, &trap.Frame{A1: uva, A2: 0o755}); err != nil {
		t.Fatalf("sysMkdirat: %v", err)
	}
	if _, err := sysChdir(tk, &trap.Frame{A0: uva}); err != nil {
		t.Fatalf("sysChdir: %v", err)
	}
	if tk.Cwd.Name != "dir" {
		t.Fatalf("Cwd.Name = %q, want %q", tk.Cwd.Name, "dir")
	}
}
