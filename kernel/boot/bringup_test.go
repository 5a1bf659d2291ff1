package boot

import (
	"bytes"
	"context"
	"debug/elf"
	"testing"

	"rvos/kernel/fdt"
	"rvos/kernel/mem/addr"
)

func TestBuildMinimalInitParsesAsValidELF(t *testing.T) {
	image := buildMinimalInit()
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		t.Fatalf("buildMinimalInit produced an unparsable image: %v", err)
	}
	if f.Class != elf.ELFCLASS64 {
		t.Fatalf("got class %v, want ELFCLASS64", f.Class)
	}
	if f.Machine != elf.EM_RISCV {
		t.Fatalf("got machine %v, want EM_RISCV", f.Machine)
	}
	if uint64(f.Entry) != initEntryVA {
		t.Fatalf("got entry %#x, want %#x", f.Entry, initEntryVA)
	}

	var loads int
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		loads++
		if prog.Vaddr != initEntryVA {
			t.Fatalf("PT_LOAD vaddr = %#x, want %#x", prog.Vaddr, initEntryVA)
		}
		if prog.Filesz != uint64(len(initLoopCode)) {
			t.Fatalf("PT_LOAD filesz = %d, want %d", prog.Filesz, len(initLoopCode))
		}
	}
	if loads != 1 {
		t.Fatalf("got %d PT_LOAD segments, want 1", loads)
	}
}

func TestSatpForEncodesSv39Mode(t *testing.T) {
	got := satpFor(addr.PhysPage(0x1234))
	want := uint64(8)<<60 | 0x1234
	if got != want {
		t.Fatalf("got satp %#x, want %#x", got, want)
	}
}

func TestPickPhysEndFallsBackWithoutMemoryNodes(t *testing.T) {
	tree := &fdt.Tree{}
	got := pickPhysEnd(tree)
	want := addr.PhysAddr(128 << 20).CeilPage()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitParent(t *testing.T) {
	cases := []struct{ path, dir, name string }{
		{"/sbin/init", "/sbin/", "init"},
		{"/init", "/", "init"},
	}
	for _, c := range cases {
		dir, name := splitParent(c.path)
		if dir != c.dir || name != c.name {
			t.Fatalf("splitParent(%q) = (%q, %q), want (%q, %q)", c.path, dir, name, c.dir, c.name)
		}
	}
}

func TestSplitNonEmptyIgnoresLeadingAndTrailingSlashes(t *testing.T) {
	got := splitNonEmpty("/sbin/")
	if len(got) != 1 || got[0] != "sbin" {
		t.Fatalf("got %v, want [sbin]", got)
	}
}

func TestMarkHartOnlineSetsBitAndReleasesSemaphore(t *testing.T) {
	onlineMask = 0
	markHartOnline(3)
	if onlineMask&(1<<3) == 0 {
		t.Fatal("expected bit 3 set in onlineMask")
	}
	// Undo the Release so later tests in this package see hartSem back at
	// its fully-drained starting state.
	hartSem.Acquire(context.Background(), 1)
}

func TestInstallArchHooksWiresHandlersWithoutInvokingThem(t *testing.T) {
	// installArchHooks assigns closures over the body-less CPU primitives;
	// it must not call any of them eagerly, since they have no backing
	// assembly in this build and would panic at link time on real hardware
	// (and are simply undefined here).
	installArchHooks()
}
