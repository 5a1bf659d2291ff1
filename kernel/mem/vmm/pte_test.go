package vmm

import (
	"testing"

	"rvos/kernel/mem/addr"
)

func TestPTESetFlagsAndPPN(t *testing.T) {
	var e pte
	e.setFlags(FlagValid | FlagRead)
	if !e.hasFlags(FlagValid) || !e.hasFlags(FlagRead) {
		t.Fatal("expected Valid and Read set")
	}
	if e.hasFlags(FlagWrite) {
		t.Fatal("Write should not be set")
	}

	e.setPPN(addr.PhysPage(0xABCD))
	if e.ppn() != addr.PhysPage(0xABCD) {
		t.Fatalf("ppn = %#x, want %#x", e.ppn(), 0xABCD)
	}
	// Setting the PPN must not disturb the flag bits below it.
	if !e.hasFlags(FlagValid) || !e.hasFlags(FlagRead) {
		t.Fatal("setPPN clobbered flag bits")
	}
}

func TestPTEClearFlags(t *testing.T) {
	var e pte
	e.setFlags(FlagValid | FlagRead | FlagWrite)
	e.clearFlags(FlagWrite)
	if e.hasFlags(FlagWrite) {
		t.Fatal("expected Write to be cleared")
	}
	if !e.hasFlags(FlagRead) {
		t.Fatal("clearFlags should not affect unrelated bits")
	}
}

func TestPTEIsLeaf(t *testing.T) {
	var ptr pte
	ptr.setFlags(FlagValid)
	if ptr.isLeaf() {
		t.Fatal("a Valid-only entry (no R/W/X) should not be a leaf")
	}

	var leaf pte
	leaf.setFlags(FlagValid | FlagRead | FlagWrite)
	if !leaf.isLeaf() {
		t.Fatal("an entry with Read and Write set should be a leaf")
	}
}
