package addr

import "testing"

func TestPageConversion(t *testing.T) {
	a := PhysAddr(0x1234)
	if got := a.FloorPage(); got != PhysPage(1) {
		t.Errorf("FloorPage() = %d, want 1", got)
	}
	if got := a.CeilPage(); got != PhysPage(2) {
		t.Errorf("CeilPage() = %d, want 2", got)
	}
	if got := a.PageOffset(); got != 0x234 {
		t.Errorf("PageOffset() = %x, want 0x234", got)
	}
}

func TestPageAddrRoundTrip(t *testing.T) {
	p := PhysPage(42)
	if got := p.Addr().FloorPage(); got != p {
		t.Errorf("round trip failed: got %d, want %d", got, p)
	}
}

func TestAlignedAddressIsExact(t *testing.T) {
	a := PhysAddr(8 * PageSize)
	if a.FloorPage() != a.CeilPage() {
		t.Errorf("aligned address should floor==ceil: %d != %d", a.FloorPage(), a.CeilPage())
	}
}

func TestPageRangeOverlap(t *testing.T) {
	a := PageRange{Start: 0, End: 10}
	b := PageRange{Start: 9, End: 20}
	c := PageRange{Start: 10, End: 20}

	if !a.Overlaps(b) {
		t.Error("expected overlap between a and b")
	}
	if a.Overlaps(c) {
		t.Error("did not expect overlap between a and c (half-open ranges)")
	}
	if !a.Contains(5) || a.Contains(10) {
		t.Error("Contains boundary check failed")
	}
}

func TestVirtAddrCanonical(t *testing.T) {
	if !VirtAddr(0x1000).Valid() {
		t.Error("low address should be canonical")
	}
	// Sign-extended high address: top bits all set above bit 38.
	high := VirtAddr(^uint64(0))
	if !high.Valid() {
		t.Error("sign-extended high address should be canonical")
	}
	nonCanonical := VirtAddr(uint64(1) << 50)
	if nonCanonical.Valid() {
		t.Error("non-canonical address should be invalid")
	}
}

func TestAlignUp(t *testing.T) {
	if got := AlignUp(5, 4); got != 8 {
		t.Errorf("AlignUp(5,4) = %d, want 8", got)
	}
	if got := AlignUp(8, 4); got != 8 {
		t.Errorf("AlignUp(8,4) = %d, want 8", got)
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []uint64{1, 2, 4, 1024} {
		if !IsPowerOfTwo(n) {
			t.Errorf("%d should be a power of two", n)
		}
	}
	for _, n := range []uint64{0, 3, 5, 6, 1000} {
		if IsPowerOfTwo(n) {
			t.Errorf("%d should not be a power of two", n)
		}
	}
}
