package mm

import "testing"

func TestCanonical(t *testing.T) {
	specs := []struct {
		addr uintptr
		exp  bool
	}{
		{0, true},
		{canonicalHoleStart - 1, true},
		{canonicalHoleStart, false},
		{canonicalHoleEnd - 1, false},
		{canonicalHoleEnd, true},
		{^uintptr(0), true},
	}

	for specIndex, spec := range specs {
		if got := Canonical(spec.addr); got != spec.exp {
			t.Errorf("[spec %d] expected Canonical(%#x) to be %v; got %v", specIndex, spec.addr, spec.exp, got)
		}
	}
}

func TestPageBaseAndFromAddress(t *testing.T) {
	addr := uintptr(PageSize) * 7
	p := PageFromAddress(addr + 42)
	if p != Page(7) {
		t.Fatalf("expected PageFromAddress to floor to page 7; got %d", p)
	}
	if got := p.Base(); got != addr {
		t.Errorf("expected Base() to be %#x; got %#x", addr, got)
	}
}

func TestPageFromAddressNonCanonicalPanics(t *testing.T) {
	defer func(orig func(interface{})) { panicFn = orig }(panicFn)

	var gotErr interface{}
	panicFn = func(e interface{}) { gotErr = e }

	PageFromAddress(canonicalHoleStart)

	if gotErr != errNonCanonicalAddress {
		t.Errorf("expected constructing a Page from a non-canonical address to panic with %v; got %v", errNonCanonicalAddress, gotErr)
	}
}

func TestPageIndices(t *testing.T) {
	// Construct an address with distinct, known index bits at every level:
	// p4=1, p3=2, p2=3, p1=4.
	addr := (uintptr(1) << 39) | (uintptr(2) << 30) | (uintptr(3) << 21) | (uintptr(4) << 12)
	p := PageFromAddress(addr)

	if got := p.P4Index(); got != 1 {
		t.Errorf("expected P4Index() to be 1; got %d", got)
	}
	if got := p.P3Index(); got != 2 {
		t.Errorf("expected P3Index() to be 2; got %d", got)
	}
	if got := p.P2Index(); got != 3 {
		t.Errorf("expected P2Index() to be 3; got %d", got)
	}
	if got := p.P1Index(); got != 4 {
		t.Errorf("expected P1Index() to be 4; got %d", got)
	}
}

func TestPageRange(t *testing.T) {
	it := PageRange(Page(10), Page(13))

	var got []Page
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, p)
	}

	exp := []Page{10, 11, 12}
	if len(got) != len(exp) {
		t.Fatalf("expected %d pages; got %d", len(exp), len(got))
	}
	for i := range exp {
		if got[i] != exp[i] {
			t.Errorf("[index %d] expected page %d; got %d", i, exp[i], got[i])
		}
	}
}

func TestPageIterClone(t *testing.T) {
	it := PageRange(Page(0), Page(5))
	it.Next()
	it.Next()

	clone := it.Clone()
	clone.Next()

	// The clone must advance independently of the original.
	origNext, _ := it.Next()
	cloneNext, _ := clone.Next()

	if origNext != Page(2) {
		t.Errorf("expected original iterator's next page to be 2; got %d", origNext)
	}
	if cloneNext != Page(3) {
		t.Errorf("expected clone's next page to be 3; got %d", cloneNext)
	}
}
