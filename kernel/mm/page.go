package mm

import "github.com/kernelcore/memkernel/kernel"

// Page describes a virtual memory page index.
type Page uintptr

// canonicalHoleStart and canonicalHoleEnd bound the non-canonical region of
// the 48-bit virtual address space: addr < canonicalHoleStart, or addr >=
// canonicalHoleEnd, are the only addresses the CPU accepts.
const (
	canonicalHoleStart = uintptr(1) << 47
	canonicalHoleEnd   = ^uintptr(0) - (uintptr(1) << 47) + 1
)

var errNonCanonicalAddress = &kernel.Error{Module: "mm", Message: "non-canonical virtual address", Kind: kernel.KindContract}

// panicFn is mocked by tests so contract-violation paths can be exercised
// without halting the test process.
var panicFn = kernel.Panic

// Canonical reports whether addr is a valid amd64 canonical virtual address.
func Canonical(addr uintptr) bool {
	return addr < canonicalHoleStart || addr >= canonicalHoleEnd
}

// Base returns the virtual address of the start of this page.
func (p Page) Base() uintptr {
	return uintptr(p) << PageShift
}

// PageFromAddress floors virtAddr to the page that contains it. Constructing
// a Page from a non-canonical address is a programming error and is fatal.
func PageFromAddress(virtAddr uintptr) Page {
	if !Canonical(virtAddr) {
		panicFn(errNonCanonicalAddress)
	}
	return Page(virtAddr >> PageShift)
}

// index extracts the 9-bit slice of the page index at table level lvl, where
// lvl 0 is P1 up to lvl 3 is P4.
func (p Page) index(lvl uint) uint {
	return uint(p>>(lvl*9)) & 0x1ff
}

// P4Index returns the 9-bit index into the P4 table for this page.
func (p Page) P4Index() uint { return p.index(3) }

// P3Index returns the 9-bit index into the P3 table for this page.
func (p Page) P3Index() uint { return p.index(2) }

// P2Index returns the 9-bit index into the P2 table for this page.
func (p Page) P2Index() uint { return p.index(1) }

// P1Index returns the 9-bit index into the P1 table for this page.
func (p Page) P1Index() uint { return p.index(0) }

// PageRange returns a half-open iterator over [from, to).
func PageRange(from, to Page) *PageIter {
	return &PageIter{cur: from, end: to}
}

// PageIter walks a contiguous half-open range of pages.
type PageIter struct {
	cur, end Page
}

// Next returns the next page in the range, or ok=false once exhausted.
func (it *PageIter) Next() (Page, bool) {
	if it.cur >= it.end {
		return 0, false
	}
	p := it.cur
	it.cur++
	return p, true
}

// Clone returns an independent copy of the iterator's remaining range.
func (it *PageIter) Clone() *PageIter {
	c := *it
	return &c
}
