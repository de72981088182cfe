package vmm

import (
	"testing"
	"unsafe"

	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/mm"
)

// alignedPage carves a page-aligned, PageSize-long window out of a real Go
// byte slice, and returns both its address (for passing to mm functions
// that operate on raw addresses) and a same-length view onto it (for
// ordinary indexed reads/writes in test assertions).
func alignedPage() (addr uintptr, view []byte) {
	raw := make([]byte, 2*int(mm.PageSize))
	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + uintptr(mm.PageMask)) &^ uintptr(mm.PageMask)
	return aligned, raw[aligned-base : aligned-base+uintptr(mm.PageSize)]
}

func TestReserveZeroedFrameZeroesItsFrame(t *testing.T) {
	defer func() { ReservedZeroedFrame = 0; protectReservedZeroedPage = false }()

	addr, view := alignedPage()
	for i := range view {
		view[i] = 0xff
	}

	allocFrame := func() (mm.Frame, *kernel.Error) { return mm.Frame(1), nil }
	mapTemp := func(mm.Frame) mm.Page { return mm.PageFromAddress(addr) }
	unmapCalled := false
	unmapTemp := func() { unmapCalled = true }

	if err := reserveZeroedFrame(allocFrame, mapTemp, unmapTemp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ReservedZeroedFrame != mm.Frame(1) {
		t.Errorf("expected ReservedZeroedFrame to be set to the allocated frame; got %d", ReservedZeroedFrame)
	}
	if !protectReservedZeroedPage {
		t.Error("expected protectReservedZeroedPage to be enabled")
	}
	if !unmapCalled {
		t.Error("expected the temp mapping to be torn down")
	}
	for i, b := range view {
		if b != 0 {
			t.Fatalf("byte %d: expected the frame to be zeroed; got %#x", i, b)
		}
	}
}

func TestReserveZeroedFramePropagatesAllocError(t *testing.T) {
	expErr := &kernel.Error{Module: "test", Message: "out of frames"}
	allocFrame := func() (mm.Frame, *kernel.Error) { return mm.InvalidFrame, expErr }

	err := reserveZeroedFrame(allocFrame, nil, nil)
	if err != expErr {
		t.Fatalf("expected %v; got %v", expErr, err)
	}
}

func TestHandlePageFaultIgnoresNonCoWFault(t *testing.T) {
	withFakeHierarchy(t)
	alloc, _ := countingAllocator()

	page := testPage()
	if err := MapTo(page, mm.Frame(5), FlagRW, alloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handled := HandlePageFault(page.Base(), true, alloc, nil, nil)
	if handled {
		t.Error("expected a write fault on an ordinary writable page to be left unhandled")
	}
}

func TestHandlePageFaultIgnoresReadFault(t *testing.T) {
	withFakeHierarchy(t)
	alloc, _ := countingAllocator()

	page := testPage()
	if err := MapTo(page, mm.Frame(5), FlagCopyOnWrite, alloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handled := HandlePageFault(page.Base(), false, alloc, nil, nil)
	if handled {
		t.Error("expected a read fault to be left unhandled regardless of CoW state")
	}
}

func TestHandlePageFaultCopiesOnWrite(t *testing.T) {
	withFakeHierarchy(t)
	alloc, lastFrame := countingAllocator()

	defer func(orig func(uintptr)) { flushTLBEntryFn = orig }(flushTLBEntryFn)
	flushTLBEntryFn = func(uintptr) {}

	// The faulting page must be backed by real, addressable memory: the
	// handler's Memcopy reads through the faulting virtual address itself,
	// relying on hardware translation that this hosted test process does
	// not have, so the page is pinned to a real aligned buffer rather than
	// the arbitrary address testPage() computes.
	srcAddr, srcView := alignedPage()
	srcView[0] = 0xAB
	dstAddr, dstView := alignedPage()

	page := mm.PageFromAddress(srcAddr)
	if err := MapTo(page, mm.Frame(5), FlagCopyOnWrite, alloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mapTemp := func(f mm.Frame) mm.Page { return mm.PageFromAddress(dstAddr) }
	unmapTemp := func() {}

	handled := HandlePageFault(page.Base(), true, alloc, mapTemp, unmapTemp)
	if !handled {
		t.Fatal("expected a write fault on a CoW page to be handled")
	}

	if dstView[0] != 0xAB {
		t.Errorf("expected the private copy to carry over the original contents; got %#x", dstView[0])
	}

	got, ok := Translate(page.Base())
	if !ok {
		t.Fatal("expected the page to remain mapped after CoW resolution")
	}
	if exp := mm.Frame(*lastFrame).Base(); got != exp {
		t.Errorf("expected the page to now point at the frame drawn for the private copy; got %#x, want %#x", got, exp)
	}
}
