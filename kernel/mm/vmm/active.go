package vmm

import (
	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/mm"
)

var errTinyAllocatorExhausted = &kernel.Error{Module: "vmm", Message: "tiny allocator exhausted", Kind: kernel.KindExhaustion}

// tempPageSentinelAddr is an arbitrary unused canonical virtual address
// reserved for scratch mappings while editing a hierarchy that isn't active.
const tempPageSentinelAddr = uintptr(0xdeadaffe) * uintptr(mm.PageSize)

// TinyAllocator pre-reserves exactly one frame per intermediate table level
// (P3, P2, P1). A TempPage draws the tables for its own mapping from it.
// Mapper calls made inside ActiveTable.With's closure take whatever
// allocator they are given, so they do not draw from it; Remap passes its
// allocFrame to them.
type TinyAllocator [3]mm.Frame

// NewTinyAllocator draws its three frames from allocFrame up front.
func NewTinyAllocator(allocFrame FrameAllocatorFn) (TinyAllocator, *kernel.Error) {
	var t TinyAllocator
	for i := range t {
		f, err := allocFrame()
		if err != nil {
			return t, err
		}
		t[i] = f
	}
	return t, nil
}

// AllocateFrame hands out one of the three pre-reserved frames.
func (t *TinyAllocator) AllocateFrame() (mm.Frame, *kernel.Error) {
	for i, f := range t {
		if f.Valid() {
			t[i] = mm.InvalidFrame
			return f, nil
		}
	}
	return mm.InvalidFrame, errTinyAllocatorExhausted
}

// TempPage is a fixed scratch virtual page used to reach a physical frame
// that is not otherwise mapped into the active hierarchy.
type TempPage struct {
	page  mm.Page
	alloc TinyAllocator
}

// NewTempPage constructs a TempPage at the given virtual page, backed by
// alloc for any intermediate tables its own mapping needs.
func NewTempPage(page mm.Page, alloc TinyAllocator) *TempPage {
	return &TempPage{page: page, alloc: alloc}
}

// MapFrame maps this TempPage's virtual page onto frame, returning the page.
// If the TempPage is already mapped elsewhere it is unmapped first.
func (t *TempPage) MapFrame(frame mm.Frame) mm.Page {
	if _, ok := Translate(t.page.Base()); ok {
		Unmap(t.page)
	}
	if err := MapTo(t.page, frame, FlagRW, t.alloc.AllocateFrame); err != nil {
		panicFn(err)
	}
	return t.page
}

// Unmap removes the TempPage's current mapping.
func (t *TempPage) Unmap() {
	Unmap(t.page)
}

// InactiveTable is a complete 4-level hierarchy rooted at a P4 frame that is
// not currently loaded into CR3, but whose recursive self-reference (entry
// 511) is already established.
type InactiveTable struct {
	P4 mm.Frame
}

// NewInactiveTable zeroes p4Frame and installs its recursive self-reference,
// reaching the frame through temp since it isn't otherwise mapped anywhere.
func NewInactiveTable(p4Frame mm.Frame, temp *TempPage) InactiveTable {
	page := temp.MapFrame(p4Frame)
	zeroTable(page.Base())

	pte := entryPtrFn(page.Base() + recursiveIndex<<pointerShift)
	pte.SetFrame(p4Frame)
	pte.SetFlags(FlagPresent | FlagRW)

	temp.Unmap()
	return InactiveTable{P4: p4Frame}
}

// ActiveTable is the currently loaded hierarchy, reached through the
// recursive self-mapping at p4VirtualAddr.
type ActiveTable struct{}

func (ActiveTable) p4Frame() mm.Frame {
	return mm.FrameFromAddress(activePDTFn())
}

// With runs fn with the active hierarchy's recursive slot temporarily
// redirected to point at inactive's P4 frame, so that every Mapper
// operation fn performs (map/unmap/translate) edits the inactive hierarchy
// instead. The closure must not fault and must not call With again: both
// would observe the half-redirected recursive slot.
func (a *ActiveTable) With(inactive *InactiveTable, temp *TempPage, fn func()) {
	backup := a.p4Frame()

	// Retain a route to the backed-up P4's entries: once the recursive
	// slot is redirected below, p4VirtualAddr no longer reaches it.
	backupView := temp.MapFrame(backup)

	recursiveEntry := entryPtrFn(p4VirtualAddr + recursiveIndex<<pointerShift)
	recursiveEntry.SetFrame(inactive.P4)
	recursiveEntry.SetFlags(FlagPresent | FlagRW)
	flushTLBAll()

	fn()

	backupEntry := entryPtrFn(backupView.Base() + recursiveIndex<<pointerShift)
	backupEntry.SetFrame(backup)
	backupEntry.SetFlags(FlagPresent | FlagRW)
	flushTLBAll()

	temp.Unmap()
}

// Switch installs inactive as the active hierarchy and returns the
// previously active one as an InactiveTable. CR3 writes are a serializing
// operation and flush the TLB implicitly.
func (a *ActiveTable) Switch(inactive InactiveTable) InactiveTable {
	old := InactiveTable{P4: a.p4Frame()}
	switchPDTFn(inactive.P4.Base())
	return old
}
