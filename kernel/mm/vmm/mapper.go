// Package vmm implements the 4-level page hierarchy: the recursively
// self-mapped Mapper over the active hierarchy, the ActiveTable/InactiveTable
// protocol for editing a hierarchy that is not currently loaded, and the
// one-shot kernel remap routine.
package vmm

import (
	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/mm"
)

var (
	errAlreadyMapped = &kernel.Error{Module: "vmm", Message: "page is already mapped", Kind: kernel.KindContract}
	errNotMapped     = &kernel.Error{Module: "vmm", Message: "page is not mapped", Kind: kernel.KindContract}
	errMisaligned    = &kernel.Error{Module: "vmm", Message: "frame address is not page-aligned", Kind: kernel.KindContract}
	errZeroedFrameRW = &kernel.Error{Module: "vmm", Message: "ReservedZeroedFrame must never be mapped writable directly", Kind: kernel.KindContract}

	// panicFn is mocked by tests so contract-violation paths can be
	// exercised without halting the test process.
	panicFn = kernel.Panic
)

// FrameAllocatorFn supplies a single physical frame, used both to back a
// freshly mapped page and to instantiate intermediate tables on demand.
type FrameAllocatorFn func() (mm.Frame, *kernel.Error)

// Translate walks the active hierarchy and returns the physical address
// mapped for virtAddr, or ok=false if the page is unmapped or the
// translation passes through a huge page (unsupported by this core).
func Translate(virtAddr uintptr) (uintptr, bool) {
	page := mm.PageFromAddress(virtAddr)
	offset := virtAddr & mm.PageMask

	var (
		frame   mm.Frame
		mapped  bool
		hugeHit bool
	)
	walk(page, func(level uint, pte *pageTableEntry) bool {
		if pte.Free() {
			return false
		}
		if pte.HasFlags(FlagHuge) {
			hugeHit = true
			return false
		}
		if level == pageLevels-1 {
			frame = pte.Frame()
			mapped = true
			return false
		}
		return true
	})

	if hugeHit || !mapped {
		return 0, false
	}
	return frame.Base() + offset, true
}

// MapTo walks and creates intermediate tables as needed, then writes frame
// into page's P1 entry with the given flags. The target entry must
// currently be free.
func MapTo(page mm.Page, frame mm.Frame, flags Flag, allocFrame FrameAllocatorFn) *kernel.Error {
	if frame.Base()&uintptr(mm.PageMask) != 0 {
		panicFn(errMisaligned)
	}
	if protectReservedZeroedPage && frame == ReservedZeroedFrame && flags&FlagRW != 0 {
		panicFn(errZeroedFrameRW)
	}

	var callErr *kernel.Error
	err := walkOrCreate(page, allocFrame, func(level uint, pte *pageTableEntry) bool {
		if level != pageLevels-1 {
			return true
		}
		if !pte.Free() {
			callErr = errAlreadyMapped
			return false
		}
		pte.SetFrame(frame)
		pte.SetFlags(flags | FlagPresent)
		return false
	})
	if err != nil {
		return err
	}
	if callErr != nil {
		panicFn(callErr)
	}
	return nil
}

// Map allocates a fresh frame via allocFrame and maps it at page.
func Map(page mm.Page, flags Flag, allocFrame FrameAllocatorFn) *kernel.Error {
	frame, err := allocFrame()
	if err != nil {
		return err
	}
	return MapTo(page, frame, flags, allocFrame)
}

// MapID identity-maps frame: the page whose base address equals frame's
// base address.
func MapID(frame mm.Frame, flags Flag, allocFrame FrameAllocatorFn) *kernel.Error {
	return MapTo(mm.PageFromAddress(frame.Base()), frame, flags, allocFrame)
}

// Unmap clears the P1 entry for page (asserting it is currently mapped) and
// flushes the TLB entry for it. The underlying frame is not returned to any
// allocator; the caller decides.
func Unmap(page mm.Page) {
	var found bool
	walk(page, func(level uint, pte *pageTableEntry) bool {
		if pte.Free() {
			return false
		}
		if level == pageLevels-1 {
			pte.SetFree()
			found = true
			return false
		}
		return true
	})
	if !found {
		panicFn(errNotMapped)
	}
	flushTLBEntryFn(page.Base())
}
