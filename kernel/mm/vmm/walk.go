package vmm

import (
	"unsafe"

	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/mm"
)

var errHugePage = &kernel.Error{Module: "vmm", Message: "huge page entry at non-leaf level", Kind: kernel.KindContract}

// entryPtrFn resolves a virtual address to the page-table-entry word stored
// there. It is a package-level variable (rather than a plain function) so
// tests can substitute a real backing array for the recursively-mapped
// addresses this package computes, which do not resolve to anything in a
// hosted test process.
var entryPtrFn = entryPtrAt

func entryPtrAt(addr uintptr) *pageTableEntry {
	return (*pageTableEntry)(unsafe.Pointer(addr))
}

// nextAddrFn derives the virtual address of the child table reachable
// through entryAddr's entry, given the recursive-mapping shift-and-OR rule.
// Mockable for the same reason as entryPtrFn.
var nextAddrFn = func(entryAddr uintptr) uintptr {
	return entryAddr << 9
}

func pageIndices(page mm.Page) [pageLevels]uint {
	return [pageLevels]uint{page.P4Index(), page.P3Index(), page.P2Index(), page.P1Index()}
}

// walkFn is invoked once per level (0 = P4 .. pageLevels-1 = P1) as the walk
// descends the recursively-mapped active hierarchy. Returning false aborts
// the walk before descending further.
type walkFn func(level uint, pte *pageTableEntry) bool

// walk descends from P4 to P1 for page, via the recursive self-mapping
// trick: stepping from one table to its child is a pure shift-and-OR on the
// virtual address, requiring no physical-to-virtual translation.
func walk(page mm.Page, fn walkFn) {
	indices := pageIndices(page)
	tableAddr := p4VirtualAddr
	for level := uint(0); level < pageLevels; level++ {
		entryAddr := tableAddr + uintptr(indices[level])<<pointerShift
		pte := entryPtrFn(entryAddr)
		if !fn(level, pte) || level == pageLevels-1 {
			return
		}
		tableAddr = nextAddrFn(entryAddr)
	}
}

// zeroTable clears all 512 entries of the table reachable at virtual address
// tableAddr.
func zeroTable(tableAddr uintptr) {
	for i := uintptr(0); i < 512; i++ {
		entryPtrFn(tableAddr + i<<pointerShift).SetFree()
	}
}

// walkOrCreate behaves like walk but instantiates any missing intermediate
// table (P3/P2/P1) it passes through using allocFrame, zeroing the new
// table's contents through its own recursive address before handing control
// to fn. A huge entry encountered at a non-leaf level is a fatal contract
// violation in this core.
func walkOrCreate(page mm.Page, allocFrame func() (mm.Frame, *kernel.Error), fn walkFn) *kernel.Error {
	indices := pageIndices(page)
	tableAddr := p4VirtualAddr
	for level := uint(0); level < pageLevels; level++ {
		entryAddr := tableAddr + uintptr(indices[level])<<pointerShift
		pte := entryPtrFn(entryAddr)

		if level < pageLevels-1 {
			if pte.HasFlags(FlagHuge) {
				panicFn(errHugePage)
			}
			if pte.Free() {
				frame, err := allocFrame()
				if err != nil {
					return err
				}
				pte.SetFrame(frame)
				pte.SetFlags(FlagPresent | FlagRW)
				zeroTable(nextAddrFn(entryAddr))
			}
		}

		if !fn(level, pte) || level == pageLevels-1 {
			return nil
		}
		tableAddr = nextAddrFn(entryAddr)
	}
	return nil
}
