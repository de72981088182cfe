package vmm

import "github.com/kernelcore/memkernel/kernel/mm"

const (
	// pageLevels is the depth of the amd64 hierarchy: P4, P3, P2, P1.
	pageLevels = 4

	// pointerShift is log2(size of one table entry in bytes).
	pointerShift = 3

	// recursiveIndex is the P4 slot that, in the active hierarchy, points
	// back to the P4 frame itself.
	recursiveIndex = 511

	// ptePhysPageMask isolates the physical frame bits (12..51) of a raw
	// page table entry.
	ptePhysPageMask = 0x000ffffffffff000

	// p4VirtualAddr is the fixed virtual address at which P4 is always
	// reachable in the active hierarchy, by virtue of the recursive slot.
	p4VirtualAddr = ^uintptr(0) &^ (uintptr(mm.PageSize) - 1)

	// vgaBufferPhysAddr is the physical address of the VGA text-mode
	// framebuffer, identity-mapped by the remap routine.
	vgaBufferPhysAddr = 0xB8000
)

// pageLevelShifts gives the bit-shift of the 9-bit index slice owned by each
// level, ordered P4, P3, P2, P1 (matches Page.index's lvl argument in
// reverse: level 0 here is P4, i.e. lvl 3 in Page.index).
var pageLevelShifts = [pageLevels]uint{27, 18, 9, 0}
