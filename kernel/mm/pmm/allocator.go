// Package pmm implements physical frame allocation: the bootstrap
// AreaAllocator that walks the multiboot memory map before any dynamic
// memory exists, and the denser BitmapAllocator that takes over once a few
// frames are available.
package pmm

import (
	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/mm"
)

// Allocator hands out and reclaims physical frames. AreaAllocator and
// BitmapAllocator both satisfy it; NewBitmapAllocator takes its bootstrap
// source as an Allocator rather than a concrete *AreaAllocator so that
// whatever hands out the bitmap's own backing storage only needs to honor
// this contract.
type Allocator interface {
	// Allocate returns the next available frame, or an error if none
	// remain.
	Allocate() (mm.Frame, *kernel.Error)

	// Deallocate returns a frame to the allocator. Implementations that
	// cannot support this operation treat it as a fatal contract
	// violation.
	Deallocate(mm.Frame)
}

// MemRegion describes one entry of the multiboot memory map.
type MemRegion struct {
	BaseAddr uintptr
	Length   uintptr
	// Usable is true for regions of type 1 (available RAM).
	Usable bool
}

// End returns the address one past the end of the region.
func (r MemRegion) End() uintptr { return r.BaseAddr + r.Length }

// FirstFrame returns the frame containing the region's first byte.
func (r MemRegion) FirstFrame() mm.Frame { return mm.FrameFromAddress(r.BaseAddr) }

// LastFrame returns the frame containing the region's last byte.
func (r MemRegion) LastFrame() mm.Frame { return mm.FrameFromAddress(r.End() - 1) }
