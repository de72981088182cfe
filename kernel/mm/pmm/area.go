package pmm

import (
	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/log"
	"github.com/kernelcore/memkernel/kernel/mm"
)

// errAreaAllocatorExhausted is returned when no usable area has any frame at
// or beyond the cursor.
var errAreaAllocatorExhausted = &kernel.Error{Module: "pmm", Message: "no usable memory area left", Kind: kernel.KindExhaustion}

// errAreaAllocatorNoDealloc is raised if AreaAllocator.Deallocate is ever
// called; the bootstrap allocator only ever moves forward.
var errAreaAllocatorNoDealloc = &kernel.Error{Module: "pmm", Message: "AreaAllocator cannot deallocate", Kind: kernel.KindUnsupported}

var _ Allocator = (*AreaAllocator)(nil)

// AreaAllocator is the single-use bump allocator used before any denser
// allocator exists. It walks the multiboot-reported usable memory areas,
// skipping the frame ranges occupied by the kernel image and by the
// multiboot information blob itself, and only ever advances its cursor.
type AreaAllocator struct {
	areas []MemRegion

	kernelStart, kernelEnd       mm.Frame
	multibootStart, multibootEnd mm.Frame

	cursor mm.Frame
}

// NewAreaAllocator constructs an AreaAllocator over the given usable memory
// areas, reserving the frame ranges covered by the kernel image and the
// multiboot blob.
func NewAreaAllocator(areas []MemRegion, kernelStart, kernelEnd, multibootStart, multibootEnd mm.Frame) *AreaAllocator {
	a := &AreaAllocator{
		areas:          areas,
		kernelStart:    kernelStart,
		kernelEnd:      kernelEnd,
		multibootStart: multibootStart,
		multibootEnd:   multibootEnd,
		cursor:         0,
	}
	// Prime the cursor so the first Allocate call lands on a genuinely
	// usable, unreserved frame.
	a.cursor = a.advance(a.cursor)
	return a
}

// currentArea returns the usable area with the smallest base address whose
// last frame is still >= cursor, i.e. the area the cursor should be
// considered to be walking.
func (a *AreaAllocator) currentArea(cursor mm.Frame) (MemRegion, bool) {
	var (
		best    MemRegion
		found   bool
		bestLen = ^uintptr(0)
	)
	for _, area := range a.areas {
		if !area.Usable {
			continue
		}
		if area.LastFrame() < cursor {
			continue
		}
		if !found || area.BaseAddr < bestLen {
			best, found, bestLen = area, true, area.BaseAddr
		}
	}
	return best, found
}

// advance walks cursor forward past the reserved kernel/multiboot ranges and
// past exhausted areas until it lands on a frame that is either immediately
// allocatable or the allocator is exhausted (reported by returning a cursor
// beyond every area; callers detect that via currentArea returning ok=false).
func (a *AreaAllocator) advance(cursor mm.Frame) mm.Frame {
	for {
		area, ok := a.currentArea(cursor)
		if !ok {
			return cursor
		}
		if cursor < area.FirstFrame() {
			cursor = area.FirstFrame()
			continue
		}
		if cursor > area.LastFrame() {
			// area exhausted; currentArea will pick the next one
			// on the next loop iteration by virtue of this area
			// no longer qualifying (LastFrame < cursor).
			continue
		}
		if cursor >= a.kernelStart && cursor <= a.kernelEnd {
			cursor = a.kernelEnd + 1
			continue
		}
		if cursor >= a.multibootStart && cursor <= a.multibootEnd {
			cursor = a.multibootEnd + 1
			continue
		}
		return cursor
	}
}

// Allocate returns the next unreserved frame within the next usable area, or
// an error if no further usable area exists.
func (a *AreaAllocator) Allocate() (mm.Frame, *kernel.Error) {
	cursor := a.advance(a.cursor)
	if _, ok := a.currentArea(cursor); !ok {
		return mm.InvalidFrame, errAreaAllocatorExhausted
	}
	a.cursor = cursor + 1
	return cursor, nil
}

// AllocateFrame adapts Allocate to the mm.FrameAllocatorFn signature.
func (a *AreaAllocator) AllocateFrame() (mm.Frame, *kernel.Error) {
	return a.Allocate()
}

// Deallocate is unsupported; the bootstrap allocator only ever hands out a
// small, known number of frames during early boot.
func (a *AreaAllocator) Deallocate(mm.Frame) {
	panicFn(errAreaAllocatorNoDealloc)
}

// MemorySize sums the length in bytes of every usable area. Used to size the
// BitmapAllocator's backing storage.
func (a *AreaAllocator) MemorySize() uintptr {
	var total uintptr
	for _, area := range a.areas {
		if area.Usable {
			total += area.Length
		}
	}
	return total
}

// LogStats emits a one-line summary of the bootstrap allocator's state.
func (a *AreaAllocator) LogStats() {
	log.Logf(log.Info, "[pmm] area allocator: cursor at frame %d, %d usable area(s)\n", a.cursor, len(a.areas))
}
