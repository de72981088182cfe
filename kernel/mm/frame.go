package mm

import (
	"math"

	"github.com/kernelcore/memkernel/kernel"
)

// Frame describes a physical memory page index. It is inert data: holding a
// Frame value does not by itself imply ownership of the underlying physical
// memory. Ownership is tracked by whichever frame allocator handed it out.
type Frame uintptr

// InvalidFrame is returned by frame allocators when they fail to reserve the
// requested frame.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is not the sentinel InvalidFrame value.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Base returns the physical address of the start of this frame.
func (f Frame) Base() uintptr {
	return uintptr(f) << PageShift
}

// FrameFromAddress floors physAddr to the frame that contains it.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame(physAddr >> PageShift)
}

// FrameRange returns a half-open iterator over [from, to).
func FrameRange(from, to Frame) *FrameIter {
	return &FrameIter{cur: from, end: to}
}

// FrameIter walks a contiguous half-open range of frames.
type FrameIter struct {
	cur, end Frame
}

// Next returns the next frame in the range, or ok=false once exhausted.
func (it *FrameIter) Next() (Frame, bool) {
	if it.cur >= it.end {
		return 0, false
	}
	f := it.cur
	it.cur++
	return f, true
}

var frameAllocator FrameAllocatorFn

// FrameAllocatorFn is a function that can allocate a single physical frame.
type FrameAllocatorFn func() (Frame, *kernel.Error)

// SetFrameAllocator registers the frame allocator function used by the rest
// of the memory core once it has been constructed.
func SetFrameAllocator(fn FrameAllocatorFn) { frameAllocator = fn }

// AllocFrame allocates a frame using the currently registered allocator.
func AllocFrame() (Frame, *kernel.Error) { return frameAllocator() }
