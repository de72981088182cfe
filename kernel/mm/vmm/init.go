package vmm

import (
	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/mm"
)

// scratchPageAddr is a second fixed scratch virtual address, distinct from
// tempPageSentinelAddr, used by InitFaultHandling as a TinyAllocator-backed
// TempPage through which the reserved zero frame is zeroed.
const scratchPageAddr = uintptr(0xdeadbeef) * 0x1000

// InitFaultHandling reserves and zeroes the frame used for lazy
// copy-on-write mappings. It must run after Remap, once allocFrame draws
// from the dense BitmapAllocator rather than the bootstrap allocator.
func InitFaultHandling(allocFrame FrameAllocatorFn) *kernel.Error {
	tiny, err := NewTinyAllocator(allocFrame)
	if err != nil {
		return err
	}
	temp := NewTempPage(mm.PageFromAddress(scratchPageAddr), tiny)

	return reserveZeroedFrame(allocFrame, temp.MapFrame, temp.Unmap)
}
