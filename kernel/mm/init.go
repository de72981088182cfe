package mm

import (
	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/cpu"
	"github.com/kernelcore/memkernel/kernel/hal/multiboot"
	"github.com/kernelcore/memkernel/kernel/log"
	"github.com/kernelcore/memkernel/kernel/mm/heap"
	"github.com/kernelcore/memkernel/kernel/mm/pmm"
	"github.com/kernelcore/memkernel/kernel/mm/stack"
	"github.com/kernelcore/memkernel/kernel/mm/vmm"
)

const (
	// HeapBase is the fixed virtual address at which the kernel heap lives.
	HeapBase = uintptr(0x40000000)

	// HeapMaxOrder sizes the heap at BlockSize * 2^HeapMaxOrder (2 MiB).
	HeapMaxOrder = uint8(9)

	// StackRegionPages is the number of pages reserved for the kernel
	// stack allocator's region, immediately above the heap.
	StackRegionPages = 101
)

// Init takes full ownership of physical memory and builds the kernel's
// final address space, starting from the multiboot info blob at mbInfoPtr
// and the kernel image's own frame range [kernelStart, kernelEnd]. It
// returns the MemoryController through which every later allocation flows.
func Init(mbInfoPtr, kernelStart, kernelEnd uintptr) (*MemoryController, *kernel.Error) {
	cpu.EnableNXE()
	cpu.EnableWP()

	multiboot.SetInfoPtr(mbInfoPtr)

	var regions []pmm.MemRegion
	multiboot.VisitMemRegions(func(e *multiboot.MemoryMapEntry) bool {
		regions = append(regions, pmm.MemRegion{
			BaseAddr: uintptr(e.PhysAddress),
			Length:   uintptr(e.Length),
			Usable:   e.Type == multiboot.MemAvailable,
		})
		return true
	})

	kernelStartFrame := FrameFromAddress(kernelStart)
	kernelEndFrame := FrameFromAddress(kernelEnd)
	mbStartFrame := FrameFromAddress(multiboot.StartAddress())
	mbEndFrame := FrameFromAddress(multiboot.EndAddress() - 1)

	area := pmm.NewAreaAllocator(regions, kernelStartFrame, kernelEndFrame, mbStartFrame, mbEndFrame)
	area.LogStats()

	memSize := area.MemorySize()
	bitmap := pmm.NewBitmapAllocator(memSize, area, regions)

	SetFrameAllocator(bitmap.AllocateFrame)

	if err := vmm.Remap(AllocFrame); err != nil {
		return nil, err
	}

	if err := vmm.InitFaultHandling(AllocFrame); err != nil {
		return nil, err
	}

	storageBase, storageFrames := bitmap.Used()
	storageStart := FrameFromAddress(storageBase)
	for i := uintptr(0); i < storageFrames; i++ {
		if err := vmm.MapID(storageStart+Frame(i), vmm.FlagRW, AllocFrame); err != nil {
			return nil, err
		}
	}

	heapSize := Size(heap.BlockSize) << HeapMaxOrder
	heapStartPage := PageFromAddress(HeapBase)
	heapEndPage := PageFromAddress(HeapBase + uintptr(heapSize) - 1)
	for p := heapStartPage; p <= heapEndPage; p++ {
		if err := vmm.Map(p, vmm.FlagRW, AllocFrame); err != nil {
			return nil, err
		}
	}
	heap.Init(HeapBase, HeapMaxOrder)

	stackRegionStart := heapEndPage + 1
	stackRegionEnd := stackRegionStart + Page(StackRegionPages)
	stackPages := PageRange(stackRegionStart, stackRegionEnd)
	stackAlloc := stack.New(stackPages)

	log.Logf(log.Info, "[mm] init complete: heap at %x (%d bytes), stacks from page %d\n",
		HeapBase, uintptr(heapSize), uintptr(stackRegionStart))

	return NewMemoryController(bitmap, stackAlloc), nil
}
