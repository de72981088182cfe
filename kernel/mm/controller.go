package mm

import (
	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/mm/pmm"
	"github.com/kernelcore/memkernel/kernel/mm/stack"
)

// MemoryController is the façade through which every allocation performed
// after boot flows: it aggregates the bitmap frame allocator and the stack
// allocator. AllocateStack is its sole public operation.
type MemoryController struct {
	frameAlloc *pmm.BitmapAllocator
	stackAlloc *stack.Allocator
}

// NewMemoryController assembles a MemoryController from its two
// already-initialized collaborators.
func NewMemoryController(frameAlloc *pmm.BitmapAllocator, stackAlloc *stack.Allocator) *MemoryController {
	return &MemoryController{frameAlloc: frameAlloc, stackAlloc: stackAlloc}
}

// AllocateStack reserves a new kernel stack of the given usable page count,
// with a guard page immediately below it.
func (mc *MemoryController) AllocateStack(pages uintptr) (*stack.Stack, *kernel.Error) {
	return mc.stackAlloc.Allocate(mc.frameAlloc.AllocateFrame, pages)
}
