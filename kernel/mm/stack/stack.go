// Package stack implements the kernel stack allocator: it carves
// (guard-page, usable-pages) ranges out of a preassigned virtual region and
// maps the usable pages through the active table.
package stack

import (
	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/mm"
	"github.com/kernelcore/memkernel/kernel/mm/vmm"
)

var errZeroPages = &kernel.Error{Module: "stack", Message: "cannot allocate a zero-page stack", Kind: kernel.KindContract}

// Stack describes a kernel stack's virtual address range. Stacks grow
// downward; top is the initial stack pointer.
type Stack struct {
	Top, Bottom uintptr
}

// Allocator carves stacks out of a contiguous virtual region reserved for
// that purpose. Reclamation is a non-goal: pages are never returned.
type Allocator struct {
	pages *mm.PageIter
}

// New constructs an Allocator over the page range reserved for stacks.
func New(pages *mm.PageIter) *Allocator {
	return &Allocator{pages: pages}
}

// Allocate peels a guard page followed by pages usable pages from the
// reserved range, maps the usable pages WRITABLE, and returns the resulting
// Stack. Returns nil, err if the range is exhausted or pages is zero.
func (a *Allocator) Allocate(allocFrame vmm.FrameAllocatorFn, pages uintptr) (*Stack, *kernel.Error) {
	if pages == 0 {
		return nil, errZeroPages
	}

	trial := a.pages.Clone()

	guard, ok := trial.Next()
	if !ok {
		return nil, errExhausted
	}
	_ = guard // left unmapped; it is the stack's guard page

	start, ok := trial.Next()
	if !ok {
		return nil, errExhausted
	}

	end := start
	for i := uintptr(1); i < pages; i++ {
		end, ok = trial.Next()
		if !ok {
			return nil, errExhausted
		}
	}

	for p, ok := start, true; ok && p <= end; {
		if err := vmm.Map(p, vmm.FlagRW, allocFrame); err != nil {
			return nil, err
		}
		if p == end {
			break
		}
		p++
	}

	a.pages = trial
	return &Stack{
		Top:    end.Base() + uintptr(mm.PageSize),
		Bottom: start.Base(),
	}, nil
}

var errExhausted = &kernel.Error{Module: "stack", Message: "no page range left for a new stack", Kind: kernel.KindExhaustion}
