// Package heap implements the power-of-two buddy allocator that backs the
// kernel's dynamic memory hook. It is a process-wide singleton: dynamic
// containers reach it through Allocate/Deallocate, never by naming an
// Allocator value directly.
package heap

import (
	"github.com/kernelcore/memkernel/kernel"
	ksync "github.com/kernelcore/memkernel/kernel/sync"
)

// BlockSize is the minimum allocation granularity.
const BlockSize = 4096

var (
	errUnalignedRequest = &kernel.Error{Module: "heap", Message: "alignment is not a power of two, or exceeds BlockSize", Kind: kernel.KindContract}
	errHeapExhausted    = &kernel.Error{Module: "heap", Message: "heap exhausted", Kind: kernel.KindExhaustion}

	// panicFn is mocked by tests so the fatal alignment/exhaustion paths can
	// be exercised without halting the test process.
	panicFn = kernel.Panic
)

// global is the process-wide buddy allocator instance. Dynamic containers
// never name an *Allocator directly; they reach it through Allocate and
// Deallocate below, which is the shape the Go runtime allocator hook in
// goruntime expects.
var global *Allocator

// Init installs the process-wide allocator over [base, base+BlockSize<<maxOrder).
// Must be called exactly once, after the heap's virtual range has been
// mapped by the caller.
func Init(base uintptr, maxOrder uint8) {
	global = New(base, maxOrder)
}

// Allocate reserves size bytes aligned to align from the global heap.
func Allocate(size, align uintptr) uintptr {
	return global.Allocate(size, align)
}

// Deallocate returns a span previously obtained from Allocate.
func Deallocate(ptr uintptr) {
	global.Deallocate(ptr)
}

// block is the descriptor for one minimum-sized unit of the heap.
type block struct {
	order uint8
	used  bool
}

// Allocator is a power-of-two buddy allocator over a fixed virtual range
// [base, base+BlockSize<<maxOrder). It holds one descriptor per minimum-sized
// block; larger free spans are represented implicitly by the order recorded
// on their first descriptor.
type Allocator struct {
	base     uintptr
	maxOrder uint8
	blocks   []block
	lock     ksync.Mutex
}

// New constructs an Allocator over [base, base+BlockSize<<maxOrder), starting
// as a single free block of maxOrder.
func New(base uintptr, maxOrder uint8) *Allocator {
	count := uintptr(1) << maxOrder
	blocks := make([]block, count)
	for i := range blocks {
		blocks[i] = block{order: maxOrder, used: false}
	}
	return &Allocator{base: base, maxOrder: maxOrder, blocks: blocks}
}

// Size returns the total byte size of the heap.
func (a *Allocator) Size() uintptr {
	return uintptr(BlockSize) << a.maxOrder
}

// orderFor returns the smallest order o with BlockSize*2^o >= size.
func orderFor(size uintptr) uint8 {
	var order uint8
	for (uintptr(BlockSize) << order) < size {
		order++
	}
	return order
}

func isPowerOfTwo(v uintptr) bool {
	return v != 0 && v&(v-1) == 0
}

// Allocate reserves a size-byte, align-byte-aligned span and returns its
// address. align must be a power of two not exceeding BlockSize. Exhaustion
// is fatal: the allocator hook has no way to report failure to the
// containers that call through it except by panicking.
func (a *Allocator) Allocate(size, align uintptr) uintptr {
	if !isPowerOfTwo(align) || align > BlockSize {
		panicFn(errUnalignedRequest)
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	order := orderFor(size)
	index, ok := a.findFree(order)
	if !ok {
		panicFn(errHeapExhausted)
	}

	a.markUsed(index, order)
	return a.base + index*BlockSize
}

// findFree locates a free block of exactly order, splitting a larger free
// block down if none exists at the requested order.
func (a *Allocator) findFree(order uint8) (uintptr, bool) {
	if idx, ok := a.firstFreeAt(order); ok {
		return idx, true
	}

	for higher := order + 1; higher <= a.maxOrder; higher++ {
		idx, ok := a.firstFreeAt(higher)
		if !ok {
			continue
		}
		for cur := higher; cur > order; cur-- {
			a.split(idx, cur)
		}
		return idx, true
	}
	return 0, false
}

func (a *Allocator) firstFreeAt(order uint8) (uintptr, bool) {
	step := uintptr(1) << order
	for i := uintptr(0); i < uintptr(len(a.blocks)); i += step {
		if !a.blocks[i].used && a.blocks[i].order == order {
			return i, true
		}
	}
	return 0, false
}

// split halves the block of order 'order' starting at index into two
// order-1 buddies.
func (a *Allocator) split(index uintptr, order uint8) {
	half := uintptr(1) << (order - 1)
	a.blocks[index].order = order - 1
	a.blocks[index+half].order = order - 1
}

func (a *Allocator) markUsed(index uintptr, order uint8) {
	span := uintptr(1) << order
	for i := uintptr(0); i < span; i++ {
		a.blocks[index+i] = block{order: order, used: true}
	}
}

// Deallocate returns the span starting at ptr to the allocator, merging it
// with its buddy (and recursively upward) whenever the buddy is also free.
func (a *Allocator) Deallocate(ptr uintptr) {
	a.lock.Lock()
	defer a.lock.Unlock()

	index := (ptr - a.base) / BlockSize
	order := a.blocks[index].order

	span := uintptr(1) << order
	for i := uintptr(0); i < span; i++ {
		a.blocks[index+i] = block{order: order, used: false}
	}

	a.merge(index, order)
}

// merge recursively coalesces index's block with its buddy while the buddy
// is free and of the same order, up to the heap's max order.
func (a *Allocator) merge(index uintptr, order uint8) {
	for order < a.maxOrder {
		span := uintptr(1) << order
		isLeft := (index/span)%2 == 0

		var buddy uintptr
		if isLeft {
			buddy = index + span
		} else {
			buddy = index - span
		}

		if a.blocks[buddy].used || a.blocks[buddy].order != order {
			return
		}

		left := index
		if !isLeft {
			left = buddy
		}

		order++
		for i := uintptr(0); i < 2*span; i++ {
			a.blocks[left+i].order = order
		}
		index = left
	}
}
