package pmm

import (
	"reflect"
	"unsafe"

	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/log"
	"github.com/kernelcore/memkernel/kernel/mm"
)

// lowMemoryWatermark is the physical address below which legacy
// firmware/BIOS structures may live; frames below it, and the frame that
// starts at it, are always reserved.
const lowMemoryWatermark = 0x130000

var errBitmapExhausted = &kernel.Error{Module: "pmm", Message: "no free frame left", Kind: kernel.KindExhaustion}

// panicFn is mocked by tests so the fatal bootstrap-exhaustion path in
// NewBitmapAllocator can be exercised without halting the test process.
var panicFn = kernel.Panic

var _ Allocator = (*BitmapAllocator)(nil)

// BitmapAllocator is a dense one-bit-per-frame allocator. It is built once,
// backed by a single contiguous bitmap region obtained from a bootstrap
// allocator, and serves every frame request for the remaining lifetime of
// the kernel. A set bit means the corresponding frame is in use.
type BitmapAllocator struct {
	base   mm.Frame // frame index of the first bit
	words  []uint64
	cursor uintptr // word index hint; monotone except across Deallocate

	storageBase  mm.Frame
	storageCount uintptr
}

// NewBitmapAllocator builds a BitmapAllocator over memSize bytes of physical
// memory, requesting its own backing storage from boot. Every region in
// reserved that is not usable (reserved/ACPI/NVS) is marked used up front;
// usable regions in it are skipped.
func NewBitmapAllocator(memSize uintptr, boot Allocator, reserved []MemRegion) *BitmapAllocator {
	frameCount := mm.Size(memSize).Pages()
	wordCount := (frameCount + mm.WordBits - 1) / mm.WordBits
	storageBytes := wordCount * 8
	storageFrames := mm.Size(storageBytes).Pages() + 1

	first, err := boot.Allocate()
	if err != nil {
		panicFn(err)
	}
	for i := uintptr(1); i < storageFrames; i++ {
		if _, err := boot.Allocate(); err != nil {
			panicFn(err)
		}
	}

	words := *(*[]uint64)(unsafe.Pointer(&reflect.SliceHeader{
		Data: first.Base(),
		Len:  int(wordCount),
		Cap:  int(wordCount),
	}))
	for i := range words {
		words[i] = 0
	}

	b := &BitmapAllocator{
		base:         0,
		words:        words,
		storageBase:  first,
		storageCount: storageFrames,
	}

	for _, r := range reserved {
		if r.Usable {
			continue
		}
		b.markRange(r.FirstFrame(), r.LastFrame())
	}

	b.markRange(0, mm.FrameFromAddress(lowMemoryWatermark))

	storageEnd := mm.Frame(uintptr(first) + storageFrames - 1)
	b.markRange(first, storageEnd)

	log.Logf(log.Info, "[pmm] bitmap allocator: %d frames tracked, storage at frame %d (%d frames)\n",
		frameCount, uintptr(first), storageFrames)

	return b
}

func (b *BitmapAllocator) markRange(from, to mm.Frame) {
	for f := from; f <= to; f++ {
		b.set(f, true)
	}
}

func (b *BitmapAllocator) wordIndex(f mm.Frame) (word, bit uintptr) {
	idx := uintptr(f - b.base)
	return idx / mm.WordBits, idx % mm.WordBits
}

func (b *BitmapAllocator) set(f mm.Frame, used bool) {
	w, bit := b.wordIndex(f)
	if w >= uintptr(len(b.words)) {
		return
	}
	if used {
		b.words[w] |= 1 << bit
	} else {
		b.words[w] &^= 1 << bit
	}
}

func (b *BitmapAllocator) isUsed(f mm.Frame) bool {
	w, bit := b.wordIndex(f)
	if w >= uintptr(len(b.words)) {
		return true
	}
	return b.words[w]&(1<<bit) != 0
}

// Allocate scans words starting at the cursor, and within each word scans
// bits low-to-high for the first clear bit.
func (b *BitmapAllocator) Allocate() (mm.Frame, *kernel.Error) {
	for w := b.cursor; w < uintptr(len(b.words)); w++ {
		word := b.words[w]
		if word == ^uint64(0) {
			continue
		}
		for bit := uintptr(0); bit < mm.WordBits; bit++ {
			if word&(1<<bit) == 0 {
				b.words[w] |= 1 << bit
				b.cursor = w
				return b.base + mm.Frame(w*mm.WordBits+bit), nil
			}
		}
	}
	return mm.InvalidFrame, errBitmapExhausted
}

// AllocateFrame adapts Allocate to the mm.FrameAllocatorFn signature.
func (b *BitmapAllocator) AllocateFrame() (mm.Frame, *kernel.Error) {
	return b.Allocate()
}

// Deallocate clears the bit for f and rewinds the cursor so the freed frame
// can be reused. Double-free is not detected.
func (b *BitmapAllocator) Deallocate(f mm.Frame) {
	b.set(f, false)
	w, _ := b.wordIndex(f)
	if w < b.cursor {
		b.cursor = w
	}
}

// Used returns the base physical address and frame count of the bitmap's own
// backing storage, so the remap routine can identity-map it.
func (b *BitmapAllocator) Used() (basePhys uintptr, frameCount uintptr) {
	return b.storageBase.Base(), b.storageCount
}
