package heap

import (
	"testing"
)

const testBase = uintptr(0x40000000)

func TestNewAllocatorStartsAsSingleFreeBlock(t *testing.T) {
	a := New(testBase, 4)
	if exp, got := uintptr(BlockSize)<<4, a.Size(); exp != got {
		t.Fatalf("expected Size() to be %d; got %d", exp, got)
	}
	if a.blocks[0].order != 4 || a.blocks[0].used {
		t.Fatalf("expected a single free order-4 block; got %+v", a.blocks[0])
	}
}

func TestAllocateReturnsBaseAlignedSpans(t *testing.T) {
	a := New(testBase, 4)

	p1 := a.Allocate(BlockSize, BlockSize)
	if p1 != testBase {
		t.Errorf("expected the first allocation to land at the heap base; got %#x", p1)
	}

	p2 := a.Allocate(BlockSize, BlockSize)
	if p2 != testBase+BlockSize {
		t.Errorf("expected the second one-block allocation to immediately follow the first; got %#x", p2)
	}
}

func TestAllocateSplitsLargerBlocks(t *testing.T) {
	a := New(testBase, 2) // 4 minimum blocks total

	a.Allocate(BlockSize, BlockSize) // forces the order-2 block to split down to order 0

	if a.blocks[0].order != 0 || !a.blocks[0].used {
		t.Fatalf("expected block 0 to be a used order-0 block; got %+v", a.blocks[0])
	}
	if a.blocks[1].order != 0 || a.blocks[1].used {
		t.Fatalf("expected block 1 to be its free order-0 buddy; got %+v", a.blocks[1])
	}
	if a.blocks[2].order != 1 || a.blocks[2].used {
		t.Fatalf("expected blocks 2-3 to remain a free order-1 span; got %+v", a.blocks[2])
	}
}

func TestAllocateRoundsUpToContainingOrder(t *testing.T) {
	a := New(testBase, 4)

	// A request smaller than BlockSize still consumes one minimum block.
	p := a.Allocate(1, 1)
	if a.blocks[0].order != 0 {
		t.Fatalf("expected a sub-block request to be satisfied from an order-0 block; got order %d", a.blocks[0].order)
	}
	if p != testBase {
		t.Errorf("expected the allocation to start at the heap base; got %#x", p)
	}
}

func TestAllocatePanicsOnBadAlignment(t *testing.T) {
	a := New(testBase, 4)

	defer func(orig func(interface{})) { panicFn = orig }(panicFn)
	var gotErr interface{}
	panicFn = func(e interface{}) { gotErr = e }

	a.Allocate(BlockSize, 3) // not a power of two

	if gotErr != errUnalignedRequest {
		t.Errorf("expected errUnalignedRequest; got %v", gotErr)
	}
}

func TestAllocatePanicsOnAlignmentExceedingBlockSize(t *testing.T) {
	a := New(testBase, 4)

	defer func(orig func(interface{})) { panicFn = orig }(panicFn)
	var gotErr interface{}
	panicFn = func(e interface{}) { gotErr = e }

	a.Allocate(BlockSize, 2*BlockSize)

	if gotErr != errUnalignedRequest {
		t.Errorf("expected errUnalignedRequest; got %v", gotErr)
	}
}

func TestAllocatePanicsWhenExhausted(t *testing.T) {
	a := New(testBase, 1) // 2 minimum blocks

	a.Allocate(BlockSize, BlockSize)
	a.Allocate(BlockSize, BlockSize)

	defer func(orig func(interface{})) { panicFn = orig }(panicFn)
	var gotErr interface{}
	panicFn = func(e interface{}) { gotErr = e }

	a.Allocate(BlockSize, BlockSize)

	if gotErr != errHeapExhausted {
		t.Errorf("expected errHeapExhausted; got %v", gotErr)
	}
}

func TestDeallocateMergesBuddies(t *testing.T) {
	a := New(testBase, 2)

	p1 := a.Allocate(BlockSize, BlockSize)
	p2 := a.Allocate(BlockSize, BlockSize)
	_ = p2

	a.Deallocate(p1)
	if a.blocks[0].used {
		t.Fatal("expected block 0 to be free after deallocation")
	}

	a.Deallocate(p2)

	// Every minimum block should now report the top order: full recursive merge.
	for i, b := range a.blocks {
		if b.used {
			t.Fatalf("block %d: expected heap to be entirely free after both deallocations", i)
		}
		if b.order != a.maxOrder {
			t.Fatalf("block %d: expected full merge back to order %d; got %d", i, a.maxOrder, b.order)
		}
	}
}

func TestDeallocateDoesNotMergeAcrossUsedBuddy(t *testing.T) {
	a := New(testBase, 2)

	p1 := a.Allocate(BlockSize, BlockSize)
	_ = a.Allocate(BlockSize, BlockSize) // buddy of p1, stays used

	a.Deallocate(p1)

	if a.blocks[0].order != 0 {
		t.Errorf("expected block 0 to remain order 0 since its buddy is still in use; got order %d", a.blocks[0].order)
	}
}

func TestAllocateReusesFreedSpanOfMatchingOrder(t *testing.T) {
	a := New(testBase, 2)

	p1 := a.Allocate(BlockSize, BlockSize)
	a.Deallocate(p1)

	p2 := a.Allocate(BlockSize, BlockSize)
	if p2 != p1 {
		t.Errorf("expected the freed span to be reused; got %#x, want %#x", p2, p1)
	}
}

func TestOrderForRoundsUpToContainingPowerOfTwo(t *testing.T) {
	cases := []struct {
		size uintptr
		exp  uint8
	}{
		{0, 0},
		{1, 0},
		{BlockSize, 0},
		{BlockSize + 1, 1},
		{BlockSize * 2, 1},
		{BlockSize*2 + 1, 2},
	}
	for _, c := range cases {
		if got := orderFor(c.size); got != c.exp {
			t.Errorf("orderFor(%d): expected %d; got %d", c.size, c.exp, got)
		}
	}
}

func TestInitInstallsGlobalAllocator(t *testing.T) {
	defer func() { global = nil }()

	Init(testBase, 3)

	p := Allocate(BlockSize, BlockSize)
	if p != testBase {
		t.Fatalf("expected the global allocator to hand out the base address; got %#x", p)
	}

	Deallocate(p)
	if global.blocks[0].used {
		t.Error("expected Deallocate to free the block through the global allocator")
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	cases := []struct {
		v   uintptr
		exp bool
	}{
		{0, false},
		{1, true},
		{2, true},
		{3, false},
		{4096, true},
		{4097, false},
	}
	for _, c := range cases {
		if got := isPowerOfTwo(c.v); got != c.exp {
			t.Errorf("isPowerOfTwo(%d): expected %v; got %v", c.v, c.exp, got)
		}
	}
}
