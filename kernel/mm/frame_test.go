package mm

import (
	"testing"

	"github.com/kernelcore/memkernel/kernel"
)

func TestFrameValid(t *testing.T) {
	if !Frame(0).Valid() {
		t.Error("expected Frame(0) to be valid")
	}
	if InvalidFrame.Valid() {
		t.Error("expected InvalidFrame to be invalid")
	}
}

func TestFrameBaseAndFromAddress(t *testing.T) {
	specs := []struct {
		addr  uintptr
		frame Frame
	}{
		{0, 0},
		{uintptr(PageSize), 1},
		{uintptr(PageSize) + 123, 1},
		{uintptr(PageSize) * 42, 42},
	}

	for specIndex, spec := range specs {
		if got := FrameFromAddress(spec.addr); got != spec.frame {
			t.Errorf("[spec %d] expected FrameFromAddress(%#x) to be %d; got %d", specIndex, spec.addr, spec.frame, got)
		}
	}

	if got, exp := Frame(42).Base(), uintptr(42)<<PageShift; got != exp {
		t.Errorf("expected Frame(42).Base() to be %#x; got %#x", exp, got)
	}
}

func TestFrameRange(t *testing.T) {
	it := FrameRange(Frame(2), Frame(5))

	var got []Frame
	for {
		f, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, f)
	}

	exp := []Frame{2, 3, 4}
	if len(got) != len(exp) {
		t.Fatalf("expected %d frames; got %d", len(exp), len(got))
	}
	for i := range exp {
		if got[i] != exp[i] {
			t.Errorf("[index %d] expected frame %d; got %d", i, exp[i], got[i])
		}
	}
}

func TestFrameRangeEmpty(t *testing.T) {
	it := FrameRange(Frame(5), Frame(5))
	if _, ok := it.Next(); ok {
		t.Error("expected empty range to be immediately exhausted")
	}
}

func TestSetFrameAllocatorAndAllocFrame(t *testing.T) {
	defer func(orig FrameAllocatorFn) { frameAllocator = orig }(frameAllocator)

	callCount := 0
	SetFrameAllocator(func() (Frame, *kernel.Error) {
		callCount++
		return Frame(callCount), nil
	})

	f, err := AllocFrame()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != Frame(1) {
		t.Errorf("expected first allocated frame to be 1; got %d", f)
	}
}
