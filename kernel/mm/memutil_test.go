package mm

import (
	"testing"
	"unsafe"
)

func uintptrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

func TestMemsetZeroSizeNoop(t *testing.T) {
	buf := []byte{1, 2, 3}
	Memset(uintptrOf(buf), 0xAA, 0)
	if buf[0] != 1 || buf[1] != 2 || buf[2] != 3 {
		t.Errorf("Memset with size 0 must not touch the buffer; got %v", buf)
	}
}

func TestMemsetFillsEntireRegion(t *testing.T) {
	buf := make([]byte, 37)
	Memset(uintptrOf(buf), 0x5a, Size(len(buf)))
	for i, b := range buf {
		if b != 0x5a {
			t.Fatalf("byte %d: expected 0x5a; got %#x", i, b)
		}
	}
}

func TestMemsetSingleByte(t *testing.T) {
	buf := []byte{0}
	Memset(uintptrOf(buf), 0x7, 1)
	if buf[0] != 0x7 {
		t.Errorf("expected 0x7; got %#x", buf[0])
	}
}

func TestMemcopyZeroSizeNoop(t *testing.T) {
	src := []byte{1, 2, 3}
	dst := []byte{9, 9, 9}
	Memcopy(uintptrOf(src), uintptrOf(dst), 0)
	if dst[0] != 9 || dst[1] != 9 || dst[2] != 9 {
		t.Errorf("Memcopy with size 0 must not touch dst; got %v", dst)
	}
}

func TestMemcopyCopiesBytes(t *testing.T) {
	src := []byte{10, 20, 30, 40, 50}
	dst := make([]byte, len(src))
	Memcopy(uintptrOf(src), uintptrOf(dst), Size(len(src)))
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("byte %d: expected %d; got %d", i, src[i], dst[i])
		}
	}
}
