package vmm

import "github.com/kernelcore/memkernel/kernel/mm"

// Flag is a single bit of a page table entry.
type Flag uint64

// Page table entry flag vocabulary. Bits 9-11 and 52-62 are available to
// software; FlagCopyOnWrite claims bit 9.
const (
	FlagPresent Flag = 1 << iota
	FlagRW
	FlagUser
	FlagWriteThrough
	FlagNoCache
	FlagAccessed
	FlagDirty
	FlagHuge
	FlagGlobal
	FlagCopyOnWrite
)

// FlagNoExecute requires EFER.NXE to be set; enforced at boot.
const FlagNoExecute Flag = 1 << 63

// pageTableEntry is a single 64-bit page table slot. If FlagPresent is clear
// the entry is considered free and Frame() is meaningless.
type pageTableEntry uint64

// Free reports whether the entry is unused.
func (e pageTableEntry) Free() bool {
	return e&pageTableEntry(FlagPresent) == 0
}

// HasFlags reports whether every bit of flags is set.
func (e pageTableEntry) HasFlags(flags Flag) bool {
	return uint64(e)&uint64(flags) == uint64(flags)
}

// HasAnyFlag reports whether any bit of flags is set.
func (e pageTableEntry) HasAnyFlag(flags Flag) bool {
	return uint64(e)&uint64(flags) != 0
}

// SetFlags ORs flags into the entry.
func (e *pageTableEntry) SetFlags(flags Flag) {
	*e |= pageTableEntry(flags)
}

// ClearFlags clears flags from the entry.
func (e *pageTableEntry) ClearFlags(flags Flag) {
	*e &^= pageTableEntry(flags)
}

// SetFree zeroes the entry, marking it unused.
func (e *pageTableEntry) SetFree() {
	*e = 0
}

// Frame returns the physical frame this entry points at.
func (e pageTableEntry) Frame() mm.Frame {
	return mm.FrameFromAddress(uintptr(e) & ptePhysPageMask)
}

// SetFrame rewrites the physical frame bits of the entry, leaving its flags
// untouched. f's base address must already be frame-aligned.
func (e *pageTableEntry) SetFrame(f mm.Frame) {
	*e = pageTableEntry(uint64(*e)&^uint64(ptePhysPageMask) | uint64(f.Base()))
}
