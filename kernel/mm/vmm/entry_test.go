package vmm

import (
	"testing"

	"github.com/kernelcore/memkernel/kernel/mm"
)

func TestPageTableEntryFree(t *testing.T) {
	var e pageTableEntry
	if !e.Free() {
		t.Fatal("a zeroed entry must be free")
	}
	e.SetFlags(FlagPresent)
	if e.Free() {
		t.Fatal("an entry with FlagPresent set must not be free")
	}
}

func TestPageTableEntryFlags(t *testing.T) {
	var e pageTableEntry
	e.SetFlags(FlagPresent | FlagRW)
	if !e.HasFlags(FlagPresent | FlagRW) {
		t.Error("expected both flags to be set")
	}
	if e.HasFlags(FlagPresent | FlagUser) {
		t.Error("FlagUser was never set")
	}
	if !e.HasAnyFlag(FlagUser | FlagRW) {
		t.Error("expected HasAnyFlag to report true when at least one flag matches")
	}

	e.ClearFlags(FlagRW)
	if e.HasFlags(FlagRW) {
		t.Error("expected FlagRW to be cleared")
	}
	if !e.HasFlags(FlagPresent) {
		t.Error("clearing FlagRW must not disturb FlagPresent")
	}
}

func TestPageTableEntrySetFree(t *testing.T) {
	var e pageTableEntry
	e.SetFlags(FlagPresent | FlagRW | FlagHuge)
	e.SetFree()
	if e != 0 {
		t.Errorf("expected a zeroed entry after SetFree; got %#x", uint64(e))
	}
}

func TestPageTableEntryFrameRoundTrip(t *testing.T) {
	var e pageTableEntry
	e.SetFlags(FlagPresent | FlagRW)

	f := mm.Frame(0x1234)
	e.SetFrame(f)

	if got := e.Frame(); got != f {
		t.Errorf("expected frame %d; got %d", f, got)
	}
	if !e.HasFlags(FlagPresent | FlagRW) {
		t.Error("SetFrame must not disturb existing flags")
	}
}

func TestPageTableEntrySetFrameLeavesFlagsAlone(t *testing.T) {
	var e pageTableEntry
	e.SetFrame(mm.Frame(1))
	e.SetFlags(FlagPresent)
	e.SetFrame(mm.Frame(2))

	if !e.HasFlags(FlagPresent) {
		t.Error("a second SetFrame must not clear flags set in between")
	}
	if got := e.Frame(); got != mm.Frame(2) {
		t.Errorf("expected the second SetFrame to win; got frame %d", got)
	}
}
