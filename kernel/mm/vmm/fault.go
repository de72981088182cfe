package vmm

import (
	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/log"
	"github.com/kernelcore/memkernel/kernel/mm"
)

// ReservedZeroedFrame is a single physical frame, reserved at Init time and
// mapped read-only with FlagCopyOnWrite by callers that want lazy, shared
// zero pages. It must never be mapped with FlagRW directly.
var ReservedZeroedFrame mm.Frame

var protectReservedZeroedPage bool

// reserveZeroedFrame allocates and zeroes the frame backing lazy zero-page
// mappings.
func reserveZeroedFrame(allocFrame FrameAllocatorFn, mapTemp func(mm.Frame) mm.Page, unmapTemp func()) *kernel.Error {
	frame, err := allocFrame()
	if err != nil {
		return err
	}
	page := mapTemp(frame)
	mm.Memset(page.Base(), 0, mm.PageSize)
	unmapTemp()

	ReservedZeroedFrame = frame
	protectReservedZeroedPage = true
	return nil
}

// HandlePageFault inspects the P1 entry for faultAddr and, if it is a
// copy-on-write page being written to, allocates a private copy, updates the
// mapping and reports that the faulting instruction can be retried. It
// returns false for every other fault, leaving the caller (an external IDT
// handler, out of scope for this core) to decide how to escalate.
func HandlePageFault(faultAddr uintptr, writeAccess bool, allocFrame FrameAllocatorFn, mapTemp func(mm.Frame) mm.Page, unmapTemp func()) bool {
	faultPage := mm.PageFromAddress(faultAddr)

	var target *pageTableEntry
	walk(faultPage, func(level uint, pte *pageTableEntry) bool {
		if pte.Free() {
			return false
		}
		if level == pageLevels-1 {
			target = pte
		}
		return true
	})

	if target == nil || !writeAccess || target.HasFlags(FlagRW) || !target.HasFlags(FlagCopyOnWrite) {
		return false
	}

	copyFrame, err := allocFrame()
	if err != nil {
		log.Logf(log.Error, "[vmm] page fault at %x: out of frames for copy-on-write\n", faultAddr)
		return false
	}

	tmp := mapTemp(copyFrame)
	mm.Memcopy(faultPage.Base(), tmp.Base(), mm.PageSize)
	unmapTemp()

	target.ClearFlags(FlagCopyOnWrite)
	target.SetFlags(FlagPresent | FlagRW)
	target.SetFrame(copyFrame)
	flushTLBEntryFn(faultPage.Base())

	return true
}
