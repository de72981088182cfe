package vmm

import (
	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/mm"
)

var errEarlyReserveNoSpace = &kernel.Error{Module: "vmm", Message: "no virtual address space left to reserve", Kind: kernel.KindExhaustion}

// earlyReserveLastUsed tracks the next free address below the temp-page
// sentinel; EarlyReserveRegion carves reservations downward from it.
var earlyReserveLastUsed = tempPageSentinelAddr

// EarlyReserveRegion reserves size bytes of virtual address space without
// establishing any mapping, for use by callers (the Go runtime bootstrap
// hook) that need a virtual range before they know how it will be backed.
func EarlyReserveRegion(size mm.Size) (uintptr, *kernel.Error) {
	rounded := size.Round()
	if uintptr(rounded) > earlyReserveLastUsed {
		return 0, errEarlyReserveNoSpace
	}

	start := earlyReserveLastUsed - uintptr(rounded)
	if !mm.Canonical(start) {
		return 0, errEarlyReserveNoSpace
	}

	earlyReserveLastUsed = start
	return start, nil
}
