package vmm

import "github.com/kernelcore/memkernel/kernel/cpu"

// the following functions are mocked by tests and are automatically inlined
// by the compiler.
var (
	flushTLBEntryFn = cpu.FlushTLBEntry
	switchPDTFn     = cpu.SwitchPDT
	activePDTFn     = cpu.ActivePDT
)

// flushTLBAll performs a full TLB flush by reloading CR3 with its current
// value; this is required both before and after any use of the
// half-redirected recursive slot.
func flushTLBAll() {
	switchPDTFn(activePDTFn())
}
