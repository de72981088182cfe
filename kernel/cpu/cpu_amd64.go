package cpu

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt stops instruction execution.
func Halt()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr

// ReadCR2 returns the faulting virtual address recorded by the CPU for the
// most recent page fault.
func ReadCR2() uintptr

// EnableNXE sets EFER.NXE, allowing page table entries to use the
// NO_EXECUTE flag.
func EnableNXE()

// EnableWP sets CR0.WP, making kernel-mode writes honor the WRITABLE flag
// instead of ignoring it.
func EnableWP()
