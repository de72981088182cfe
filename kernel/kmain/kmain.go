package kmain

import (
	"github.com/kernelcore/memkernel/kernel"
	_ "github.com/kernelcore/memkernel/kernel/goruntime"
	"github.com/kernelcore/memkernel/kernel/hal"
	"github.com/kernelcore/memkernel/kernel/mm"
)

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
)

// mc is the MemoryController returned by mm.Init; every allocation made
// after boot (frames, stacks) flows through it.
var mc *mm.MemoryController

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. It is invoked by the rt0 assembly code after setting
// up the GDT and a minimal g0 struct that allows Go code to run on the 4K
// stack allocated by the assembly code.
//
// The rt0 code passes the physical address of the multiboot info payload
// provided by the bootloader, and the physical frame range occupied by the
// kernel image itself.
//
// Kmain is not expected to return. If it does, the rt0 code halts the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	hal.InitTerminal()
	hal.ActiveTerminal.Clear()

	var err *kernel.Error
	if mc, err = mm.Init(multibootInfoPtr, kernelStart, kernelEnd); err != nil {
		kernel.Panic(err)
	}

	if stk, err := mc.AllocateStack(1); err != nil {
		kernel.Panic(err)
	} else {
		_ = stk
	}

	// Use kernel.Panic instead of panic to prevent the compiler from
	// treating kernel.Panic as dead-code and eliminating it.
	kernel.Panic(errKmainReturned)
}
