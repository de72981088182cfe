package hal

import (
	"github.com/kernelcore/memkernel/kernel/driver/tty"
	"github.com/kernelcore/memkernel/kernel/driver/video/console"
	"github.com/kernelcore/memkernel/kernel/hal/multiboot"
)

var (
	physConsole = &console.Framebuffer{}

	// ActiveTerminal points to the currently active terminal.
	ActiveTerminal = &tty.Vt{}
)

// InitTerminal provides a basic terminal to allow the kernel to emit some output
// till everything is properly setup
func InitTerminal() {
	fbInfo := multiboot.GetFramebufferInfo()

	physConsole.Init(uint16(fbInfo.Width), uint16(fbInfo.Height), uintptr(fbInfo.PhysAddr))
	ActiveTerminal.AttachTo(physConsole)
}
