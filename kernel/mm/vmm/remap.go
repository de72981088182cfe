package vmm

import (
	"github.com/kernelcore/memkernel/kernel"
	"github.com/kernelcore/memkernel/kernel/hal/multiboot"
	"github.com/kernelcore/memkernel/kernel/log"
	"github.com/kernelcore/memkernel/kernel/mm"
)

var errMisalignedSection = &kernel.Error{Module: "vmm", Message: "ELF section is not 4KiB-aligned", Kind: kernel.KindContract}

// sectionFlags derives page table flags from an ELF section's own flags:
// PRESENT is implied by being ALLOCATED, WRITABLE mirrors the section's
// writable bit, and NO_EXECUTE is set unless the section is EXECUTABLE.
func sectionFlags(s *multiboot.ElfSection) Flag {
	flags := FlagPresent
	if s.HasFlag(multiboot.ElfSectionWritable) {
		flags |= FlagRW
	}
	if !s.HasFlag(multiboot.ElfSectionExecutable) {
		flags |= FlagNoExecute
	}
	return flags
}

// Remap builds a fresh hierarchy that maps the kernel's ELF sections with
// W^X permissions, the VGA buffer, and the multiboot blob; installs it; and
// turns the previously active P4's virtual image into a guard page. It is a
// one-shot operation, run exactly once after the BitmapAllocator is ready.
func Remap(allocFrame FrameAllocatorFn) *kernel.Error {
	tiny, err := NewTinyAllocator(allocFrame)
	if err != nil {
		return err
	}
	temp := NewTempPage(mm.PageFromAddress(tempPageSentinelAddr), tiny)

	newP4Frame, err := allocFrame()
	if err != nil {
		return err
	}
	inactive := NewInactiveTable(newP4Frame, temp)

	active := &ActiveTable{}
	oldP4 := active.p4Frame()

	var mapErr *kernel.Error
	active.With(&inactive, temp, func() {
		multiboot.VisitElfSections(func(s *multiboot.ElfSection) bool {
			if !s.HasFlag(multiboot.ElfSectionAllocated) {
				return true
			}
			if s.Addr&uint64(mm.PageMask) != 0 {
				panicFn(errMisalignedSection)
			}

			flags := sectionFlags(s)
			startFrame := mm.FrameFromAddress(uintptr(s.Addr))
			endFrame := mm.FrameFromAddress(uintptr(s.Addr+s.Size) - 1)
			for f := startFrame; f <= endFrame; f++ {
				if mapErr = MapID(f, flags, allocFrame); mapErr != nil {
					return false
				}
			}
			return true
		})
		if mapErr != nil {
			return
		}

		vgaFrame := mm.FrameFromAddress(vgaBufferPhysAddr)
		if mapErr = MapID(vgaFrame, FlagRW, allocFrame); mapErr != nil {
			return
		}

		mbStart := mm.FrameFromAddress(multiboot.StartAddress())
		mbEnd := mm.FrameFromAddress(multiboot.EndAddress() - 1)
		for f := mbStart; f <= mbEnd; f++ {
			if mapErr = MapID(f, FlagPresent, allocFrame); mapErr != nil {
				return
			}
		}
	})
	if mapErr != nil {
		return mapErr
	}

	active.Switch(inactive)

	guardPage := mm.PageFromAddress(oldP4.Base())
	Unmap(guardPage)

	log.Logf(log.Info, "[vmm] kernel remapped; old P4 frame %d is now a guard page\n", uintptr(oldP4))
	return nil
}
