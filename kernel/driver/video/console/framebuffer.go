package console

import (
	"reflect"
	"sync"
	"unsafe"
)

const (
	clearColor = Black
	clearChar  = byte(' ')

	// textModeWidth and textModeHeight are the dimensions of the standard
	// VGA text mode, used before a multiboot framebuffer has been located.
	textModeWidth  = 80
	textModeHeight = 25

	// textModePhysAddr is the fixed physical address of the VGA text mode
	// framebuffer.
	textModePhysAddr = uintptr(0xB8000)
)

// Framebuffer implements a console backed by a flat array of VGA-style
// (attribute, character) cells mapped directly over a physical framebuffer
// address. The same layout serves both the fixed 80x25 text mode available
// immediately after boot and whatever mode the multiboot bootloader reports,
// depending on which constructor is used to set it up.
type Framebuffer struct {
	sync.Mutex

	width  uint16
	height uint16

	fb []uint16
}

// NewTextModeFramebuffer returns a Framebuffer already initialized to the
// standard 80x25 VGA text mode, for use before the real display mode is
// known.
func NewTextModeFramebuffer() *Framebuffer {
	cons := &Framebuffer{}
	cons.Init(textModeWidth, textModeHeight, textModePhysAddr)
	return cons
}

// Init sets up the console to address a width x height grid of cells at
// fbPhysAddr.
func (cons *Framebuffer) Init(width, height uint16, fbPhysAddr uintptr) {
	cons.width = width
	cons.height = height

	// Set up our frame buffer object by creating a fake slice object pointing
	// to the physical address of the screen buffer.
	cons.fb = *(*[]uint16)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(cons.width * cons.height),
		Cap:  int(cons.width * cons.height),
		Data: fbPhysAddr,
	}))
}

// Clear clears the specified rectangular region
func (cons *Framebuffer) Clear(x, y, width, height uint16) {
	var (
		attr                 = uint16((clearColor << 4) | clearColor)
		clr                  = attr | uint16(clearChar)
		rowOffset, colOffset uint16
	)

	// clip rectangle
	if x >= cons.width {
		x = cons.width
	}
	if y >= cons.height {
		y = cons.height
	}

	if x+width > cons.width {
		width = cons.width - x
	}
	if y+height > cons.height {
		height = cons.height - y
	}

	rowOffset = (y * cons.width) + x
	for ; height > 0; height, rowOffset = height-1, rowOffset+cons.width {
		for colOffset = rowOffset; colOffset < rowOffset+width; colOffset++ {
			cons.fb[colOffset] = clr
		}
	}
}

// Dimensions returns the console width and height in characters.
func (cons *Framebuffer) Dimensions() (uint16, uint16) {
	return cons.width, cons.height
}

// Scroll a particular number of lines to the specified direction.
func (cons *Framebuffer) Scroll(dir ScrollDir, lines uint16) {
	if lines == 0 || lines > cons.height {
		return
	}

	var i uint16
	offset := lines * cons.width

	switch dir {
	case Up:
		for ; i < (cons.height-lines)*cons.width; i++ {
			cons.fb[i] = cons.fb[i+offset]
		}
	case Down:
		for i = cons.height*cons.width - 1; i >= lines*cons.width; i-- {
			cons.fb[i] = cons.fb[i-offset]
		}
	}
}

// Write a char to the specified location.
func (cons *Framebuffer) Write(ch byte, attr Attr, x, y uint16) {
	if x >= cons.width || y >= cons.height {
		return
	}

	cons.fb[(y*cons.width)+x] = (uint16(attr) << 8) | uint16(ch)
}
