package parts

import (
	"github.com/abcminiuser/sam-ba-loader/addr"
	"github.com/abcminiuser/sam-ba-loader/flash"
)

// Cortex-M0+ family geometry (spec.md §4.9): a single NVMCTRL plane, a fixed
// 2 KiB bootloader reservation at the start of flash, flash itself always
// starting at 0.
const (
	cortexM0PlusFlashBase     = 0x00000000
	cortexM0PlusNVMCtrlBase   = 0x41004000
	cortexM0PlusBootloaderLen = 2048
)

// Device is satisfied by samba.SAMBA; the subset every family constructor
// needs to wire up its flash controller(s) and reset controller.
type Device interface {
	Runner
	flash.Device
}

// NewCortexM0Plus builds a Part for a Cortex-M0+ SAM D/L/C device with
// totalFlashLen bytes of flash behind a single NVMCTRL plane.
func NewCortexM0Plus(d Device, name string, untested bool, totalFlashLen int) *Part {
	ctrl := flash.NewNVMCTRL(d, cortexM0PlusFlashBase, cortexM0PlusNVMCtrlBase)
	// FlashRange.PageSize here is the plane size (one plane covers the
	// whole range), not NVMCTRL's physical page size; NVMCTRL discovers and
	// chunks by its own physical page internally.
	return &Part{
		Name:        name,
		Untested:    untested,
		device:      d,
		FlashRange:  addr.New(cortexM0PlusFlashBase, totalFlashLen, totalFlashLen),
		AppAddress:  cortexM0PlusFlashBase + cortexM0PlusBootloaderLen,
		Controllers: []flash.Controller{ctrl},
	}
}
