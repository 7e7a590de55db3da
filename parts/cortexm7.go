package parts

import (
	"github.com/abcminiuser/sam-ba-loader/addr"
	"github.com/abcminiuser/sam-ba-loader/flash"
)

// Cortex-M7 (SAMV/E/S) family geometry (spec.md §4.9): a single EEFC plane
// at 0x400E0C00, flash base 0x00400000, no bootloader reservation.
const (
	cortexM7FlashBase = 0x00400000
	cortexM7RegsBase  = 0x400E0C00
	cortexM7PageSize  = 512
)

// NewCortexM7 builds a Part for a SAMV/E/S device with a single EEFC plane
// of totalFlashKiB KiB.
func NewCortexM7(d Device, name string, untested bool, totalFlashKiB int) (*Part, error) {
	totalLen := totalFlashKiB * 1024
	pages := totalLen / cortexM7PageSize

	ctrl, err := flash.NewEEFC(d, cortexM7FlashBase, cortexM7RegsBase, pages, cortexM7PageSize, false)
	if err != nil {
		return nil, err
	}

	return &Part{
		Name:           name,
		Untested:       untested,
		device:         d,
		FlashRange:     addr.New(cortexM7FlashBase, totalLen, totalLen),
		AppAddress:     cortexM7FlashBase,
		Controllers:    []flash.Controller{ctrl},
		BootController: ctrl,
	}, nil
}

// matchSAMV is the identify predicate for the SAM E/S/V series: CHIPID
// processor field 0 (Cortex-M7) and one of the SAMV71/V70/E70/S70
// architecture codes (spec.md §4.3's architecture table).
func matchSAMV(ids IdentifierSet) bool {
	if ids.CHIPID == nil || ids.CHIPID.Processor != 0 {
		return false
	}
	switch ids.CHIPID.Architecture {
	case 0xA0, 0xA1, 0xA2, 0xA3:
		return true
	default:
		return false
	}
}
