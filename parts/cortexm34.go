package parts

import (
	"github.com/abcminiuser/sam-ba-loader/addr"
	"github.com/abcminiuser/sam-ba-loader/flash"
	"github.com/abcminiuser/sam-ba-loader/rstc"
)

// Cortex-M3/M4 EEFC register bases; both SAM3 and SAM4S families share these
// across their one- or two-plane configurations (spec.md §4.9).
const (
	eefcPlane0RegsBase = 0x400E0A00
	eefcPlane1RegsBase = 0x400E0C00
)

// newCortexM34 builds the common plane/reset-controller wiring for a
// Cortex-M3/M4 part: flashBase is the absolute flash start address,
// totalLen/planePageSize/planes describe its geometry, resetBase addresses
// its RSTC, and dontUseReadBlock carries the SAM3 read-block erratum flag
// (always false on SAM4S).
func newCortexM34(d Device, name string, untested bool, flashBase uint32, totalLen, planePageSize, planes int, resetBase uint32, dontUseReadBlock bool) (*Part, error) {
	planeLen := totalLen / planes
	planePages := planeLen / planePageSize

	controllers := make([]flash.Controller, planes)
	regsBases := []uint32{eefcPlane0RegsBase, eefcPlane1RegsBase}

	var bootController *flash.EEFC
	for i := 0; i < planes; i++ {
		planeBase := flashBase + uint32(i*planeLen)
		ctrl, err := flash.NewEEFC(d, planeBase, regsBases[i], planePages, planePageSize, dontUseReadBlock)
		if err != nil {
			return nil, err
		}
		controllers[i] = ctrl
		if i == 0 {
			bootController = ctrl
		}
	}

	return &Part{
		Name:           name,
		Untested:       untested,
		device:         d,
		FlashRange:     addr.New(flashBase, totalLen, planeLen),
		AppAddress:     flashBase,
		Controllers:    controllers,
		BootController: bootController,
		ResetCtrl:      rstc.New(d, resetBase),
	}, nil
}

// SAM3 family constants (spec.md §4.9): flash base 0x00080000, 256 B pages,
// RSTC at 0x400E1A00. Planes/KiB vary per device.
const (
	sam3FlashBase = 0x00080000
	sam3PageSize  = 256
	sam3ResetBase = 0x400E1A00
)

// NewSAM3X builds a SAM3X/SAM3A Part. totalFlashKiB is the part's total
// flash size in KiB; planes is 1 or 2.
func NewSAM3X(d Device, name string, untested bool, totalFlashKiB, planes int) (*Part, error) {
	return newCortexM34(d, name, untested, sam3FlashBase, totalFlashKiB*1024, sam3PageSize, planes, sam3ResetBase, true)
}

// SAM4S family constants (spec.md §4.9): flash base 0x00400000, 512 B pages,
// RSTC at 0x400E1400.
const (
	sam4SFlashBase = 0x00400000
	sam4SPageSize  = 512
	sam4SResetBase = 0x400E1400
)

// NewSAM4S builds a SAM4S Part. totalFlashKiB is the part's total flash size
// in KiB; planes is 1 or 2.
func NewSAM4S(d Device, name string, untested bool, totalFlashKiB, planes int) (*Part, error) {
	return newCortexM34(d, name, untested, sam4SFlashBase, totalFlashKiB*1024, sam4SPageSize, planes, sam4SResetBase, false)
}

// matchCHIPID is the identify predicate shared by every CHIPID-keyed
// family: compare the probed CIDR with the revision nibble masked off
// against a part's CHIP_ID constant (spec.md §4.4).
func matchCHIPID(ids IdentifierSet, chipID uint32) bool {
	if ids.CHIPID == nil {
		return false
	}
	return ids.CHIPID.MaskedChipID() == chipID
}
