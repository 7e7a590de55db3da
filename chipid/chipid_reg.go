package chipid

import "fmt"

// CHIPID decodes the SAM3/4/V chip identification registers: CIDR at
// baseAddress and EXID at baseAddress+0x04.
type CHIPID struct {
	BaseAddress    uint32
	Raw            uint32 // CIDR
	ExtendedChipID uint32 // EXID

	Version      uint32
	Processor    uint32
	Flash        [2]uint32 // bank 0, bank 1 size codes
	SRAM         uint32
	Architecture uint32
}

const (
	cidrOffset = 0x00
	exidOffset = 0x04
)

var chipidProcessors = map[uint32]string{
	0: "Cortex-M7",
	1: "ARM946ES",
	2: "ARM7TDMI",
	3: "Cortex-M3",
	4: "ARM920T",
	5: "ARM926EJS",
	6: "Cortex-A5",
	7: "Cortex-M4",
}

var chipidFlashBankSize = map[uint32]string{
	0: "NONE", 1: "8KB", 2: "16KB", 3: "32KB", 5: "64KB",
	7: "128KB", 9: "256KB", 10: "512KB", 12: "1024KB", 14: "2048KB",
}

var chipidSRAMSize = map[uint32]string{
	0: "48KB", 1: "1KB", 2: "2KB", 3: "6KB", 4: "24KB", 5: "4KB",
	6: "80KB", 7: "160KB", 8: "8KB", 9: "16KB", 10: "32KB", 11: "64KB",
	12: "128KB", 13: "256KB", 14: "96KB", 15: "512KB",
}

// chipidArchitectures maps CIDR ARCH codes to SAM family names. It is not
// exhaustive: the ARCH codes of the registry's SAM3X and SAM4S CHIP_ID
// constants (0x85, 0x86, 0x8A, 0x9A) are not in it, and CHIPID.String prints
// the raw ARCH code without consulting this table.
var chipidArchitectures = map[uint32]string{
	0x19: "SAM9xx",
	0x29: "SAM9XExx",
	0x34: "SAM4SxA",
	0x37: "SAM3UxC",
	0x38: "SAM3UxE",
	0x39: "SAM3AxC",
	0x3A: "SAM3AxE",
	0x3B: "SAM3XxC",
	0x3C: "SAM3XxE",
	0x3D: "SAM3XxG",
	0x40: "SAM3SxA",
	0x42: "SAM3SxB",
	0x44: "SAM3SxC",
	0x55: "SAM3NxA",
	0x64: "SAM4SxB",
	0x84: "SAM4SxC",
	0x88: "SAM4SxA",
	0x89: "SAM4SDxA/B",
	0xA0: "SAMV71",
	0xA1: "SAMV70",
	0xA2: "SAME70",
	0xA3: "SAMS70",
}

// ReadCHIPID reads and decodes CIDR and EXID at baseAddress. valid is false
// when CIDR reads back zero.
func ReadCHIPID(r Reader, baseAddress uint32) (id CHIPID, valid bool, err error) {
	cidr, err := r.ReadWord(baseAddress + cidrOffset)
	if err != nil {
		return CHIPID{}, false, err
	}
	if cidr == 0 {
		return CHIPID{}, false, nil
	}
	exid, err := r.ReadWord(baseAddress + exidOffset)
	if err != nil {
		return CHIPID{}, false, err
	}

	id = CHIPID{
		BaseAddress:    baseAddress,
		Raw:            cidr,
		ExtendedChipID: exid,
		Version:        cidr & 0x1F,
		Processor:      (cidr >> 5) & 0x7,
		Flash:          [2]uint32{(cidr >> 8) & 0xF, (cidr >> 12) & 0xF},
		SRAM:           (cidr >> 16) & 0xF,
		Architecture:   (cidr >> 20) & 0xFF,
	}
	return id, true, nil
}

// MaskedChipID masks off the version/revision nibble, matching every Part's
// CHIP_ID constant comparison (spec.md §4.4).
func (id CHIPID) MaskedChipID() uint32 {
	return id.Raw & 0x7FFFFFE0
}

func (id CHIPID) String() string {
	return fmt.Sprintf(
		"CHIPID @ 0x%08X: 0x%08X\n\tVersion:\t%d\n\tProcessor:\t%s\n\tArchitecture:\t0x%X\n\tFlash Bank 0:\t%s\n\tFlash Bank 1:\t%s\n\tSRAM:\t\t%s\n\tExtended ID:\t0x%08X",
		id.BaseAddress, id.Raw, id.Version,
		lookup(chipidProcessors, id.Processor),
		id.Architecture,
		lookup(chipidFlashBankSize, id.Flash[0]),
		lookup(chipidFlashBankSize, id.Flash[1]),
		lookup(chipidSRAMSize, id.SRAM),
		id.ExtendedChipID,
	)
}
