package chipid

import "fmt"

// DSU decodes the single DID register the Device Service Unit exposes on
// SAM D/L/C parts, conventionally at baseAddress+0x18.
type DSU struct {
	BaseAddress uint32
	Raw         uint32

	Variant   uint32
	Revision  uint32
	Die       uint32
	Series    uint32
	Family    uint32
	Processor uint32
}

const didOffset = 0x18

var dsuProcessors = map[uint32]string{
	0: "Cortex-M0",
	1: "Cortex-M0+",
	2: "Cortex-M3",
	3: "Cortex-M4",
}

var dsuFamilies = map[uint32]string{
	0: "SAM D",
	1: "SAM L",
	2: "SAM C",
}

// ReadDSU reads and decodes the DID register at baseAddress+0x18. valid is
// false when the read back value is zero.
func ReadDSU(r Reader, baseAddress uint32) (id DSU, valid bool, err error) {
	raw, err := r.ReadWord(baseAddress + didOffset)
	if err != nil {
		return DSU{}, false, err
	}
	if raw == 0 {
		return DSU{}, false, nil
	}

	id = DSU{
		BaseAddress: baseAddress,
		Raw:         raw,
		Variant:     raw & 0xFF,
		Revision:    (raw >> 8) & 0xF,
		Die:         (raw >> 12) & 0xF,
		Series:      (raw >> 16) & 0x3F,
		Family:      (raw >> 23) & 0x1F,
		Processor:   (raw >> 28) & 0xF,
	}
	return id, true, nil
}

func (id DSU) String() string {
	return fmt.Sprintf(
		"DSU @ 0x%08X: 0x%08X\n\tProcessor:\t%s\n\tFamily:\t\t%s\n\tSeries:\t\t%d\n\tDie:\t\t%d\n\tRevision:\t%d\n\tVariant:\t%d",
		id.BaseAddress, id.Raw,
		lookup(dsuProcessors, id.Processor),
		lookup(dsuFamilies, id.Family),
		id.Series, id.Die, id.Revision, id.Variant,
	)
}
