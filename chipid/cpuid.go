package chipid

import "fmt"

// CPUID is the ARM architectural core identification register, read from a
// single word at BaseAddress (conventionally 0xE000ED00).
type CPUID struct {
	BaseAddress uint32
	Raw         uint32

	Revision     uint32
	Part         uint32
	Architecture uint32
	Variant      uint32
	Implementer  uint32
}

// Known CPUID.Part values.
const (
	PartCortexM0  = 0xC20
	PartCortexM1  = 0xC21
	PartCortexM3  = 0xC23
	PartCortexM34 = 0xC24 // Cortex-M3/Cortex-M4 (CPUID alone cannot disambiguate)
	PartCortexM7  = 0xC27
	PartCortexM0P = 0xC60
)

var cpuidImplementers = map[uint32]string{0x41: "ARM"}

var cpuidArchitectures = map[uint32]string{0xC: "ARMv6-M", 0xF: "ARMv7-M"}

var cpuidParts = map[uint32]string{
	PartCortexM0:  "Cortex-M0",
	PartCortexM1:  "Cortex-M1",
	PartCortexM3:  "Cortex-M3",
	PartCortexM34: "Cortex-M3/Cortex-M4",
	PartCortexM7:  "Cortex-M7",
	PartCortexM0P: "Cortex-M0+",
}

// ReadCPUID reads and decodes the CPUID register at baseAddress. Valid
// reports false (with a zero-valued CPUID) when the raw word read back is
// zero, the sentinel for "nothing mapped at this address."
func ReadCPUID(r Reader, baseAddress uint32) (id CPUID, valid bool, err error) {
	raw, err := r.ReadWord(baseAddress)
	if err != nil {
		return CPUID{}, false, err
	}
	if raw == 0 {
		return CPUID{}, false, nil
	}

	id = CPUID{
		BaseAddress:  baseAddress,
		Raw:          raw,
		Revision:     raw & 0xF,
		Part:         (raw >> 4) & 0xFFF,
		Architecture: (raw >> 16) & 0xF,
		Variant:      (raw >> 20) & 0xF,
		Implementer:  (raw >> 24) & 0xFF,
	}
	return id, true, nil
}

func (id CPUID) String() string {
	return fmt.Sprintf(
		"CPUID @ 0x%08X: 0x%08X\n\tImplementer:\t%s\n\tArchitecture:\t%s\n\tVersion:\tr%dp%d\n\tPart:\t\t%s",
		id.BaseAddress, id.Raw,
		lookup(cpuidImplementers, id.Implementer),
		lookup(cpuidArchitectures, id.Architecture),
		id.Variant, id.Revision,
		lookup(cpuidParts, id.Part),
	)
}
