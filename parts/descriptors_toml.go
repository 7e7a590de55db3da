package parts

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// tomlDescriptorFile is the on-disk schema for a user-supplied part
// descriptor table, modeled after the drivedb.toml convention of shipping a
// built-in database as data rather than code: one [[part]] table per
// concrete device, keyed either by a masked CHIPID constant or a DSU tuple.
type tomlDescriptorFile struct {
	Part []tomlPartDescriptor `toml:"part"`
}

type tomlPartDescriptor struct {
	Name     string `toml:"name"`
	Untested bool   `toml:"untested"`
	Family   string `toml:"family"` // "cortex-m0+", "sam3x", "sam4s", "cortex-m7"

	ChipID uint32 `toml:"chip_id"` // CHIPID match (masked); 0 means "not CHIPID-keyed"

	DSUProcessor uint32 `toml:"dsu_processor"`
	DSUFamily    uint32 `toml:"dsu_family"`
	DSUSeries    uint32 `toml:"dsu_series"`
	DSUVariant   uint32 `toml:"dsu_variant"`
	DSUKeyed     bool   `toml:"dsu_keyed"`

	TotalFlashKiB int `toml:"total_flash_kib"`
	Planes        int `toml:"planes"` // SAM3X/SAM4S only; defaults to 1
}

// LoadDescriptors parses a TOML descriptor file (see tomlDescriptorFile) and
// returns the Descriptors it describes, for the caller to append to the
// built-in registry via Register. This lets a deployment add parts this
// module does not ship with, without recompiling it.
func LoadDescriptors(path string) ([]Descriptor, error) {
	var file tomlDescriptorFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("parts: loading descriptors from %s: %w", path, err)
	}

	out := make([]Descriptor, 0, len(file.Part))
	for _, pd := range file.Part {
		desc, err := pd.toDescriptor()
		if err != nil {
			return nil, fmt.Errorf("parts: descriptor %q: %w", pd.Name, err)
		}
		out = append(out, desc)
	}
	return out, nil
}

// Register appends descs to the process-wide registry that Identify and
// FindByName search. Call once at startup, after LoadDescriptors.
func Register(descs ...Descriptor) {
	registry = append(registry, descs...)
}

func (pd tomlPartDescriptor) toDescriptor() (Descriptor, error) {
	name, untested, planes := pd.Name, pd.Untested, pd.Planes
	if planes == 0 {
		planes = 1
	}

	var identify func(IdentifierSet) bool
	if pd.DSUKeyed {
		identify = func(ids IdentifierSet) bool {
			return matchDSU(ids, pd.DSUProcessor, pd.DSUFamily, pd.DSUSeries, pd.DSUVariant)
		}
	} else {
		identify = func(ids IdentifierSet) bool { return matchCHIPID(ids, pd.ChipID) }
	}

	var newFn func(d Device) (*Part, error)
	switch pd.Family {
	case "cortex-m0+":
		newFn = func(d Device) (*Part, error) {
			return NewCortexM0Plus(d, name, untested, pd.TotalFlashKiB*1024), nil
		}
	case "sam3x":
		newFn = func(d Device) (*Part, error) { return NewSAM3X(d, name, untested, pd.TotalFlashKiB, planes) }
	case "sam4s":
		newFn = func(d Device) (*Part, error) { return NewSAM4S(d, name, untested, pd.TotalFlashKiB, planes) }
	case "cortex-m7":
		newFn = func(d Device) (*Part, error) { return NewCortexM7(d, name, untested, pd.TotalFlashKiB) }
	default:
		return Descriptor{}, fmt.Errorf("unknown family %q", pd.Family)
	}

	return Descriptor{Name: name, Untested: untested, Identify: identify, New: newFn}, nil
}
