package parts

import "fmt"

// Descriptor is one entry in the closed, build-time part registry: a name,
// an identify predicate, and a constructor bound to a transport-level
// Device. The registry itself (see registry var below) is the single
// source of truth — there is no reflection-based subclass discovery.
type Descriptor struct {
	Name     string
	Untested bool
	Identify func(IdentifierSet) bool
	New      func(d Device) (*Part, error)
}

// matchDSU is the identify predicate shared by every DSU-keyed family:
// match the (processor, family, series, variant) tuple. All four fields are
// always compared; there is no wildcard value for variant.
func matchDSU(ids IdentifierSet, processor, family, series, variant uint32) bool {
	if ids.DSU == nil {
		return false
	}
	d := ids.DSU
	if d.Processor != processor || d.Family != family || d.Series != series {
		return false
	}
	return d.Variant == variant
}

// registry is the closed set of concrete parts this module ships with. It
// is not exhaustive of every SAM part Atmel ever produced; LoadDescriptors
// lets a caller extend it from a TOML descriptor file without touching this
// list (spec.md §9's "plug-in a new part" ergonomic, without runtime type
// introspection).
var registry = []Descriptor{
	// SAM D20 (Cortex-M0+, DSU family=0 series=0).
	{
		Name:     "ATSAMD20J18A",
		Identify: func(ids IdentifierSet) bool { return matchDSU(ids, 1, 0, 0, 0) },
		New: func(d Device) (*Part, error) {
			return NewCortexM0Plus(d, "ATSAMD20J18A", false, 256*1024), nil
		},
	},
	{
		Name:     "ATSAMD20J17A",
		Untested: true,
		Identify: func(ids IdentifierSet) bool { return matchDSU(ids, 1, 0, 0, 1) },
		New: func(d Device) (*Part, error) {
			return NewCortexM0Plus(d, "ATSAMD20J17A", true, 128*1024), nil
		},
	},
	{
		Name:     "ATSAMD20G18A",
		Untested: true,
		Identify: func(ids IdentifierSet) bool { return matchDSU(ids, 1, 0, 0, 5) },
		New: func(d Device) (*Part, error) {
			return NewCortexM0Plus(d, "ATSAMD20G18A", true, 256*1024), nil
		},
	},

	// SAM3X/SAM3A (Cortex-M3, CHIPID-keyed, two planes).
	{
		Name:     "ATSAM3X8E",
		Identify: func(ids IdentifierSet) bool { return matchCHIPID(ids, 0x285E0A60) },
		New: func(d Device) (*Part, error) {
			return NewSAM3X(d, "ATSAM3X8E", false, 512, 2)
		},
	},
	{
		Name:     "ATSAM3X8H",
		Untested: true,
		Identify: func(ids IdentifierSet) bool { return matchCHIPID(ids, 0x286E0A60) },
		New: func(d Device) (*Part, error) {
			return NewSAM3X(d, "ATSAM3X8H", true, 512, 2)
		},
	},
	{
		Name:     "ATSAM3X4E",
		Untested: true,
		Identify: func(ids IdentifierSet) bool { return matchCHIPID(ids, 0x285B0960) },
		New: func(d Device) (*Part, error) {
			return NewSAM3X(d, "ATSAM3X4E", true, 256, 2)
		},
	},

	// SAM4S (Cortex-M4, CHIPID-keyed).
	{
		Name:     "ATSAM4SD16C",
		Identify: func(ids IdentifierSet) bool { return matchCHIPID(ids, 0x29A70CE0) },
		New: func(d Device) (*Part, error) {
			return NewSAM4S(d, "ATSAM4SD16C", false, 1024, 2)
		},
	},
	{
		Name:     "ATSAM4SD32C",
		Untested: true,
		Identify: func(ids IdentifierSet) bool { return matchCHIPID(ids, 0x29A70EE0) },
		New: func(d Device) (*Part, error) {
			return NewSAM4S(d, "ATSAM4SD32C", true, 2048, 2)
		},
	},
	{
		Name:     "ATSAM4SA16C",
		Untested: true,
		Identify: func(ids IdentifierSet) bool { return matchCHIPID(ids, 0x28A70CE0) },
		New: func(d Device) (*Part, error) {
			return NewSAM4S(d, "ATSAM4SA16C", true, 1024, 1)
		},
	},

	// SAM V/E/S (Cortex-M7, CHIPID-keyed, single plane).
	{
		Name:     "ATSAMV71Q21",
		Untested: true,
		Identify: matchSAMV,
		New: func(d Device) (*Part, error) {
			return NewCortexM7(d, "ATSAMV71Q21", true, 2048)
		},
	},
}

// All returns every registered Descriptor: built-in plus any appended via
// LoadDescriptors.
func All() []Descriptor {
	return registry
}

// FindByName returns every registered Descriptor whose Name matches exactly.
func FindByName(name string) []Descriptor {
	var found []Descriptor
	for _, desc := range registry {
		if desc.Name == name {
			found = append(found, desc)
		}
	}
	return found
}

// Identify evaluates every registered Descriptor's predicate against ids and
// constructs the Part for the sole match. Zero matches fails UnknownPart;
// more than one fails AmbiguousPart.
func Identify(d Device, ids IdentifierSet) (*Part, error) {
	var matches []Descriptor
	for _, desc := range registry {
		if desc.Identify(ids) {
			matches = append(matches, desc)
		}
	}

	switch len(matches) {
	case 0:
		return nil, UnknownPart{}
	case 1:
		p, err := matches[0].New(d)
		if err != nil {
			return nil, fmt.Errorf("parts: constructing %s: %w", matches[0].Name, err)
		}
		p.Name = matches[0].Name
		p.Untested = matches[0].Untested
		return p, nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return nil, AmbiguousPart{Candidates: names}
	}
}
