// Package session sequences the whole host-side programming workflow:
// opening a transport, probing identifier registers, selecting the matching
// Part, and exposing the user-facing read/program/verify/erase/reset
// operations as one fail-fast façade (spec.md §4.10).
package session

import (
	"fmt"

	"github.com/abcminiuser/sam-ba-loader/chipid"
	"github.com/abcminiuser/sam-ba-loader/flash"
	"github.com/abcminiuser/sam-ba-loader/internal/samlog"
	"github.com/abcminiuser/sam-ba-loader/parts"
	"github.com/abcminiuser/sam-ba-loader/samba"
	"github.com/abcminiuser/sam-ba-loader/transport"
)

// Default identifier register addresses (spec.md §4.4).
const (
	defaultCPUIDAddress   = 0xE000ED00
	defaultCHIPIDAddress0 = 0x400E0740
	defaultCHIPIDAddress1 = 0x400E0940
	defaultDSUAddress     = 0x41002000
)

// CannotRecognizeChip is returned when every candidate address for a
// register read back zero.
type CannotRecognizeChip struct {
	Register       string
	AddressesTried []uint32
}

func (e CannotRecognizeChip) Error() string {
	return fmt.Sprintf("session: could not recognize chip: %s not present at any of %v", e.Register, e.AddressesTried)
}

// AddressOverrides replaces the default candidate list for a register name
// ("CPUID", "CHIPID", "DSU") with a single fixed address.
type AddressOverrides map[string]uint32

// Session owns one SAM-BA connection for its lifetime: a Transport wrapped
// by SAMBA, and (after SelectPart) the identified Part.
type Session struct {
	samba *samba.SAMBA
	part  *parts.Part
}

// Open opens a Transport and runs the SAM-BA initialization handshake.
func Open(t transport.Transport, isUSB bool) (*Session, error) {
	s, err := samba.Open(t, isUSB)
	if err != nil {
		return nil, err
	}
	return &Session{samba: s}, nil
}

// Probe reads every identifier register reachable from overrides (or the
// defaults), returning the populated IdentifierSet. CPUID is mandatory;
// DSU is probed only when CPUID resolves to a Cortex-M0+ part, otherwise
// CHIPID's candidates are tried in order until one reads non-zero.
func (s *Session) Probe(overrides AddressOverrides) (parts.IdentifierSet, error) {
	var ids parts.IdentifierSet

	cpuidAddr := resolveOverride(overrides, "CPUID", defaultCPUIDAddress)
	cpuid, valid, err := chipid.ReadCPUID(s.samba, cpuidAddr)
	if err != nil {
		return ids, err
	}
	if !valid {
		return ids, CannotRecognizeChip{Register: "CPUID", AddressesTried: []uint32{cpuidAddr}}
	}
	ids.CPUID = &cpuid
	samlog.Infof("%s", cpuid.String())

	if isCortexM0Plus(cpuid) {
		dsuAddr := resolveOverride(overrides, "DSU", defaultDSUAddress)
		dsu, valid, err := chipid.ReadDSU(s.samba, dsuAddr)
		if err != nil {
			return ids, err
		}
		if !valid {
			return ids, CannotRecognizeChip{Register: "DSU", AddressesTried: []uint32{dsuAddr}}
		}
		ids.DSU = &dsu
		samlog.Infof("%s", dsu.String())
		return ids, nil
	}

	candidates := []uint32{defaultCHIPIDAddress0, defaultCHIPIDAddress1}
	if addr, ok := overrides["CHIPID"]; ok {
		candidates = []uint32{addr}
	}

	var tried []uint32
	for _, candidate := range candidates {
		tried = append(tried, candidate)
		chip, valid, err := chipid.ReadCHIPID(s.samba, candidate)
		if err != nil {
			return ids, err
		}
		if valid {
			ids.CHIPID = &chip
			samlog.Infof("%s", chip.String())
			return ids, nil
		}
	}
	return ids, CannotRecognizeChip{Register: "CHIPID", AddressesTried: tried}
}

func resolveOverride(overrides AddressOverrides, name string, def uint32) uint32 {
	if addr, ok := overrides[name]; ok {
		return addr
	}
	return def
}

func isCortexM0Plus(id chipid.CPUID) bool {
	return id.Part == chipid.PartCortexM0P
}

// SelectPart resolves ids against the part registry and binds the matching
// Part to this session.
func (s *Session) SelectPart(ids parts.IdentifierSet) error {
	p, err := parts.Identify(s.samba, ids)
	if err != nil {
		return err
	}
	return s.bindPart(p)
}

// SelectPartByName bypasses identifier probing entirely and constructs the
// named registry entry directly (the CLI's --part override). UnknownPart is
// returned for no match, AmbiguousPart if the registry carries more than one
// entry under that name.
func (s *Session) SelectPartByName(name string) error {
	matches := parts.FindByName(name)
	switch len(matches) {
	case 0:
		return parts.UnknownPart{}
	case 1:
		p, err := matches[0].New(s.samba)
		if err != nil {
			return err
		}
		p.Name = matches[0].Name
		p.Untested = matches[0].Untested
		return s.bindPart(p)
	default:
		candidates := make([]string, len(matches))
		for i := range matches {
			candidates[i] = name
		}
		return parts.AmbiguousPart{Candidates: candidates}
	}
}

func (s *Session) bindPart(p *parts.Part) error {
	if p.Untested {
		samlog.Warnf("%s has not been hardware-validated; proceeding anyway", p.Name)
	}
	s.part = p
	return nil
}

func (s *Session) requirePart() error {
	if s.part == nil {
		return fmt.Errorf("session: no part selected; call Probe then SelectPart first")
	}
	return nil
}

// Info reports the selected part's identity and flash/controller state.
func (s *Session) Info() (string, error) {
	if err := s.requirePart(); err != nil {
		return "", err
	}
	return s.part.Info()
}

// ReadFlash reads length bytes starting at address from the selected part's
// application area (address/length default to the whole application area
// when 0).
func (s *Session) ReadFlash(address uint32, length int) ([]byte, error) {
	if err := s.requirePart(); err != nil {
		return nil, err
	}
	if address == 0 {
		address = s.part.AppAddress
	}
	if length == 0 {
		remaining, err := s.part.FlashRange.RemainingLength(address)
		if err != nil {
			return nil, err
		}
		length = remaining
	}
	return s.part.ReadFlash(address, length)
}

// ProgramFlash writes data to the selected part starting at address
// (defaulting to the application area start).
func (s *Session) ProgramFlash(data []byte, address uint32) error {
	if err := s.requirePart(); err != nil {
		return err
	}
	if address == 0 {
		address = s.part.AppAddress
	}
	return s.part.ProgramFlash(address, data)
}

// VerifyFlash compares data against the selected part starting at address
// (defaulting to the application area start).
func (s *Session) VerifyFlash(data []byte, address uint32) (*flash.Mismatch, error) {
	if err := s.requirePart(); err != nil {
		return nil, err
	}
	if address == 0 {
		address = s.part.AppAddress
	}
	return s.part.VerifyFlash(address, data)
}

// Erase erases the selected part's application area, or (when address is
// non-zero) only the flash plane containing address.
func (s *Session) Erase(address uint32) error {
	if err := s.requirePart(); err != nil {
		return err
	}
	if address == 0 {
		return s.part.EraseChip()
	}
	return s.part.ErasePlane(address)
}

// SetFlashBoot sets the boot-from-flash GPNVM bit.
func (s *Session) SetFlashBoot() error {
	if err := s.requirePart(); err != nil {
		return err
	}
	return s.part.SetFlashBoot()
}

// Reset bounces the selected part via its reset controller.
func (s *Session) Reset() error {
	if err := s.requirePart(); err != nil {
		return err
	}
	return s.part.Reset()
}

// RunApplication starts execution at the selected part's application entry
// point.
func (s *Session) RunApplication() error {
	if err := s.requirePart(); err != nil {
		return err
	}
	return s.part.RunApplication()
}
