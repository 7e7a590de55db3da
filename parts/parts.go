// Package parts holds the closed, build-time registry of supported SAM
// parts and the common Part façade every concrete family constructor
// builds: flash planes, an optional reset controller, and the
// identify/program/verify/read/erase operations the session layer drives.
//
// There is no runtime type introspection here: every concrete part is a
// Descriptor added to registry (or, for user-supplied parts, loaded from a
// TOML descriptor file via LoadDescriptors) rather than a discovered
// subclass, per the design note in spec.md §9.
package parts

import (
	"fmt"

	"github.com/abcminiuser/sam-ba-loader/addr"
	"github.com/abcminiuser/sam-ba-loader/chipid"
	"github.com/abcminiuser/sam-ba-loader/flash"
	"github.com/abcminiuser/sam-ba-loader/internal/samlog"
	"github.com/abcminiuser/sam-ba-loader/rstc"
)

// IdentifierSet is the populated subset of identifier registers a probe
// read back; nil members were never probed or read back zero.
type IdentifierSet struct {
	CPUID  *chipid.CPUID
	CHIPID *chipid.CHIPID
	DSU    *chipid.DSU
}

// UnknownPart is returned when zero registered parts match a probe.
type UnknownPart struct{}

func (UnknownPart) Error() string { return "parts: no registered part matches the probed identifiers" }

// AmbiguousPart is returned when more than one registered part matches a
// probe; Candidates names every match.
type AmbiguousPart struct {
	Candidates []string
}

func (e AmbiguousPart) Error() string {
	return fmt.Sprintf("parts: ambiguous match across %v", e.Candidates)
}

// CannotSetFlashBoot is returned when the boot-from-flash GPNVM bit read
// back clear after being set.
type CannotSetFlashBoot struct {
	GPNVM uint32
}

func (e CannotSetFlashBoot) Error() string {
	return fmt.Sprintf("parts: could not set boot-from-flash, GPNVM read back as 0x%X", e.GPNVM)
}

// Runner is the subset of samba.SAMBA a Part needs to start the application.
type Runner interface {
	RunFromAddress(address uint32) error
}

// Part is the common façade over a concrete SAM device: a total flash
// AddressRange, the ordered per-plane flash controllers backing it, and
// optionally a reset controller and a GPNVM-capable boot controller.
type Part struct {
	Name     string
	Untested bool

	device Runner

	FlashRange  addr.AddressRange
	AppAddress  uint32
	Controllers []flash.Controller

	// BootController is non-nil only for families that support
	// set-flash-boot (the EEFC-based Cortex-M3/M4/M7 families).
	BootController *flash.EEFC
	ResetCtrl      *rstc.RSTC
}

func (p *Part) controllerFor(address uint32) (flash.Controller, error) {
	for _, c := range p.Controllers {
		if c.Range().IsInRange(address, 1) {
			return c, nil
		}
	}
	return nil, addr.OutOfRange{Address: address, Range: p.FlashRange}
}

// RunApplication starts execution at the part's application entry point
// (past the bootloader reservation on families that have one).
func (p *Part) RunApplication() error {
	return p.device.RunFromAddress(p.AppAddress)
}

// EraseChip erases the part's application area: from AppAddress to the end
// of flash on families with a reserved bootloader area, or the entire plane
// on families without one (EEFC only supports full-plane erase).
func (p *Part) EraseChip() error {
	for _, c := range p.Controllers {
		r := c.Range()
		start := r.Start
		if start < p.AppAddress && p.AppAddress < r.End() {
			start = p.AppAddress
		}
		if err := c.Erase(start, r.End()); err != nil {
			return err
		}
	}
	return nil
}

// ErasePlane erases only the plane containing address, in full (the
// session façade's `erase(addr?)` with a non-zero address — spec.md
// §4.10). Unlike EraseChip it never holds back the bootloader reservation:
// a caller naming a plane address is assumed to know what they're doing.
func (p *Part) ErasePlane(address uint32) error {
	c, err := p.controllerFor(address)
	if err != nil {
		return err
	}
	r := c.Range()
	return c.Erase(r.Start, r.End())
}

// ProgramFlash writes data to address, one plane's controller per page
// chunk, per the AddressRange page-chunking contract.
func (p *Part) ProgramFlash(address uint32, data []byte) error {
	for _, chunk := range p.FlashRange.GetPageChunks(data, address) {
		if !chunk.Touched {
			continue
		}
		ctrl, err := p.controllerFor(chunk.Address)
		if err != nil {
			return err
		}
		if err := ctrl.Program(chunk.Address, chunk.Data); err != nil {
			return err
		}
	}
	return nil
}

// VerifyFlash compares data against the device starting at address,
// returning the first mismatch found across all planes touched, or nil.
func (p *Part) VerifyFlash(address uint32, data []byte) (*flash.Mismatch, error) {
	for _, chunk := range p.FlashRange.GetPageChunks(data, address) {
		if !chunk.Touched {
			continue
		}
		ctrl, err := p.controllerFor(chunk.Address)
		if err != nil {
			return nil, err
		}
		mismatch, err := ctrl.Verify(chunk.Address, chunk.Data)
		if err != nil {
			return nil, err
		}
		if mismatch != nil {
			return mismatch, nil
		}
	}
	return nil, nil
}

// ReadFlash reads length bytes starting at address, concatenating each
// touched plane's contribution in address order.
func (p *Part) ReadFlash(address uint32, length int) ([]byte, error) {
	var out []byte
	for _, chunk := range p.FlashRange.GetPageAddresses(address, length) {
		ctrl, err := p.controllerFor(chunk.Address)
		if err != nil {
			return nil, err
		}
		data, err := ctrl.Read(chunk.Address, chunk.Length)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

// SetFlashBoot sets GPNVM bit 1 (boot from flash) and verifies it stuck.
// Families without a BootController (Cortex-M0+) fail Unsupported.
func (p *Part) SetFlashBoot() error {
	if p.BootController == nil {
		return flash.Unsupported{Reason: "set-flash-boot is not supported on " + p.Name}
	}
	if err := p.BootController.SetGPNVM(1 << 1); err != nil {
		return err
	}
	v, err := p.BootController.ReadGPNVM()
	if err != nil {
		return err
	}
	if v&(1<<1) == 0 {
		return CannotSetFlashBoot{GPNVM: v}
	}
	return nil
}

// Reset bounces the device via its reset controller, if any.
func (p *Part) Reset() error {
	if p.ResetCtrl == nil {
		samlog.Warnf("no reset controller for %s", p.Name)
		return nil
	}
	return p.ResetCtrl.Reset(0)
}

// Info reports flash geometry and, on families with a BootController,
// GPNVM/unique-identifier/descriptor data.
func (p *Part) Info() (string, error) {
	info := fmt.Sprintf("Part: %s\nFlash: %s, %d plane(s)\n", p.Name, fmtRange(p.FlashRange), len(p.Controllers))
	if p.BootController == nil {
		return info, nil
	}

	gpnvm, err := p.BootController.ReadGPNVM()
	if err != nil {
		return "", err
	}
	uid, err := p.BootController.ReadUniqueIdentifier()
	if err != nil {
		return "", err
	}
	desc, err := p.BootController.ReadDescriptor()
	if err != nil {
		return "", err
	}
	info += fmt.Sprintf("GPNVM: 0x%X\nUnique identifier: % X\nDescriptor: %v\n", gpnvm, uid, desc)
	return info, nil
}

func fmtRange(r addr.AddressRange) string {
	return fmt.Sprintf("[0x%08X, len 0x%X)", r.Start, r.Length)
}
