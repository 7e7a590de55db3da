// Package rstc drives a SAM device's Reset Controller (RSTC): the keyed
// control/status/mode register triplet used to request a hard reset and to
// read back reset-cause status.
package rstc

import (
	"github.com/abcminiuser/sam-ba-loader/internal/samlog"
)

const (
	crOffset = 0x00
	srOffset = 0x04
	mrOffset = 0x08

	resetKey = 0xA5000000

	// DefaultResetBits requests a processor reset, a peripheral reset, and
	// (on parts that implement it) an external reset pin assertion.
	DefaultResetBits = 0xD
)

// Device is satisfied by samba.SAMBA.
type Device interface {
	WriteWord(address, word uint32) error
	ReadWord(address uint32) (uint32, error)
}

// RSTC addresses a Reset Controller at a fixed base address on a bound
// device.
type RSTC struct {
	d           Device
	baseAddress uint32
}

// New constructs an RSTC bound to baseAddress.
func New(d Device, baseAddress uint32) *RSTC {
	return &RSTC{d: d, baseAddress: baseAddress}
}

// Reset writes reg (keyed with resetKey) to RSTC_CR, requesting a reset.
// Bits default to DefaultResetBits when reg is 0.
func (r *RSTC) Reset(reg uint32) error {
	if reg == 0 {
		reg = DefaultResetBits
	}
	reg |= resetKey
	samlog.Debugf("RSTC_CR @ 0x%08X = 0x%08X", r.baseAddress+crOffset, reg)
	return r.d.WriteWord(r.baseAddress+crOffset, reg)
}

// Status reads RSTC_SR.
func (r *RSTC) Status() (uint32, error) {
	v, err := r.d.ReadWord(r.baseAddress + srOffset)
	if err != nil {
		return 0, err
	}
	samlog.Debugf("RSTC_SR @ 0x%08X: 0x%08X", r.baseAddress+srOffset, v)
	return v, nil
}

// SetMode writes RSTC_MR (keyed with resetKey).
func (r *RSTC) SetMode(reg uint32) error {
	reg |= resetKey
	samlog.Debugf("RSTC_MR @ 0x%08X = 0x%08X", r.baseAddress+mrOffset, reg)
	return r.d.WriteWord(r.baseAddress+mrOffset, reg)
}

// Mode reads RSTC_MR.
func (r *RSTC) Mode() (uint32, error) {
	v, err := r.d.ReadWord(r.baseAddress + mrOffset)
	if err != nil {
		return 0, err
	}
	samlog.Debugf("RSTC_MR @ 0x%08X: 0x%08X", r.baseAddress+mrOffset, v)
	return v, nil
}
