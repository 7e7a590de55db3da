package flash

import (
	"github.com/abcminiuser/sam-ba-loader/addr"
	"github.com/abcminiuser/sam-ba-loader/internal/samlog"
)

const (
	nvmCtrlAOffset   = 0x00
	nvmCtrlBOffset   = 0x04
	nvmParamOffset   = 0x08
	nvmIntFlagOffset = 0x14
	nvmAddressOffset = 0x1C

	nvmIntFlagReady = 1 << 0
	nvmIntFlagError = 1 << 1

	nvmCommandKey = 0xA5

	nvmCmdER  = 0x02 // erase row
	nvmCmdWP  = 0x04 // write page
	nvmCmdPBC = 0x44 // page buffer clear

	nvmCtrlBManualWrite = 1 << 7

	nvmPagesPerRow = 4
)

// NVMCTRL drives the Cortex-M0+ Non-Volatile Memory Controller.
type NVMCTRL struct {
	d             Device
	flashRange    addr.AddressRange
	regsBase      uint32
	pagesPerFetch int
}

// NewNVMCTRL constructs an NVMCTRL bound to a flash plane. Page size and page
// count are not known until PARAM is first read (by Range or any operation).
func NewNVMCTRL(d Device, flashBaseAddress, regsBaseAddress uint32) *NVMCTRL {
	return &NVMCTRL{d: d, flashRange: addr.New(flashBaseAddress, 0, 0), regsBase: regsBaseAddress}
}

func (n *NVMCTRL) readParams() error {
	param, err := n.d.ReadWord(n.regsBase + nvmParamOffset)
	if err != nil {
		return err
	}
	pageSize := int(8 << ((param >> 16) & 0x7))
	pages := int(param & 0xFFFF)
	n.flashRange = addr.New(n.flashRange.Start, pages*pageSize, pageSize)
	return nil
}

// Range returns the flash plane's AddressRange, discovered from PARAM. If
// PARAM has not been read yet, Range reads it first; if that read fails the
// returned range is empty.
func (n *NVMCTRL) Range() addr.AddressRange {
	if n.flashRange.PageSize == 0 {
		_ = n.readParams()
	}
	return n.flashRange
}

func (n *NVMCTRL) waitWhileBusy() error {
	for {
		flags, err := n.d.ReadHalfWord(n.regsBase + nvmIntFlagOffset)
		if err != nil {
			return err
		}
		if flags&nvmIntFlagReady != 0 {
			return nil
		}
	}
}

func (n *NVMCTRL) command(cmd uint16) error {
	if err := n.waitWhileBusy(); err != nil {
		return err
	}
	reg := uint16(nvmCommandKey)<<8 | cmd
	samlog.Debugf("NVMCTRL.CTRLA @ 0x%08X = 0x%04X", n.regsBase+nvmCtrlAOffset, reg)
	if err := n.d.WriteHalfWord(n.regsBase+nvmCtrlAOffset, reg); err != nil {
		return err
	}
	return n.waitWhileBusy()
}

// Erase erases every row intersecting [startAddress, endAddress), rounding
// down to row (4 pages) alignment.
func (n *NVMCTRL) Erase(startAddress, endAddress uint32) error {
	if err := n.readParams(); err != nil {
		return err
	}
	rowSize := uint32(nvmPagesPerRow * n.flashRange.PageSize)

	rowStart := startAddress - (startAddress-n.flashRange.Start)%rowSize
	for row := rowStart; row < endAddress; row += rowSize {
		rowByteOffset := row - n.flashRange.Start
		if err := n.d.WriteWord(n.regsBase+nvmAddressOffset, rowByteOffset>>1); err != nil {
			return err
		}
		if err := n.command(nvmCmdER); err != nil {
			return err
		}
	}
	return nil
}

// Program writes data starting at address, page by page: clear the page
// latch buffer (PBC, once per page), write the page's bytes into the latch
// at their final addresses with one block write, then commit with WP.
func (n *NVMCTRL) Program(address uint32, data []byte) error {
	if err := n.readParams(); err != nil {
		return err
	}

	if err := n.d.WriteWord(n.regsBase+nvmCtrlBOffset, nvmCtrlBManualWrite); err != nil {
		return err
	}

	for _, chunk := range n.flashRange.GetPageChunks(data, address) {
		if !chunk.Touched {
			continue
		}
		if err := n.command(nvmCmdPBC); err != nil {
			return err
		}
		if err := n.d.WriteBlock(chunk.Address, chunk.Data); err != nil {
			return err
		}
		if err := n.command(nvmCmdWP); err != nil {
			return err
		}
	}
	return nil
}

// Verify reads back every page chunk data occupies and compares word by
// word, returning the first mismatch found (or nil on a full match).
func (n *NVMCTRL) Verify(address uint32, data []byte) (*Mismatch, error) {
	if err := n.readParams(); err != nil {
		return nil, err
	}
	for _, chunk := range n.flashRange.GetPageChunks(data, address) {
		if !chunk.Touched {
			continue
		}
		actual, err := n.d.ReadBlock(chunk.Address, chunk.Length)
		if err != nil {
			return nil, err
		}
		if mismatch := verifyByWord(actual, chunk.Data, chunk.Address); mismatch != nil {
			return mismatch, nil
		}
	}
	return nil, nil
}

// Read reads length bytes from address directly; NVM memory is directly
// addressable so the controller is not involved in reads.
func (n *NVMCTRL) Read(address uint32, length int) ([]byte, error) {
	return n.d.ReadBlock(address, length)
}
