package flash

import (
	"fmt"
	"time"

	"github.com/abcminiuser/sam-ba-loader/addr"
	"github.com/abcminiuser/sam-ba-loader/internal/samlog"
)

const (
	eefcFMROffset = 0x00
	eefcFCROffset = 0x04
	eefcFSROffset = 0x08
	eefcFRROffset = 0x0C

	eefcFCRKey = 0x5A000000

	eefcFSRReady   = 1 << 0 // FRDY
	eefcFSRCmdErr  = 1 << 1 // FCMDE
	eefcFSRLockE   = 1 << 2 // FLOCKE
	eefcFSRErr     = 1 << 3 // FLERR
	eefcFSRErrMask = eefcFSRCmdErr | eefcFSRLockE | eefcFSRErr

	eefcBusyTimeout = 2 * time.Second

	// eefcFMRInit programs a conservative flash-wait-state value; required on
	// SAM3 for reliable programming at host clock speed.
	eefcFMRInit = 0x6 << 8
)

// EEFC command codes (EEFC_FCR.FCMD).
const (
	eefcCmdGETD  = 0x00
	eefcCmdWP    = 0x01
	eefcCmdWPL   = 0x02
	eefcCmdEWP   = 0x03
	eefcCmdEWPL  = 0x04
	eefcCmdEA    = 0x05
	eefcCmdEPA   = 0x07
	eefcCmdSLB   = 0x08
	eefcCmdCLB   = 0x09
	eefcCmdGLB   = 0x0A
	eefcCmdSGPB  = 0x0B
	eefcCmdCGPB  = 0x0C
	eefcCmdGGPB  = 0x0D
	eefcCmdSTUI  = 0x0E
	eefcCmdSPUI  = 0x0F
	eefcCmdGCALB = 0x10
	eefcCmdES    = 0x11
	eefcCmdWUS   = 0x12
	eefcCmdSPUS  = 0x14
	eefcCmdSTUS  = 0x15
)

// CommandError is returned when EEFC_FSR reports a command or lock error
// after an EEFC_FCR command is issued.
type CommandError struct {
	FSRAddress uint32
	FSR        uint32
}

func (e CommandError) Error() string {
	return fmt.Sprintf("flash: EEFC command error FSR @ 0x%08X: 0x%08X", e.FSRAddress, e.FSR)
}

// FlashWriteError is returned when a page fails its post-write verify.
type FlashWriteError struct {
	Address uint32
	Length  int
}

func (e FlashWriteError) Error() string {
	return fmt.Sprintf("flash: write error at page %s", fmtRange(e.Address, e.Length))
}

// timeoutError is returned when FSR.FRDY fails to set within eefcBusyTimeout.
type timeoutError struct {
	FSR uint32
}

func (e timeoutError) Error() string {
	return fmt.Sprintf("flash: EEFC busy timeout, last FSR: 0x%08X", e.FSR)
}

// EEFC drives the Enhanced Embedded Flash Controller used on Cortex-M3/M4/M7
// SAM parts.
type EEFC struct {
	d                Device
	flashRange       addr.AddressRange
	regsBase         uint32
	dontUseReadBlock bool // SAM3 erratum: ReceiveFile ('R') returns all-zero reads
}

// NewEEFC constructs an EEFC bound to a flash plane of pages*pageSize bytes
// starting at flashBaseAddress, and programs FMR for reliable host-speed
// writes. dontUseReadBlock works around the SAM3 erratum where the 'R'
// command returns all-zero data; reads fall back to word-at-a-time instead.
func NewEEFC(d Device, flashBaseAddress, regsBaseAddress uint32, pages, pageSize int, dontUseReadBlock bool) (*EEFC, error) {
	e := &EEFC{
		d:                d,
		flashRange:       addr.New(flashBaseAddress, pages*pageSize, pageSize),
		regsBase:         regsBaseAddress,
		dontUseReadBlock: dontUseReadBlock,
	}
	if err := d.WriteWord(regsBaseAddress+eefcFMROffset, eefcFMRInit); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *EEFC) Range() addr.AddressRange { return e.flashRange }

func (e *EEFC) waitWhileBusy() error {
	deadline := time.Now().Add(eefcBusyTimeout)
	for {
		fsr, err := e.d.ReadWord(e.regsBase + eefcFSROffset)
		if err != nil {
			return err
		}
		if fsr&eefcFSRReady != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return timeoutError{FSR: fsr}
		}
	}
}

func (e *EEFC) command(cmd uint32, farg uint32, skipWait bool) error {
	if !skipWait {
		if err := e.waitWhileBusy(); err != nil {
			return err
		}
	}

	reg := eefcFCRKey | ((farg & 0xFFFF) << 8) | (cmd & 0xFF)
	samlog.Debugf("EEFC_FCR @ 0x%08X = 0x%08X", e.regsBase+eefcFCROffset, reg)
	if err := e.d.WriteWord(e.regsBase+eefcFCROffset, reg); err != nil {
		return err
	}

	fsr, err := e.d.ReadWord(e.regsBase + eefcFSROffset)
	if err != nil {
		return err
	}
	if fsr&eefcFSRErrMask != 0 {
		return CommandError{FSRAddress: e.regsBase + eefcFSROffset, FSR: fsr & eefcFSRErrMask}
	}
	return nil
}

func (e *EEFC) readBlock(address uint32, length int) ([]byte, error) {
	if e.dontUseReadBlock {
		return e.readByWord(address, length)
	}
	return e.d.ReadBlock(address, length)
}

func (e *EEFC) readByWord(address uint32, length int) ([]byte, error) {
	out := make([]byte, 0, length)
	for remaining := length; remaining > 0; {
		wordAddr := address - address%4
		word, err := e.d.ReadWord(wordAddr)
		if err != nil {
			return nil, err
		}
		start := address % 4
		n := uint32(4) - start
		if n > uint32(remaining) {
			n = uint32(remaining)
		}
		for i := uint32(0); i < n; i++ {
			out = append(out, byte(word>>((start+i)*8)))
		}
		address += n
		remaining -= int(n)
	}
	return out, nil
}

// ReadGPNVM reads the GPNVM bitfield via GGPB.
func (e *EEFC) ReadGPNVM() (uint32, error) {
	if err := e.command(eefcCmdGGPB, 0, false); err != nil {
		return 0, err
	}
	if err := e.waitWhileBusy(); err != nil {
		return 0, err
	}
	return e.d.ReadWord(e.regsBase + eefcFRROffset)
}

// SetGPNVM sets every bit set in bitsMask via SGPB, one command per bit.
func (e *EEFC) SetGPNVM(bitsMask uint32) error {
	for bit := uint32(0); bit < 32; bit++ {
		if bitsMask&(1<<bit) != 0 {
			if err := e.command(eefcCmdSGPB, bit, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClearGPNVM clears every bit set in bitsMask via CGPB, one command per bit.
func (e *EEFC) ClearGPNVM(bitsMask uint32) error {
	for bit := uint32(0); bit < 32; bit++ {
		if bitsMask&(1<<bit) != 0 {
			if err := e.command(eefcCmdCGPB, bit, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadDescriptor issues GETD and drains EEFC_FRR until it reads zero.
func (e *EEFC) ReadDescriptor() ([]uint32, error) {
	if err := e.command(eefcCmdGETD, 0, false); err != nil {
		return nil, err
	}
	if err := e.waitWhileBusy(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	var words []uint32
	for {
		w, err := e.d.ReadWord(e.regsBase + eefcFRROffset)
		if err != nil {
			return nil, err
		}
		if w == 0 {
			return words, nil
		}
		words = append(words, w)
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("flash: GETD: timeout")
		}
	}
}

// ReadUniqueIdentifier reads the 16-byte unique identifier area via the
// STUI/SPUI sequence. FRDY is not asserted while STUI is active, so no
// busy-wait runs between issuing STUI and the read.
func (e *EEFC) ReadUniqueIdentifier() ([]byte, error) {
	if err := e.command(eefcCmdSTUI, 0, false); err != nil {
		return nil, err
	}
	data, err := e.readBlock(e.flashRange.Start, 16)
	if err != nil {
		return nil, err
	}
	if err := e.command(eefcCmdSPUI, 0, true); err != nil {
		return nil, err
	}
	return data, nil
}

// Erase erases the entire flash plane (EA). Sector/page erase is not
// implemented; spec.md restricts this controller to full-plane erase.
func (e *EEFC) Erase(startAddress, endAddress uint32) error {
	if startAddress != e.flashRange.Start || endAddress != e.flashRange.End() {
		return Unsupported{Reason: "EEFC erase: only full-plane erase is supported"}
	}
	return e.command(eefcCmdEA, 0, false)
}

// Program writes data starting at address, page by page. Each page is first
// read back and compared; an identical page is skipped. Otherwise the page
// is scanned for any 0→1 bit transition (which flash cannot perform without
// an erase) to choose between WP and EWP, the write is aligned to either a
// full page (if an erase is needed) or a 32-bit word boundary, and the page
// latch is loaded low address to high before the command commits it.
func (e *EEFC) Program(address uint32, data []byte) error {
	if !e.flashRange.IsInRange(address, len(data)) {
		return addr.OutOfRange{Address: address, Length: len(data), Range: e.flashRange}
	}

	if err := e.waitWhileBusy(); err != nil {
		return err
	}

	for _, chunk := range e.flashRange.GetPageChunks(data, address) {
		if !chunk.Touched {
			continue
		}
		if err := e.programPage(chunk.Address, chunk.Data); err != nil {
			return err
		}
	}

	if mismatch, err := e.Verify(address, data); err != nil {
		return err
	} else if mismatch != nil {
		return FlashWriteError{Address: mismatch.Address, Length: len(data)}
	}
	return nil
}

func (e *EEFC) programPage(chunkAddress uint32, chunkData []byte) error {
	existing, err := e.readBlock(chunkAddress, len(chunkData))
	if err != nil {
		return err
	}
	if isEqual(existing, chunkData) {
		samlog.Debugf("flash: page at 0x%08X already matches, skipping write", chunkAddress)
		return nil
	}

	needErase := false
	for i := range existing {
		if existing[i]&chunkData[i] != chunkData[i] {
			needErase = true
			break
		}
	}

	alignBytes := 4
	if needErase {
		alignBytes = e.flashRange.PageSize
	}

	if rem := chunkAddress % uint32(alignBytes); rem != 0 {
		newAddress := chunkAddress - rem
		prefix, err := e.readBlock(newAddress, int(rem))
		if err != nil {
			return err
		}
		chunkData = append(prefix, chunkData...)
		chunkAddress = newAddress
	}
	if rem := len(chunkData) % alignBytes; rem != 0 {
		suffixLen := alignBytes - rem
		suffix, err := e.readBlock(chunkAddress+uint32(len(chunkData)), suffixLen)
		if err != nil {
			return err
		}
		chunkData = append(chunkData, suffix...)
	}

	if err := e.d.WriteBlock(chunkAddress, chunkData); err != nil {
		return err
	}

	cmd := uint32(eefcCmdWP)
	if needErase {
		cmd = eefcCmdEWP
	}
	pageNumber := (chunkAddress - e.flashRange.Start) / uint32(e.flashRange.PageSize)
	if err := e.command(cmd, pageNumber, false); err != nil {
		return err
	}
	return e.waitWhileBusy()
}

// Verify reads back data's range and compares word by word.
func (e *EEFC) Verify(address uint32, data []byte) (*Mismatch, error) {
	actual, err := e.readBlock(address, len(data))
	if err != nil {
		return nil, err
	}
	return verifyByWord(actual, data, address), nil
}

// Read reads length bytes from address, honoring the SAM3 read-block
// erratum workaround configured at construction.
func (e *EEFC) Read(address uint32, length int) ([]byte, error) {
	if !e.flashRange.IsInRange(address, 0) {
		return nil, addr.OutOfRange{Address: address, Range: e.flashRange}
	}
	if length == 0 {
		remaining, err := e.flashRange.RemainingLength(address)
		if err != nil {
			return nil, err
		}
		length = remaining
	}
	if !e.flashRange.IsInRange(address, length) {
		return nil, addr.OutOfRange{Address: address, Length: length, Range: e.flashRange}
	}
	return e.readBlock(address, length)
}
