// Package flash implements the two on-chip flash controller families SAM
// parts expose: NVMCTRL (Cortex-M0+) and EEFC (Cortex-M3/M4/M7). Both share
// the Controller interface so a Part can drive either uniformly.
package flash

import (
	"fmt"

	"github.com/abcminiuser/sam-ba-loader/addr"
)

// Device is satisfied by samba.SAMBA; both controllers only need the
// primitive word/half-word/block I/O operations.
type Device interface {
	WriteWord(address, word uint32) error
	ReadWord(address uint32) (uint32, error)
	WriteHalfWord(address uint32, halfWord uint16) error
	ReadHalfWord(address uint32) (uint16, error)
	ReadBlock(address uint32, length int) ([]byte, error)
	WriteBlock(address uint32, data []byte) error
}

// Mismatch describes the first word at which a verify comparison failed.
type Mismatch struct {
	Address uint32
	Actual  uint32
	Want    uint32
}

// Controller is the common surface both flash families implement: erase,
// program, verify, and raw read, all addressed in absolute device address
// space within the controller's own AddressRange.
type Controller interface {
	Range() addr.AddressRange
	Erase(startAddress, endAddress uint32) error
	Program(address uint32, data []byte) error
	Verify(address uint32, data []byte) (*Mismatch, error)
	Read(address uint32, length int) ([]byte, error)
}

// Unsupported is returned for an operation a controller does not implement
// (e.g. sector/page erase on a controller that only supports full-plane
// erase).
type Unsupported struct {
	Reason string
}

func (e Unsupported) Error() string { return "flash: unsupported: " + e.Reason }

// isEqual reports whether a and b have equal length and content.
func isEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func wordsFromBytes(b []byte) []uint32 {
	n := (len(b) + 3) / 4
	words := make([]uint32, n)
	for i := 0; i < n; i++ {
		var w uint32
		for j := 0; j < 4; j++ {
			idx := i*4 + j
			if idx < len(b) {
				w |= uint32(b[idx]) << (8 * j)
			}
		}
		words[i] = w
	}
	return words
}

func verifyByWord(actual, want []byte, baseAddress uint32) *Mismatch {
	aw, ww := wordsFromBytes(actual), wordsFromBytes(want)
	for i := range ww {
		if aw[i] != ww[i] {
			return &Mismatch{Address: baseAddress + uint32(i*4), Actual: aw[i], Want: ww[i]}
		}
	}
	return nil
}

func fmtRange(start uint32, length int) string {
	return fmt.Sprintf("[0x%08X, len %d)", start, length)
}
