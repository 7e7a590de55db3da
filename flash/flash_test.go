package flash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice is a tiny byte-addressable memory model plus a register file,
// enough to drive both controllers through their full busy-wait/command
// sequences without a real device attached.
type fakeDevice struct {
	mem            map[uint32]byte
	regsHW         map[uint32]uint16
	regsW          map[uint32]uint32
	afterCmd       func(regAddr uint32, value uint32) // lets tests react to word-register writes (e.g. FCR); half-word writes do not call it
	readyFlag      bool
	writeBlockCall int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{mem: map[uint32]byte{}, regsHW: map[uint32]uint16{}, regsW: map[uint32]uint32{}, readyFlag: true}
}

func (f *fakeDevice) WriteWord(address, word uint32) error {
	f.regsW[address] = word
	if f.afterCmd != nil {
		f.afterCmd(address, word)
	}
	return nil
}

func (f *fakeDevice) ReadWord(address uint32) (uint32, error) {
	if w, ok := f.regsW[address]; ok {
		return w, nil
	}
	// Not a register: assemble a little-endian word from memory.
	var w uint32
	for i := uint32(0); i < 4; i++ {
		w |= uint32(f.mem[address+i]) << (8 * i)
	}
	return w, nil
}

func (f *fakeDevice) WriteHalfWord(address uint32, halfWord uint16) error {
	f.regsHW[address] = halfWord
	return nil
}

func (f *fakeDevice) ReadHalfWord(address uint32) (uint16, error) {
	return f.regsHW[address], nil
}

func (f *fakeDevice) ReadBlock(address uint32, length int) ([]byte, error) {
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = f.mem[address+uint32(i)]
	}
	return out, nil
}

func (f *fakeDevice) WriteBlock(address uint32, data []byte) error {
	f.writeBlockCall++
	for i, b := range data {
		f.mem[address+uint32(i)] = b
	}
	return nil
}

func TestNVMCTRLProgramAndVerify(t *testing.T) {
	d := newFakeDevice()
	d.regsHW[0x41000014] = nvmIntFlagReady // always ready

	n := NewNVMCTRL(d, 0x00000000, 0x41000000)
	d.regsW[0x41000008] = (6 << 16) | 256 // page_size=8<<6=512, pages=256

	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i)
	}

	require.NoError(t, n.Program(0, data))

	mismatch, err := n.Verify(0, data)
	require.NoError(t, err)
	assert.Nil(t, mismatch)
}

func TestNVMCTRLVerifyDetectsMismatch(t *testing.T) {
	d := newFakeDevice()
	d.regsHW[0x41000014] = nvmIntFlagReady
	d.regsW[0x41000008] = (6 << 16) | 256

	n := NewNVMCTRL(d, 0, 0x41000000)
	data := make([]byte, 8)
	require.NoError(t, n.Program(0, data))

	d.mem[4] = 0xFF // corrupt one byte after programming

	mismatch, err := n.Verify(0, data)
	require.NoError(t, err)
	require.NotNil(t, mismatch)
	assert.Equal(t, uint32(4), mismatch.Address)
}

func TestEEFCProgramSkipsIdenticalPage(t *testing.T) {
	d := newFakeDevice()
	d.regsW[0x400E0A08] = eefcFSRReady // FSR always ready

	pageSize := 256
	for i := 0; i < pageSize; i++ {
		d.mem[uint32(i)] = 0xFF // erased flash reads as all-ones
	}

	e, err := NewEEFC(d, 0, 0x400E0A00, 1, pageSize, false)
	require.NoError(t, err)

	data := make([]byte, pageSize)
	for i := range data {
		data[i] = 0xFF
	}

	require.NoError(t, e.Program(0, data))
	assert.Equal(t, 0, d.writeBlockCall) // identical page: no latch write
	mismatch, err := e.Verify(0, data)
	require.NoError(t, err)
	assert.Nil(t, mismatch)
}

func TestEEFCCommandErrorSurfacesFSRBits(t *testing.T) {
	d := newFakeDevice()
	d.regsW[0x400E0A08] = eefcFSRReady | eefcFSRCmdErr

	e, err := NewEEFC(d, 0, 0x400E0A00, 1, 256, false)
	require.NoError(t, err)

	err = e.Erase(e.flashRange.Start, e.flashRange.End())
	require.Error(t, err)
	var cmdErr CommandError
	assert.ErrorAs(t, err, &cmdErr)
}

// S5: NVMCTRL program of 260 bytes at an aligned page boundary with
// PARAM reporting page_size=64, pages=1024 chunks into 5 pages (4 full
// pages plus a 4-byte tail).
func TestNVMCTRLProgram260BytesChunksIntoFivePages(t *testing.T) {
	d := newFakeDevice()
	d.regsHW[0x41000014] = nvmIntFlagReady
	d.regsW[0x41000008] = (3 << 16) | 1024 // page_size=8<<3=64, pages=1024

	n := NewNVMCTRL(d, 0, 0x41000000)

	data := make([]byte, 260)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, n.Program(0, data))

	mismatch, err := n.Verify(0, data)
	require.NoError(t, err)
	assert.Nil(t, mismatch)
	assert.Equal(t, 5, d.writeBlockCall) // 4 full pages + 1 tail page
}

// S6: EEFC program of 260 bytes at offset 0x00408020 on a SAM4SD16C-shaped
// plane (page_size=512, plane at 0x00400000) intersects a single page,
// needs an erase (some target bit goes 0→1), and commits via EWP with
// farg = (0x00408000 - 0x00400000)/512 = 64.
func TestEEFCProgramAcrossPageOffsetTriggersEWPAtExpectedPage(t *testing.T) {
	d := newFakeDevice()
	d.regsW[0x400E0C08] = eefcFSRReady

	e, err := NewEEFC(d, 0x00400000, 0x400E0C00, 1024, 512, false)
	require.NoError(t, err)

	data := make([]byte, 260)
	for i := range data {
		data[i] = 0xFF // existing flash bytes default to 0x00, so every one-bit needs an erase
	}

	require.NoError(t, e.Program(0x00408020, data))

	fcr := d.regsW[0x400E0C04]
	assert.Equal(t, uint32(eefcCmdEWP), fcr&0xFF)
	assert.Equal(t, uint32(64), (fcr>>8)&0xFFFF)

	mismatch, err := e.Verify(0x00408020, data)
	require.NoError(t, err)
	assert.Nil(t, mismatch)
}

// Invariant 5: program then read back returns the same bytes.
func TestEEFCProgramThenReadRoundTrips(t *testing.T) {
	d := newFakeDevice()
	d.regsW[0x400E0A08] = eefcFSRReady

	e, err := NewEEFC(d, 0, 0x400E0A00, 4, 256, false)
	require.NoError(t, err)

	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i * 7)
	}
	require.NoError(t, e.Program(0, data))

	readBack, err := e.Read(0, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, readBack)
}

// Invariant 6: programming the same data twice takes the "already matches"
// fast path on every page the second time, issuing no further WriteBlock
// calls.
func TestEEFCProgramIsIdempotent(t *testing.T) {
	d := newFakeDevice()
	d.regsW[0x400E0A08] = eefcFSRReady

	e, err := NewEEFC(d, 0, 0x400E0A00, 4, 256, false)
	require.NoError(t, err)

	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i * 3)
	}
	require.NoError(t, e.Program(0, data))
	firstCalls := d.writeBlockCall

	require.NoError(t, e.Program(0, data))
	assert.Equal(t, firstCalls, d.writeBlockCall)
}

func TestEEFCReadByWordFallback(t *testing.T) {
	d := newFakeDevice()
	d.regsW[0x400E0A08] = eefcFSRReady
	d.mem[0] = 0x11
	d.mem[1] = 0x22
	d.mem[2] = 0x33
	d.mem[3] = 0x44
	d.mem[4] = 0x55

	e, err := NewEEFC(d, 0, 0x400E0A00, 1, 256, true)
	require.NoError(t, err)

	out, err := e.readByWord(0, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44, 0x55}, out)
}
