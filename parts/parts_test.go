package parts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abcminiuser/sam-ba-loader/chipid"
)

// fakeDevice is a minimal Device good enough to construct every family
// (the EEFC-based constructors issue a setup write, EEFC's FMR init).
type fakeDevice struct {
	mem    map[uint32]byte
	regsW  map[uint32]uint32
	regsHW map[uint32]uint16
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{mem: map[uint32]byte{}, regsW: map[uint32]uint32{}, regsHW: map[uint32]uint16{}}
}

func (f *fakeDevice) RunFromAddress(address uint32) error { return nil }
func (f *fakeDevice) WriteWord(address, word uint32) error {
	f.regsW[address] = word
	return nil
}
func (f *fakeDevice) ReadWord(address uint32) (uint32, error) { return f.regsW[address], nil }
func (f *fakeDevice) WriteHalfWord(address uint32, hw uint16) error {
	f.regsHW[address] = hw
	return nil
}
func (f *fakeDevice) ReadHalfWord(address uint32) (uint16, error) { return f.regsHW[address], nil }
func (f *fakeDevice) ReadBlock(address uint32, length int) ([]byte, error) {
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = f.mem[address+uint32(i)]
	}
	return out, nil
}
func (f *fakeDevice) WriteBlock(address uint32, data []byte) error {
	for i, b := range data {
		f.mem[address+uint32(i)] = b
	}
	return nil
}

func TestIdentifyATSAM3X8E(t *testing.T) {
	d := newFakeDevice()
	d.regsW[0x400E0A08] = 1 // FSR ready on both planes
	d.regsW[0x400E0C08] = 1

	ids := IdentifierSet{CHIPID: &chipid.CHIPID{Raw: 0x285E0A60}}

	p, err := Identify(d, ids)
	require.NoError(t, err)
	assert.Equal(t, "ATSAM3X8E", p.Name)
	assert.False(t, p.Untested)
	assert.Len(t, p.Controllers, 2)
}

func TestIdentifyUnknownPart(t *testing.T) {
	d := newFakeDevice()
	_, err := Identify(d, IdentifierSet{})
	assert.ErrorAs(t, err, &UnknownPart{})
}

func TestIdentifyAmbiguous(t *testing.T) {
	// Two descriptors whose predicates both accept everything would be an
	// authoring bug; verify the ambiguity path directly against a scratch
	// registry instead of mutating the package-level one.
	saved := registry
	defer func() { registry = saved }()

	registry = []Descriptor{
		{Name: "A", Identify: func(IdentifierSet) bool { return true }, New: func(Device) (*Part, error) { return &Part{}, nil }},
		{Name: "B", Identify: func(IdentifierSet) bool { return true }, New: func(Device) (*Part, error) { return &Part{}, nil }},
	}

	_, err := Identify(newFakeDevice(), IdentifierSet{})
	var ambiguous AmbiguousPart
	require.ErrorAs(t, err, &ambiguous)
	assert.ElementsMatch(t, []string{"A", "B"}, ambiguous.Candidates)
}

func TestFindByName(t *testing.T) {
	found := FindByName("ATSAM4SD16C")
	require.Len(t, found, 1)
	assert.Equal(t, "ATSAM4SD16C", found[0].Name)

	assert.Empty(t, FindByName("NoSuchPart"))
}

func TestCortexM0PlusEraseChipStartsAfterBootloader(t *testing.T) {
	d := newFakeDevice()
	d.regsHW[0x41004014] = 1 // NVMCTRL INTFLAG ready
	d.regsW[0x41004008] = (6 << 16) | 256

	p := NewCortexM0Plus(d, "TESTPART", false, 256*1024)
	require.NoError(t, p.EraseChip())
}

func TestErasePlaneTargetsOnlyItsOwnController(t *testing.T) {
	d := newFakeDevice()
	d.regsW[0x400E0A08] = 1
	d.regsW[0x400E0C08] = 1

	p, err := NewSAM3X(d, "ATSAM3X8E", false, 512, 2)
	require.NoError(t, err)

	secondPlane := p.FlashRange.Start + uint32(256*1024)
	require.NoError(t, p.ErasePlane(secondPlane))
	assert.Equal(t, uint32(0x5A000005), d.regsW[0x400E0C04]) // EA on plane 1's FCR
	assert.NotContains(t, d.regsW, uint32(0x400E0A04))       // plane 0's FCR untouched
}

func TestProgramFlashDispatchesByPlane(t *testing.T) {
	d := newFakeDevice()
	d.regsW[0x400E0A08] = 1
	d.regsW[0x400E0C08] = 1

	p, err := NewSAM3X(d, "ATSAM3X8E", false, 512, 2)
	require.NoError(t, err)

	data := make([]byte, 4)
	require.NoError(t, p.ProgramFlash(p.FlashRange.Start, data))
}
