package chipid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves fixed word values for ReadWord, keyed by address.
type fakeReader map[uint32]uint32

func (f fakeReader) ReadWord(address uint32) (uint32, error) {
	return f[address], nil
}

func TestReadCPUID(t *testing.T) {
	r := fakeReader{0xE000ED00: 0x410FC240}

	id, valid, err := ReadCPUID(r, 0xE000ED00)
	require.NoError(t, err)
	require.True(t, valid)

	assert.Equal(t, uint32(0x41), id.Implementer)
	assert.Equal(t, uint32(0x0), id.Variant)
	assert.Equal(t, uint32(0xF), id.Architecture)
	assert.Equal(t, uint32(PartCortexM34), id.Part)
	assert.Equal(t, uint32(0x0), id.Revision)
}

func TestReadCPUIDAbsent(t *testing.T) {
	r := fakeReader{}
	_, valid, err := ReadCPUID(r, 0xE000ED00)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestReadDSU(t *testing.T) {
	r := fakeReader{0x41002018: 0x10010000}

	id, valid, err := ReadDSU(r, 0x41002000)
	require.NoError(t, err)
	require.True(t, valid)

	assert.Equal(t, uint32(1), id.Processor)
	assert.Equal(t, uint32(0), id.Family)
	assert.Equal(t, uint32(1), id.Series)
	assert.Equal(t, uint32(0), id.Die)
	assert.Equal(t, uint32(0), id.Revision)
	assert.Equal(t, uint32(0x00), id.Variant)
}

func TestReadCHIPIDATSAM3X8E(t *testing.T) {
	r := fakeReader{
		0x400E0740: 0x285E0A60,
		0x400E0744: 0x00000000,
	}

	id, valid, err := ReadCHIPID(r, 0x400E0740)
	require.NoError(t, err)
	require.True(t, valid)

	assert.Equal(t, uint32(0x285E0A60), id.MaskedChipID())
}

func TestReadCHIPIDAbsentFallsThroughCandidates(t *testing.T) {
	r := fakeReader{0x400E0740: 0, 0x400E0940: 0x12345678}

	_, valid, err := ReadCHIPID(r, 0x400E0740)
	require.NoError(t, err)
	assert.False(t, valid)

	id, valid, err := ReadCHIPID(r, 0x400E0940)
	require.NoError(t, err)
	require.True(t, valid)
	assert.Equal(t, uint32(0x12345678), id.Raw)
}
