package samba

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a Transport double backed by an outgoing byte log and a
// queue of canned incoming reads.
type fakeTransport struct {
	t       *testing.T
	written [][]byte
	reads   [][]byte
}

func (f *fakeTransport) Write(data []byte) error {
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Read(length int) ([]byte, error) {
	require.NotEmpty(f.t, f.reads, "fakeTransport: no canned read queued")
	chunk := f.reads[0]
	f.reads = f.reads[1:]
	require.Len(f.t, chunk, length, "fakeTransport: canned read length mismatch")
	return chunk, nil
}

func newSession(t *testing.T, reads ...[]byte) (*SAMBA, *fakeTransport) {
	ft := &fakeTransport{t: t, reads: append([][]byte{{0, 0}}, reads...)}
	s, err := Open(ft, true)
	require.NoError(t, err)
	ft.written = nil
	return s, ft
}

// S4: write_word(0x20000000, 0xDEADBEEF) emits "W20000000,deadbeef#".
func TestSerializeWriteWord(t *testing.T) {
	s, ft := newSession(t)
	require.NoError(t, s.WriteWord(0x20000000, 0xDEADBEEF))
	require.Len(t, ft.written, 1)
	assert.Equal(t, "W20000000,deadbeef#", string(ft.written[0]))
}

// S4: read_word(0x400E0A08) emits "w400e0a08,#", then reading bytes
// 11 22 33 44 returns 0x44332211 (little-endian).
func TestSerializeAndDecodeReadWord(t *testing.T) {
	s, ft := newSession(t, []byte{0x11, 0x22, 0x33, 0x44})
	word, err := s.ReadWord(0x400E0A08)
	require.NoError(t, err)
	require.Len(t, ft.written, 1)
	assert.Equal(t, "w400e0a08,#", string(ft.written[0]))
	assert.Equal(t, uint32(0x44332211), word)
}

// Invariant 4: two arguments always produce exactly two comma-separated
// hex groups with no trailing punctuation.
func TestSerializeTwoArgsNoTrailingComma(t *testing.T) {
	s := &SAMBA{}
	assert.Equal(t, "W00000001,00000002#", s.serialize(cmdWriteWord, 0x1, 0x2))
}

func TestSerializeZeroArgs(t *testing.T) {
	s := &SAMBA{}
	assert.Equal(t, "N#", s.serialize(cmdSetNormalMode))
}

func TestSerializeOneArgTrailingComma(t *testing.T) {
	s := &SAMBA{}
	assert.Equal(t, "G00000100,#", s.serialize(cmdGo, 0x100))
}

func TestGetVersionStripsTerminator(t *testing.T) {
	// GetVersion reads the reply one byte at a time.
	var reads [][]byte
	for _, b := range []byte("v2.0\n\r") {
		reads = append(reads, []byte{b})
	}
	s, ft := newSession(t, reads...)
	version, err := s.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "v2.0", version)
	assert.Equal(t, "V#", string(ft.written[0]))
}
