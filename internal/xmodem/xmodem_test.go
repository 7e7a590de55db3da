package xmodem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLink is a ByteLink double: Read drains a queue of canned responses,
// Write appends to an outgoing log.
type fakeLink struct {
	reads   [][]byte
	written [][]byte
}

func (f *fakeLink) Read(length int) ([]byte, error) {
	chunk := f.reads[0]
	f.reads = f.reads[1:]
	if len(chunk) != length {
		panic("fakeLink: canned read length mismatch")
	}
	return chunk, nil
}

func (f *fakeLink) Write(data []byte) error {
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func TestWritePadsFinalBlockTo128(t *testing.T) {
	link := &fakeLink{reads: [][]byte{{crcMode}, {ack}, {ack}}}
	f := Wrap(link)

	require.NoError(t, f.Write([]byte{0x01, 0x02, 0x03}))

	require.Len(t, link.written, 2)
	block := link.written[0]
	require.Len(t, block, 3+blockSize+2)
	assert.Equal(t, byte(soh), block[0])
	assert.Equal(t, byte(1), block[1])
	assert.Equal(t, byte(0xFF-1), block[2])
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, block[3:6])
	for _, b := range block[6 : 3+blockSize] {
		assert.Equal(t, byte(0xFF), b)
	}
	assert.Equal(t, []byte{eot}, link.written[1])
}

func TestWriteRetriesOnNak(t *testing.T) {
	data := make([]byte, blockSize)
	link := &fakeLink{reads: [][]byte{{crcMode}, {nak}, {ack}, {ack}}}
	f := Wrap(link)

	require.NoError(t, f.Write(data))
	assert.Len(t, link.written, 3) // two attempts at the block, then EOT
}

func TestWriteCanceled(t *testing.T) {
	link := &fakeLink{reads: [][]byte{{can}}}
	f := Wrap(link)
	assert.ErrorIs(t, f.Write([]byte{0x01}), ErrCanceled)
}

func TestReadAssemblesBlockThenEOT(t *testing.T) {
	body := make([]byte, blockSize)
	body[0] = 0xAB
	crc := crc16(body)
	block := append([]byte{1, 0xFF - 1}, body...)
	block = append(block, byte(crc>>8), byte(crc))

	link := &fakeLink{reads: [][]byte{
		{soh},
		block, // num, inv, body, crc — the rest of the block after the consumed SOH byte
		{eot},
	}}
	f := Wrap(link)

	data, err := f.Read(blockSize)
	require.NoError(t, err)
	assert.Equal(t, body, data)
	assert.Empty(t, link.reads)                                     // the EOT was consumed
	assert.Equal(t, []byte{ack}, link.written[len(link.written)-1]) // and acknowledged
}

func TestPadToFillsShortBufferWithFF(t *testing.T) {
	out := padTo([]byte{1, 2, 3, 4, 5, 6, 7}, 8)
	assert.Len(t, out, 8)
	assert.Equal(t, byte(0xFF), out[7])
}
