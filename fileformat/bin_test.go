package fileformat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinFormatLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.bin")
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	require.NoError(t, os.WriteFile(path, want, 0o644))

	data, base, err := BinFormat{}.Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, data)
	assert.Equal(t, uint32(0), base)
}

func TestBinFormatMissingFile(t *testing.T) {
	_, _, err := BinFormat{}.Load(filepath.Join(t.TempDir(), "missing.bin"))
	var ffErr FileFormatError
	assert.ErrorAs(t, err, &ffErr)
}
