package fileformat

import "os"

// BinFormat reads a raw binary file verbatim: identity passthrough, no
// addressing of its own.
type BinFormat struct{}

func (BinFormat) Load(path string) ([]byte, uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, FileFormatError{Filename: path, Reason: err.Error()}
	}
	return data, 0, nil
}
