// Package fileformat reads the two file formats the CLI accepts for
// program/verify payloads: raw binary (identity passthrough) and Intel HEX
// (via gohex), both delivering a single contiguous byte range.
package fileformat

import "fmt"

// FileFormatError is returned when a file cannot be read in its declared
// format, or when a format has no range to deliver.
type FileFormatError struct {
	Filename string
	Reason   string
}

func (e FileFormatError) Error() string {
	return fmt.Sprintf("fileformat: %s: %s", e.Filename, e.Reason)
}

// Format loads a file into a contiguous byte range, optionally anchored at
// a base address (meaningful only for formats that carry their own
// addressing, i.e. Intel HEX).
type Format interface {
	// Load returns the file's data and, if the format carries an absolute
	// address (Intel HEX), that address; baseAddress is 0 for formats with
	// no addressing of their own (raw binary).
	Load(path string) (data []byte, baseAddress uint32, err error)
}
