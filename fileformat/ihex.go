package fileformat

import (
	"os"

	"github.com/marcinbor85/gohex"
)

// IHexFormat reads an Intel HEX file and delivers the contiguous byte range
// between its lowest and highest addressed byte, zero-filling any gap
// between data segments.
type IHexFormat struct{}

func (IHexFormat) Load(path string) ([]byte, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, FileFormatError{Filename: path, Reason: err.Error()}
	}
	defer f.Close()

	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(f); err != nil {
		return nil, 0, FileFormatError{Filename: path, Reason: err.Error()}
	}

	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return nil, 0, FileFormatError{Filename: path, Reason: "no data segments"}
	}

	minAddr := segments[0].Address
	maxAddr := minAddr
	for _, seg := range segments {
		if seg.Address < minAddr {
			minAddr = seg.Address
		}
		if end := seg.Address + uint32(len(seg.Data)); end > maxAddr {
			maxAddr = end
		}
	}

	data := make([]byte, maxAddr-minAddr)
	for _, seg := range segments {
		copy(data[seg.Address-minAddr:], seg.Data)
	}
	return data, minAddr, nil
}
