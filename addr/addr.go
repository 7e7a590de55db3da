// Package addr implements the page-aligned address-range algebra shared by
// every flash controller: bounds checking and splitting a byte buffer (or a
// bare address/length pair) into page-sized, page-aligned chunks. Flash
// controllers never compute page boundaries themselves; they call into an
// AddressRange instead.
package addr

import "fmt"

// OutOfRange is returned when an address or address/length pair falls
// outside an AddressRange's bounds.
type OutOfRange struct {
	Address uint32
	Length  int
	Range   AddressRange
}

func (e OutOfRange) Error() string {
	return fmt.Sprintf("addr: [0x%08X, len %d) is outside range [0x%08X, len %d)",
		e.Address, e.Length, e.Range.Start, e.Range.Length)
}

// AddressRange describes a contiguous, optionally page-structured region of
// device address space: a flash plane, a RAM window, or similar.
type AddressRange struct {
	Start    uint32
	Length   int
	PageSize int // 0 means "not page-structured"; PagesCount and the page-chunking operations are undefined.
}

// New constructs an AddressRange. pageSize may be 0 for ranges with no page
// structure (e.g. RAM).
func New(start uint32, length, pageSize int) AddressRange {
	return AddressRange{Start: start, Length: length, PageSize: pageSize}
}

// End returns the address one past the last byte in the range.
func (r AddressRange) End() uint32 {
	return r.Start + uint32(r.Length)
}

// IsInRange reports whether [addr, addr+length) lies entirely within r.
func (r AddressRange) IsInRange(address uint32, length int) bool {
	if length < 0 {
		return false
	}
	if address < r.Start {
		return false
	}
	end := address + uint32(length)
	if end < address {
		return false // overflow
	}
	return end <= r.End()
}

// PagesCount is Length / PageSize. Meaningless (and not checked) for a
// non-page-structured range.
func (r AddressRange) PagesCount() int {
	return r.Length / r.PageSize
}

// RemainingLength returns the number of bytes from address to the end of the
// range, failing OutOfRange if address does not lie within it.
func (r AddressRange) RemainingLength(address uint32) (int, error) {
	if !r.IsInRange(address, 0) {
		return 0, OutOfRange{Address: address, Range: r}
	}
	return int(r.End() - address), nil
}

// PageChunk is the portion of a caller-supplied buffer (or address range)
// that intersects one page. Touched reports whether this page is actually
// covered by the operation being chunked; an untouched page carries a zero
// Address/Data/Length and should be skipped by the caller.
type PageChunk struct {
	Address uint32
	Data    []byte // nil for an address-only chunk (see GetPageAddresses)
	Length  int
	Touched bool
}

// GetPageChunks splits data (conceptually placed starting at writeStart)
// into r.PagesCount() chunks, one per page of r, in page order. A page with
// no overlap with data is reported with Touched=false. Chunks never cross
// page boundaries.
func (r AddressRange) GetPageChunks(data []byte, writeStart uint32) []PageChunk {
	chunks := make([]PageChunk, r.PagesCount())
	dataEnd := writeStart + uint32(len(data))

	for i := range chunks {
		pageAddr := r.Start + uint32(i*r.PageSize)
		pageEnd := pageAddr + uint32(r.PageSize)

		lo := maxU32(pageAddr, writeStart)
		hi := minU32(pageEnd, dataEnd)
		if lo >= hi {
			continue
		}

		chunks[i] = PageChunk{
			Address: lo,
			Data:    data[lo-writeStart : hi-writeStart],
			Length:  int(hi - lo),
			Touched: true,
		}
	}
	return chunks
}

// GetPageAddresses is GetPageChunks' address-only counterpart: for each page
// of r touched by [start, start+length), it returns the touched
// (address, length) sub-range; untouched pages are omitted entirely.
func (r AddressRange) GetPageAddresses(start uint32, length int) []PageChunk {
	all := r.GetPageChunks(make([]byte, length), start)
	var touched []PageChunk
	for _, c := range all {
		if c.Touched {
			touched = append(touched, PageChunk{Address: c.Address, Length: c.Length, Touched: true})
		}
	}
	return touched
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
