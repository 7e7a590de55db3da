// Package chipid decodes the three identification register layouts SAM
// devices expose: CPUID (ARM architectural), CHIPID (SAM3/4/V), and DSU
// (SAM D/L/C). Each decoder is a pure function of the raw word(s) read from
// the device; a zero raw word is the sentinel for "module not present at
// this address."
package chipid

import "fmt"

// Reader is satisfied by samba.SAMBA; kept narrow so this package has no
// dependency on the transport/protocol stack.
type Reader interface {
	ReadWord(address uint32) (uint32, error)
}

func lookup(table map[uint32]string, value uint32) string {
	if s, ok := table[value]; ok {
		return s
	}
	return fmt.Sprintf("%d (unknown)", value)
}
