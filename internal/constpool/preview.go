package constpool

import (
	"strings"

	"golang.org/x/text/width"
)

// Preview renders a bounded, display-width-aware preview of a string
// constant for disassembly dumps (cmd/pyton's disasm shell): fullwidth
// runes count for two display cells, so a naive rune-count truncation
// would misalign the column padding callers build around this.
func Preview(s string, maxWidth int) string {
	var b strings.Builder
	w := 0

	for _, r := range s {
		rw := 1
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			rw = 2
		}

		if w+rw > maxWidth-1 {
			b.WriteRune('…')
			return b.String()
		}

		b.WriteRune(r)
		w += rw
	}

	return b.String()
}
