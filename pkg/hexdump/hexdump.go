// Package hexdump renders a byte slice as a hex+ASCII dump, the format
// the logger satellite emits at Trace level for relay payloads and
// command frame bodies.
package hexdump

import (
	"fmt"
	"strings"
)

const (
	defaultBytesPerRow = 16
	defaultBytesPerCol = 8
)

// Format renders data as rows of bytesPerRow bytes, grouped into columns
// of bytesPerCol bytes separated by an extra space, followed by the
// row's printable-ASCII rendering. Non-positive sizes fall back to the
// package defaults.
func Format(data []byte, bytesPerRow, bytesPerCol int) string {
	if bytesPerRow <= 0 {
		bytesPerRow = defaultBytesPerRow
	}
	if bytesPerCol <= 0 {
		bytesPerCol = defaultBytesPerCol
	}

	var b strings.Builder
	for offset := 0; offset < len(data); offset += bytesPerRow {
		end := offset + bytesPerRow
		if end > len(data) {
			end = len(data)
		}
		row := data[offset:end]

		fmt.Fprintf(&b, "%08x  ", offset)
		writeHexColumns(&b, row, bytesPerRow, bytesPerCol)
		b.WriteString(" |")
		writeASCII(&b, row)
		b.WriteString("|\n")
	}
	return b.String()
}

func writeHexColumns(b *strings.Builder, row []byte, bytesPerRow, bytesPerCol int) {
	for i := 0; i < bytesPerRow; i++ {
		if i < len(row) {
			fmt.Fprintf(b, "%02x ", row[i])
		} else {
			b.WriteString("   ")
		}
		if (i+1)%bytesPerCol == 0 && i+1 != bytesPerRow {
			b.WriteByte(' ')
		}
	}
}

func writeASCII(b *strings.Builder, row []byte) {
	for _, c := range row {
		if c >= 0x20 && c < 0x7f {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
}
