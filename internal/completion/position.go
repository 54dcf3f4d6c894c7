package completion

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/woxQAQ/completion-bridge/pkg/protocol"
)

// ToPosition converts the host's 1-based line number and 1-based byte column
// into a protocol position. The host counts bytes, the protocol counts UTF-16
// code units, so the text before the cursor is re-measured.
func ToPosition(line string, lineNumber, byteColumn int) protocol.Position {
	return protocol.Position{
		Line:      lineNumber - 1,
		Character: utf16Len(byteSlice(line, byteColumn-1)) + 1,
	}
}

// byteSlice returns line[:end], clamped to the line and pulled back to a
// rune boundary when end falls inside a multi-byte sequence.
func byteSlice(line string, end int) string {
	if end <= 0 {
		return ""
	}
	if end >= len(line) {
		return line
	}
	for end > 0 && !utf8.RuneStart(line[end]) {
		end--
	}
	return line[:end]
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
