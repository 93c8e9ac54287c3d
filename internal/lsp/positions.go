package lsp

import "strings"

// lineCol maps a byte offset into zero-based line and column numbers.
// Offsets beyond the document clamp to the last position.
func lineCol(content string, offset int) (line, col int) {
	if offset < 0 {
		return 0, 0
	}
	if offset > len(content) {
		offset = len(content)
	}

	before := content[:offset]
	line = strings.Count(before, "\n")
	if last := strings.LastIndexByte(before, '\n'); last >= 0 {
		col = len([]rune(before[last+1:]))
	} else {
		col = len([]rune(before))
	}
	return line, col
}
