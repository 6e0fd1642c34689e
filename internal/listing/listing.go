// Package listing serializes a compile's per-statement address/byte-count
// records against the original source text, for the `-l/--listing`
// output format the language reference defines.
//
// The teacher has no listing writer of its own (pkg/asm resolves labels
// silently); this is grounded directly in the line-oriented text format
// spec.md §6 specifies, written in the teacher's habit of building output
// with strings.Builder and one fmt.Fprintf per record (see
// pkg/compiler/symtable.go's String() method).
package listing

import (
	"fmt"
	"strings"

	"actionz80/internal/codegen"
)

// Write renders records against src's lines as:
// <hex-address>  <byte-count>  <source-line-number>: <source-text>
func Write(records []codegen.ListingRecord, src string) string {
	lines := strings.Split(src, "\n")
	var b strings.Builder
	for _, r := range records {
		text := ""
		if r.SourceLine >= 1 && r.SourceLine <= len(lines) {
			text = strings.TrimRight(lines[r.SourceLine-1], "\r")
		}
		fmt.Fprintf(&b, "%04X  %d  %d: %s\n", r.Address, r.ByteCount, r.SourceLine, text)
	}
	return b.String()
}
