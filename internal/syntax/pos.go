package syntax

import "fmt"

// Pos represents a position in a source file.
// The zero value is an invalid position.
type Pos struct {
	Filename string // source file name
	Line     int    // 1-based line number
	Column   int    // 1-based column number (byte offset in line)
	Offset   int    // 0-based byte offset in the file
}

// String returns a string representation of the position in the format
// "filename:line:col" or "line:col" if filename is empty.
func (p Pos) String() string {
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether the position is valid.
func (p Pos) IsValid() bool {
	return p.Line > 0
}
