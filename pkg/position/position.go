package position

import (
	"fmt"
	"strings"

	"github.com/apparentlymart/go-textseg/v13/textseg"
	"github.com/walteh/lexdb/pkg/intern"
)

// Offset is a byte position within a file.
type Offset uint32

// Span is the half-open byte range [Start, End).
type Span struct {
	Start Offset
	End   Offset
}

// NewSpan builds a span, raising end to start when the two are inverted so the
// Start <= End invariant always holds.
func NewSpan(start, end Offset) Span {
	if end < start {
		end = start
	}
	return Span{Start: start, End: end}
}

func (s Span) Len() uint32 {
	return uint32(s.End - s.Start)
}

func (s Span) IsEmpty() bool {
	return s.Start == s.End
}

// In qualifies the span with the file it belongs to.
func (s Span) In(filename intern.Word) FileSpan {
	return FileSpan{Filename: filename, Span: s}
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// FileSpan is a Span plus the file it was taken from.
type FileSpan struct {
	Filename intern.Word
	Span
}

// Place is a 1-based line and column. Columns count grapheme clusters, so a
// combined emoji or an accented letter is a single column.
type Place struct {
	Line   int
	Column int
}

func (p Place) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type Range struct {
	Start Place
	End   Place
}

// PlaceOf converts a byte offset in text into a line and column. Offsets past
// the end of text are clamped to it.
func PlaceOf(text string, off Offset) Place {
	end := int(off)
	if end > len(text) {
		end = len(text)
	}

	line := 1 + strings.Count(text[:end], "\n")
	lineStart := strings.LastIndexByte(text[:end], '\n') + 1

	col, err := textseg.TokenCount([]byte(text[lineStart:end]), textseg.ScanGraphemeClusters)
	if err != nil {
		// invalid UTF-8 can't be segmented; fall back to bytes
		col = end - lineStart
	}

	return Place{Line: line, Column: col + 1}
}

// RangeOf converts s into a line/column range over text.
func (s Span) RangeOf(text string) Range {
	return Range{
		Start: PlaceOf(text, s.Start),
		End:   PlaceOf(text, s.End),
	}
}
