package markdown

import (
	"cmp"
	"fmt"
	"slices"
)

// Edit replaces source[Start:End] with Replacement. End is exclusive and
// offsets refer to the original source.
type Edit struct {
	Start       int
	End         int
	Replacement []byte
}

// ApplyEdits applies non-overlapping byte-range edits to source and returns
// the result. Bytes outside the edited ranges are copied unchanged, which
// keeps line endings and formatting of untouched text intact.
func ApplyEdits(source []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return source, nil
	}

	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b Edit) int { return cmp.Compare(a.Start, b.Start) })

	size := len(source)
	prevEnd := 0
	for i, e := range sorted {
		switch {
		case e.Start < 0 || e.End < 0:
			return nil, fmt.Errorf("invalid edit[%d]: negative range", i)
		case e.End < e.Start:
			return nil, fmt.Errorf("invalid edit[%d]: end before start", i)
		case e.End > len(source):
			return nil, fmt.Errorf("invalid edit[%d]: range out of bounds", i)
		case i > 0 && e.Start < prevEnd:
			return nil, fmt.Errorf("invalid edit[%d]: overlaps previous edit", i)
		}
		prevEnd = e.End
		size += len(e.Replacement) - (e.End - e.Start)
	}

	out := make([]byte, 0, size)
	cursor := 0
	for _, e := range sorted {
		out = append(out, source[cursor:e.Start]...)
		out = append(out, e.Replacement...)
		cursor = e.End
	}
	out = append(out, source[cursor:]...)
	return out, nil
}
