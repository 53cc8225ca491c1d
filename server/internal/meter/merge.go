package meter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Series tags: the chart draws the current cycle at x=0, the previous at x=1.
const (
	TagCurrent  = 0
	TagPrevious = 1
)

// Point is one (x, y) pair of a chart series. It encodes as [x, y].
type Point [2]int

// SeriesEntry is the current/previous pair of one category.
type SeriesEntry struct {
	Category Category
	Points   [2]Point
}

// Series is the display form of two Totals, ordered like the current
// cycle's totals.
type Series []SeriesEntry

// MarshalJSON encodes the series as an object keyed by category, keeping
// the series order: {"done":[[0,3],[1,0]],...}.
func (s Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(string(e.Category))
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Points)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// CategoryMismatchError is returned when two Totals do not cover the same
// categories.
type CategoryMismatchError struct {
	Missing   []Category // in current, absent from previous
	Extra     []Category // in previous, absent from current
	Duplicate []Category // listed more than once in either Totals
}

func (e *CategoryMismatchError) Error() string {
	join := func(cs []Category) string {
		s := make([]string, len(cs))
		for i, c := range cs {
			s[i] = string(c)
		}
		return strings.Join(s, ",")
	}
	msg := fmt.Sprintf("meter: category mismatch: previous cycle lacks [%s], has unexpected [%s]",
		join(e.Missing), join(e.Extra))
	if len(e.Duplicate) > 0 {
		msg += fmt.Sprintf(", duplicated [%s]", join(e.Duplicate))
	}
	return msg
}

// MergeForDisplay pairs current and previous totals per category. It fails
// with *CategoryMismatchError when the category sets differ or either side
// lists a category twice; categories are never dropped or invented.
func MergeForDisplay(current, previous Totals) (Series, error) {
	prev := make(map[Category]int, len(previous))
	seenPrev := make(map[Category]int, len(previous))
	for _, ct := range previous {
		prev[ct.Category] = ct.Points
		seenPrev[ct.Category]++
	}
	seenCur := make(map[Category]int, len(current))
	for _, ct := range current {
		seenCur[ct.Category]++
	}

	var mm CategoryMismatchError
	dup := make(map[Category]bool)
	for _, ct := range current {
		if seenPrev[ct.Category] == 0 {
			mm.Missing = append(mm.Missing, ct.Category)
		}
		if seenCur[ct.Category] > 1 {
			dup[ct.Category] = true
		}
	}
	for _, ct := range previous {
		if seenCur[ct.Category] == 0 {
			mm.Extra = append(mm.Extra, ct.Category)
		}
		if seenPrev[ct.Category] > 1 {
			dup[ct.Category] = true
		}
	}
	for c := range dup {
		mm.Duplicate = append(mm.Duplicate, c)
	}
	if len(mm.Missing) > 0 || len(mm.Extra) > 0 || len(mm.Duplicate) > 0 {
		sort.Slice(mm.Extra, func(i, j int) bool { return mm.Extra[i] < mm.Extra[j] })
		sort.Slice(mm.Duplicate, func(i, j int) bool { return mm.Duplicate[i] < mm.Duplicate[j] })
		return nil, &mm
	}

	out := make(Series, 0, len(current))
	for _, ct := range current {
		out = append(out, SeriesEntry{
			Category: ct.Category,
			Points: [2]Point{
				{TagCurrent, ct.Points},
				{TagPrevious, prev[ct.Category]},
			},
		})
	}
	return out, nil
}
