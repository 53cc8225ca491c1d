package meter

import (
	"log/slog"

	"github.com/interruptmeter/interruptmeter/server/internal/tracker"
)

// CategoryTotal is the point sum of one category.
type CategoryTotal struct {
	Category Category `json:"category"`
	Points   int      `json:"points"`
}

// Totals is an ordered list of category sums. Values produced by this
// package always hold every fixed category exactly once, in Categories
// order. Totals read back from storage may differ, which MergeForDisplay
// detects.
type Totals []CategoryTotal

// ZeroTotals returns Totals with every category at zero.
func ZeroTotals() Totals {
	out := make(Totals, len(Categories))
	for i, c := range Categories {
		out[i] = CategoryTotal{Category: c}
	}
	return out
}

// Get returns the points for c and whether c is present.
func (t Totals) Get(c Category) (int, bool) {
	for _, ct := range t {
		if ct.Category == c {
			return ct.Points, true
		}
	}
	return 0, false
}

// Keys returns the categories in order.
func (t Totals) Keys() []Category {
	out := make([]Category, len(t))
	for i, ct := range t {
		out[i] = ct.Category
	}
	return out
}

// Sum returns the total points across categories.
func (t Totals) Sum() int {
	var n int
	for _, ct := range t {
		n += ct.Points
	}
	return n
}

// SumByState adds up points per raw state.
func SumByState(records []tracker.StoryRecord) map[string]int {
	out := make(map[string]int)
	for _, r := range records {
		out[r.State] += r.Points
	}
	return out
}

// Fold maps per-state sums onto the category set. Categories with no
// matching state total zero; states the map does not know are ignored.
func Fold(byState map[string]int, m *StateMap) Totals {
	out := ZeroTotals()
	for state, pts := range byState {
		c, ok := m.CategoryOf(state)
		if !ok {
			slog.Debug("meter: state has no category", "state", state, "points", pts)
			continue
		}
		for i := range out {
			if out[i].Category == c {
				out[i].Points += pts
				break
			}
		}
	}
	return out
}

// Aggregate sums records into category totals.
func Aggregate(records []tracker.StoryRecord, m *StateMap) Totals {
	return Fold(SumByState(records), m)
}

// CycleTotals holds the totals of all three buckets of one run.
type CycleTotals struct {
	Current  Totals
	Previous Totals
	Older    Totals
	Counts   map[Bucket]int
}

// Bucketize classifies every record and aggregates each bucket.
func Bucketize(records []tracker.StoryRecord, b Boundary, m *StateMap) CycleTotals {
	groups := map[Bucket][]tracker.StoryRecord{}
	for _, r := range records {
		bucket := Classify(r.CreatedAt, b)
		slog.Debug("meter: classified story", "id", r.ID, "bucket", bucket.String())
		groups[bucket] = append(groups[bucket], r)
	}
	return CycleTotals{
		Current:  Aggregate(groups[Current], m),
		Previous: Aggregate(groups[Previous], m),
		Older:    Aggregate(groups[Older], m),
		Counts: map[Bucket]int{
			Current:  len(groups[Current]),
			Previous: len(groups[Previous]),
			Older:    len(groups[Older]),
		},
	}
}

// ComputeCycleTotals returns the category totals of the current and
// previous cycle.
func ComputeCycleTotals(records []tracker.StoryRecord, b Boundary, m *StateMap) (current, previous Totals) {
	ct := Bucketize(records, b, m)
	return ct.Current, ct.Previous
}
