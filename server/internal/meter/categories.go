package meter

import (
	"fmt"
	"sort"
	"strings"
)

// Category is one column of the interrupt chart.
type Category string

// The fixed category set. Every Totals value carries all four.
const (
	Done    Category = "done"
	Started Category = "started"
	Planned Category = "planned"
	Icebox  Category = "icebox"
)

// Categories is the fixed category set in display order.
var Categories = []Category{Done, Started, Planned, Icebox}

// DefaultStates is the tracker workflow state table used when the config
// file does not override it.
var DefaultStates = map[Category][]string{
	Done:    {"accepted"},
	Started: {"delivered", "started"},
	Planned: {"unstarted"},
	Icebox:  {"unscheduled"},
}

func isCategory(c Category) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// StateMap maps raw workflow states to categories. A StateMap is immutable
// once built; swap the whole value to change the table.
type StateMap struct {
	byState    map[string]Category
	byCategory map[Category][]string
}

// NewStateMap validates table and builds a StateMap. Every fixed category
// must be present (an empty state list is allowed), no other category may
// appear, state names must be non-empty, and no state may feed two
// categories.
func NewStateMap(table map[Category][]string) (*StateMap, error) {
	m := &StateMap{
		byState:    make(map[string]Category),
		byCategory: make(map[Category][]string, len(Categories)),
	}

	// Iterate unknown keys in sorted order so the error is stable.
	extra := make([]string, 0)
	for c := range table {
		if !isCategory(c) {
			extra = append(extra, string(c))
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, fmt.Errorf("states: unknown categories %s", strings.Join(extra, ", "))
	}

	for _, c := range Categories {
		states, ok := table[c]
		if !ok {
			return nil, fmt.Errorf("states: category %q is missing", c)
		}
		for _, s := range states {
			s = strings.TrimSpace(s)
			if s == "" {
				return nil, fmt.Errorf("states: category %q has an empty state name", c)
			}
			if prev, dup := m.byState[s]; dup {
				return nil, fmt.Errorf("states: state %q mapped to both %q and %q", s, prev, c)
			}
			m.byState[s] = c
			m.byCategory[c] = append(m.byCategory[c], s)
		}
	}
	return m, nil
}

// DefaultStateMap returns the StateMap built from DefaultStates.
func DefaultStateMap() *StateMap {
	m, err := NewStateMap(DefaultStates)
	if err != nil {
		panic(err) // DefaultStates is a compile-time constant table
	}
	return m
}

// CategoryOf returns the category a raw state folds into.
func (m *StateMap) CategoryOf(state string) (Category, bool) {
	c, ok := m.byState[state]
	return c, ok
}

// States returns the raw states folded into c.
func (m *StateMap) States(c Category) []string {
	return append([]string(nil), m.byCategory[c]...)
}
