package tracker

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/interruptmeter/interruptmeter/pkg/types"
)

// DefaultPoints is what a story counts for when it has no usable estimate.
const DefaultPoints = 1

// StoryRecord is a normalised story. Values are never modified after Parse.
type StoryRecord struct {
	ID        string
	Name      string
	CreatedAt time.Time
	State     string
	Points    int
}

// ParseFault describes one raw entry that Parse dropped.
type ParseFault struct {
	ID    string
	Field string
	Value string
	Err   error
}

func (f ParseFault) Error() string {
	return fmt.Sprintf("story %q: %s %q: %v", f.ID, f.Field, f.Value, f.Err)
}

func (f ParseFault) Unwrap() error { return f.Err }

// Zoned layouts come first so an explicit offset is never discarded.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006/01/02 15:04:05 MST",
	"2006/01/02 15:04:05 -0700",
}

var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a tracker timestamp. Values without zone information
// are returned in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			// Abbreviations resolve to Local or a fabricated zone; a zero
			// offset is plain UTC.
			if _, off := t.Zone(); off == 0 {
				return t.UTC(), nil
			}
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp format")
}

// Points returns the point value for a raw estimate. Only a positive
// integer overrides DefaultPoints.
func Points(est *types.Estimate) int {
	if est == nil {
		return DefaultPoints
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(*est)))
	if err != nil || n < 1 {
		return DefaultPoints
	}
	return n
}

// Parse normalises raw entries. Entries with an unparseable creation time
// are dropped and reported as faults; the rest of the batch is unaffected.
func Parse(raw []types.RawStory) ([]StoryRecord, []ParseFault) {
	records := make([]StoryRecord, 0, len(raw))
	var faults []ParseFault

	for _, r := range raw {
		created, err := ParseTime(r.CreatedAt)
		if err != nil {
			f := ParseFault{ID: r.ID, Field: "created_at", Value: r.CreatedAt, Err: err}
			slog.Warn("tracker: dropping story", "id", r.ID, "err", f)
			faults = append(faults, f)
			continue
		}

		rec := StoryRecord{
			ID:        r.ID,
			Name:      r.Name,
			CreatedAt: created,
			State:     strings.TrimSpace(r.State),
			Points:    Points(r.Estimate),
		}
		slog.Debug("tracker: parsed story",
			"id", rec.ID, "state", rec.State, "points", rec.Points,
			"created_at", rec.CreatedAt)
		records = append(records, rec)
	}
	return records, faults
}
