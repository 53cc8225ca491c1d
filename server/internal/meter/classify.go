package meter

import (
	"fmt"
	"time"
)

// Bucket is the cycle a story was created in.
type Bucket int

const (
	Older Bucket = iota
	Previous
	Current
)

func (b Bucket) String() string {
	switch b {
	case Current:
		return "current"
	case Previous:
		return "previous"
	default:
		return "older"
	}
}

// Boundary holds the start dates of the current and previous cycle.
// Only the calendar date of each field is used; the time of day and zone
// are ignored.
type Boundary struct {
	CurrentStart  time.Time
	PreviousStart time.Time
}

// NewBoundary returns a Boundary, rejecting a previous cycle that starts
// after the current one.
func NewBoundary(current, previous time.Time) (Boundary, error) {
	b := Boundary{CurrentStart: dateOf(current), PreviousStart: dateOf(previous)}
	if b.PreviousStart.After(b.CurrentStart) {
		return Boundary{}, fmt.Errorf("boundary: previous cycle start %s is after current cycle start %s",
			b.PreviousStart.Format(DateLayout), b.CurrentStart.Format(DateLayout))
	}
	return b, nil
}

// Classify buckets a creation time. Each boundary date is materialised at
// midnight in createdAt's own location, so naive and zoned values compare
// without conversion.
func Classify(createdAt time.Time, b Boundary) Bucket {
	loc := createdAt.Location()
	switch {
	case !createdAt.Before(midnightIn(b.CurrentStart, loc)):
		return Current
	case !createdAt.Before(midnightIn(b.PreviousStart, loc)):
		return Previous
	default:
		return Older
	}
}

// DateLayout is the format used for cycle and anchor dates in config,
// storage and the API.
const DateLayout = "2006-01-02"

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func midnightIn(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
