package streak

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/interruptmeter/interruptmeter/server/internal/store"
)

// Track names one of the independently counted event kinds.
type Track string

const (
	Outage Track = "outage"
	Hotfix Track = "hotfix"
)

// Tracks lists every track in display order.
var Tracks = []Track{Outage, Hotfix}

// DateLayout is the storage format of anchor dates.
const DateLayout = "2006-01-02"

// ParseTrack validates a track name.
func ParseTrack(s string) (Track, error) {
	for _, t := range Tracks {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("streak: unknown track %q: want outage|hotfix", s)
}

func (t Track) anchorKey() string { return "last_" + string(t) }
func (t Track) maxKey() string    { return "max_" + string(t) }

// Status is the current streak of one track and its all-time record.
type Status struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Report holds the status of both tracks.
type Report struct {
	Outage Status `json:"outage"`
	Hotfix Status `json:"hotfix"`
}

// FutureAnchorError is returned when a track's anchor date lies after
// today; the streak would be negative.
type FutureAnchorError struct {
	Track  Track
	Anchor time.Time
	Today  time.Time
}

func (e *FutureAnchorError) Error() string {
	name := string(e.Track)
	if name == "" {
		name = "anchor"
	}
	return fmt.Sprintf("streak: %s date %s is after today %s",
		name, e.Anchor.Format(DateLayout), e.Today.Format(DateLayout))
}

// CurrentStreak returns the number of whole calendar days from anchor to
// today. Only the dates matter: 23:59 yesterday to 00:01 today is one day.
func CurrentStreak(anchor, today time.Time) (int, error) {
	a, d := dateOf(anchor), dateOf(today)
	if a.After(d) {
		return 0, &FutureAnchorError{Anchor: a, Today: d}
	}
	return int(d.Sub(a).Hours() / 24), nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Tracker reads and updates streak state through a KV store. It does not
// lock; callers serialise Observe and Reset for the same store.
type Tracker struct {
	kv  store.KV
	loc *time.Location
	now func() time.Time // injectable for deterministic tests
}

// New returns a Tracker whose notion of "today" is the calendar date in loc.
func New(kv store.KV, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{kv: kv, loc: loc, now: time.Now}
}

// WithClock replaces the time source used for "today" and returns t.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Today returns the current calendar date in the tracker's location.
func (t *Tracker) Today() time.Time {
	return dateOf(t.now().In(t.loc))
}

// Anchor returns the stored date of the last event on track.
func (t *Tracker) Anchor(track Track) (time.Time, error) {
	var raw string
	ok, err := t.kv.Get(track.anchorKey(), &raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("streak: read %s anchor: %w", track, err)
	}
	if !ok {
		return time.Time{}, fmt.Errorf("streak: %s anchor is not set; seed the store first", track)
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("streak: %s anchor: %w", track, err)
	}
	return d, nil
}

// Max returns the stored record for track; zero if none was stored.
func (t *Tracker) Max(track Track) (int, error) {
	var n int
	if _, err := t.kv.Get(track.maxKey(), &n); err != nil {
		return 0, fmt.Errorf("streak: read %s max: %w", track, err)
	}
	return n, nil
}

// Observe computes the current streak of track. When it beats the stored
// record the new record is written and synced before Observe returns; a
// failed write is returned and the status is not.
func (t *Tracker) Observe(track Track) (Status, error) {
	anchor, err := t.Anchor(track)
	if err != nil {
		return Status{}, err
	}
	cur, err := CurrentStreak(anchor, t.Today())
	if err != nil {
		var fe *FutureAnchorError
		if errors.As(err, &fe) {
			fe.Track = track
		}
		return Status{}, err
	}
	record, err := t.Max(track)
	if err != nil {
		return Status{}, err
	}

	if cur > record {
		if err := t.kv.Set(track.maxKey(), cur); err != nil {
			return Status{}, fmt.Errorf("streak: persist %s record: %w", track, err)
		}
		if err := t.kv.Sync(); err != nil {
			return Status{}, fmt.Errorf("streak: persist %s record: %w", track, err)
		}
		slog.Info("streak: new record", "track", track, "days", cur, "previous", record)
		record = cur
	}
	return Status{Current: cur, Max: record}, nil
}

// Report observes both tracks.
func (t *Tracker) Report() (Report, error) {
	out, err := t.Observe(Outage)
	if err != nil {
		return Report{}, err
	}
	hf, err := t.Observe(Hotfix)
	if err != nil {
		return Report{}, err
	}
	return Report{Outage: out, Hotfix: hf}, nil
}

// Reset marks today as the date of the last event on track. The record is
// left as is and the other track is not touched.
func (t *Tracker) Reset(track Track, today time.Time) error {
	d := dateOf(today)
	if err := t.kv.Set(track.anchorKey(), d.Format(DateLayout)); err != nil {
		return fmt.Errorf("streak: reset %s: %w", track, err)
	}
	if err := t.kv.Sync(); err != nil {
		return fmt.Errorf("streak: reset %s: %w", track, err)
	}
	slog.Info("streak: reset", "track", track, "date", d.Format(DateLayout))
	return nil
}
