package streak

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRecordDecrease is returned by SetRecord for a value below the stored
// record.
var ErrRecordDecrease = errors.New("streak: record may not decrease")

// Seed stores anchors (and zero records) for tracks that have none yet.
func (t *Tracker) Seed(anchors map[Track]time.Time) error {
	missing := make(map[string]any)
	for _, track := range Tracks {
		a, ok := anchors[track]
		if !ok {
			return fmt.Errorf("streak: seed: no %s anchor", track)
		}
		var existing any
		has, err := t.kv.Get(track.anchorKey(), &existing)
		if err != nil {
			return fmt.Errorf("streak: seed: %w", err)
		}
		if !has {
			missing[track.anchorKey()] = dateOf(a).Format(DateLayout)
		}
		has, err = t.kv.Get(track.maxKey(), &existing)
		if err != nil {
			return fmt.Errorf("streak: seed: %w", err)
		}
		if !has {
			missing[track.maxKey()] = 0
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if err := t.kv.SetMany(missing); err != nil {
		return fmt.Errorf("streak: seed: %w", err)
	}
	if err := t.kv.Sync(); err != nil {
		return fmt.Errorf("streak: seed: %w", err)
	}
	slog.Info("streak: seeded defaults", "keys", len(missing))
	return nil
}

// SetAnchor moves the anchor of track to date. Future dates are rejected
// with *FutureAnchorError.
func (t *Tracker) SetAnchor(track Track, date time.Time) error {
	entries, err := t.Edits(map[Track]time.Time{track: date}, nil)
	if err != nil {
		return err
	}
	return t.Commit(entries)
}

// SetRecord raises the stored record of track to days. Lower values are
// rejected with ErrRecordDecrease; equal values are a no-op.
func (t *Tracker) SetRecord(track Track, days int) error {
	entries, err := t.Edits(nil, map[Track]int{track: days})
	if err != nil {
		return err
	}
	return t.Commit(entries)
}

// Edits validates anchor and record changes against the stored state and
// returns the store entries that apply them, without writing. Anchors after
// today fail with *FutureAnchorError, records below the stored one with
// ErrRecordDecrease. Records equal to the stored value produce no entry.
func (t *Tracker) Edits(anchors map[Track]time.Time, records map[Track]int) (map[string]any, error) {
	entries := make(map[string]any, len(anchors)+len(records))
	today := t.Today()
	for _, track := range Tracks {
		date, ok := anchors[track]
		if !ok {
			continue
		}
		if dateOf(date).After(today) {
			return nil, &FutureAnchorError{Track: track, Anchor: dateOf(date), Today: today}
		}
		entries[track.anchorKey()] = dateOf(date).Format(DateLayout)
	}
	for _, track := range Tracks {
		days, ok := records[track]
		if !ok {
			continue
		}
		cur, err := t.Max(track)
		if err != nil {
			return nil, err
		}
		if days < cur {
			return nil, fmt.Errorf("%w: %s record is %d, got %d", ErrRecordDecrease, track, cur, days)
		}
		if days > cur {
			entries[track.maxKey()] = days
		}
	}
	return entries, nil
}

// Commit writes entries in one SetMany and syncs. The entries may include
// keys owned by other packages sharing the store, so a multi-part edit
// lands as a unit.
func (t *Tracker) Commit(entries map[string]any) error {
	if len(entries) == 0 {
		return nil
	}
	if err := t.kv.SetMany(entries); err != nil {
		return fmt.Errorf("streak: commit: %w", err)
	}
	if err := t.kv.Sync(); err != nil {
		return fmt.Errorf("streak: commit: %w", err)
	}
	return nil
}
