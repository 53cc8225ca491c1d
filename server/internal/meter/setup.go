package meter

import (
	"fmt"
	"log/slog"
	"time"
)

// Seed writes initial cycle dates and zero totals for every key that is
// not stored yet. Existing values are left alone, so Seed is safe to run on
// every start.
func (s *Service) Seed(currentStart, previousStart time.Time) error {
	b, err := NewBoundary(currentStart, previousStart)
	if err != nil {
		return fmt.Errorf("meter: seed: %w", err)
	}

	defaults := map[string]any{
		KeyCurrentStart:  b.CurrentStart.Format(DateLayout),
		KeyPreviousStart: b.PreviousStart.Format(DateLayout),
		KeyCurrentData:   ZeroTotals(),
		KeyPreviousData:  ZeroTotals(),
	}
	missing := make(map[string]any)
	for k, v := range defaults {
		var existing any
		ok, err := s.kv.Get(k, &existing)
		if err != nil {
			return fmt.Errorf("meter: seed: %w", err)
		}
		if !ok {
			missing[k] = v
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if err := s.kv.SetMany(missing); err != nil {
		return fmt.Errorf("meter: seed: %w", err)
	}
	if err := s.kv.Sync(); err != nil {
		return fmt.Errorf("meter: seed: %w", err)
	}
	slog.Info("meter: seeded defaults", "keys", len(missing))
	return nil
}

// SetCycles replaces both cycle start dates. Stored totals are kept until
// the next refresh recomputes them against the new boundary.
func (s *Service) SetCycles(currentStart, previousStart time.Time) (Boundary, error) {
	b, entries, err := CycleEntries(currentStart, previousStart)
	if err != nil {
		return Boundary{}, err
	}
	if err := s.kv.SetMany(entries); err != nil {
		return Boundary{}, fmt.Errorf("meter: set cycles: %w", err)
	}
	if err := s.kv.Sync(); err != nil {
		return Boundary{}, fmt.Errorf("meter: set cycles: %w", err)
	}
	slog.Info("meter: cycles updated",
		"current", b.CurrentStart.Format(DateLayout),
		"previous", b.PreviousStart.Format(DateLayout))
	return b, nil
}

// CycleEntries validates a new pair of cycle starts and returns the store
// entries that record them, for callers batching them with other writes.
func CycleEntries(currentStart, previousStart time.Time) (Boundary, map[string]any, error) {
	b, err := NewBoundary(currentStart, previousStart)
	if err != nil {
		return Boundary{}, nil, err
	}
	return b, map[string]any{
		KeyCurrentStart:  b.CurrentStart.Format(DateLayout),
		KeyPreviousStart: b.PreviousStart.Format(DateLayout),
	}, nil
}
