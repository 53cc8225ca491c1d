package meter

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/interruptmeter/interruptmeter/pkg/types"
	"github.com/interruptmeter/interruptmeter/server/internal/store"
	"github.com/interruptmeter/interruptmeter/server/internal/tracker"
)

// Storage keys owned by this package.
const (
	KeyCurrentStart  = "current_iteration"
	KeyPreviousStart = "last_iteration"
	KeyCurrentData   = "current_iteration_data"
	KeyPreviousData  = "last_iteration_data"
)

// BucketCounts is the number of stories that landed in each bucket.
type BucketCounts struct {
	Current  int `json:"current"`
	Previous int `json:"previous"`
	Older    int `json:"older"`
}

// RefreshResult describes one completed refresh run.
type RefreshResult struct {
	RunID    string
	Boundary Boundary
	Current  Totals
	Previous Totals
	Older    Totals
	Counts   BucketCounts
	Faults   []tracker.ParseFault
}

// Stats are cumulative counters since process start.
type Stats struct {
	Refreshes   uint64
	ParseFaults uint64
	LastRefresh time.Time // zero until the first refresh
}

// Service runs the refresh pipeline against a KV store and reads the
// display series back. Callers serialise Refresh against other writers.
type Service struct {
	kv     store.KV
	states atomic.Pointer[StateMap]

	refreshes   atomic.Uint64
	parseFaults atomic.Uint64
	lastRefresh atomic.Int64 // unix nanos

	now func() time.Time // injectable for deterministic tests
}

// NewService returns a Service writing through kv with the given state map.
func NewService(kv store.KV, states *StateMap) *Service {
	s := &Service{kv: kv, now: time.Now}
	s.states.Store(states)
	return s
}

// SetStates swaps the state table used by subsequent refreshes.
func (s *Service) SetStates(m *StateMap) {
	s.states.Store(m)
}

// States returns the state table currently in use.
func (s *Service) States() *StateMap {
	return s.states.Load()
}

// Boundary reads the stored cycle starts.
func (s *Service) Boundary() (Boundary, error) {
	cur, err := s.getDate(KeyCurrentStart)
	if err != nil {
		return Boundary{}, err
	}
	prev, err := s.getDate(KeyPreviousStart)
	if err != nil {
		return Boundary{}, err
	}
	return NewBoundary(cur, prev)
}

// Refresh parses raw stories, computes cycle totals with the current state
// table and replaces both stored totals in one write. decodeFaults are
// entries the decoder already dropped; they are reported ahead of the
// parse faults.
func (s *Service) Refresh(raw []types.RawStory, decodeFaults ...tracker.ParseFault) (*RefreshResult, error) {
	runID := uuid.NewString()
	log := slog.With("run_id", runID)

	b, err := s.Boundary()
	if err != nil {
		return nil, fmt.Errorf("meter: refresh: %w", err)
	}

	records, parseFaults := tracker.Parse(raw)
	faults := append(append([]tracker.ParseFault(nil), decodeFaults...), parseFaults...)
	ct := Bucketize(records, b, s.states.Load())

	err = s.kv.SetMany(map[string]any{
		KeyCurrentData:  ct.Current,
		KeyPreviousData: ct.Previous,
	})
	if err != nil {
		return nil, fmt.Errorf("meter: refresh: store totals: %w", err)
	}
	if err := s.kv.Sync(); err != nil {
		return nil, fmt.Errorf("meter: refresh: sync: %w", err)
	}

	s.refreshes.Add(1)
	s.parseFaults.Add(uint64(len(faults)))
	s.lastRefresh.Store(s.now().UnixNano())

	res := &RefreshResult{
		RunID:    runID,
		Boundary: b,
		Current:  ct.Current,
		Previous: ct.Previous,
		Older:    ct.Older,
		Counts: BucketCounts{
			Current:  ct.Counts[Current],
			Previous: ct.Counts[Previous],
			Older:    ct.Counts[Older],
		},
		Faults: faults,
	}
	log.Info("meter: refresh complete",
		"stories", len(raw)+len(decodeFaults),
		"parsed", len(records),
		"faults", len(faults),
		"current_points", ct.Current.Sum(),
		"previous_points", ct.Previous.Sum(),
		"older_points", ct.Older.Sum(),
	)
	return res, nil
}

// StoredTotals returns the current and previous totals last written by
// Refresh or seeding. Missing keys read as zero totals.
func (s *Service) StoredTotals() (current, previous Totals, err error) {
	current, err = s.getTotals(KeyCurrentData)
	if err != nil {
		return nil, nil, err
	}
	previous, err = s.getTotals(KeyPreviousData)
	if err != nil {
		return nil, nil, err
	}
	return current, previous, nil
}

// Display merges the stored totals into the chart series.
func (s *Service) Display() (Series, error) {
	cur, prev, err := s.StoredTotals()
	if err != nil {
		return nil, err
	}
	return MergeForDisplay(cur, prev)
}

// Stats returns the cumulative refresh counters.
func (s *Service) Stats() Stats {
	st := Stats{
		Refreshes:   s.refreshes.Load(),
		ParseFaults: s.parseFaults.Load(),
	}
	if n := s.lastRefresh.Load(); n != 0 {
		st.LastRefresh = time.Unix(0, n)
	}
	return st
}

func (s *Service) getTotals(key string) (Totals, error) {
	var t Totals
	ok, err := s.kv.Get(key, &t)
	if err != nil {
		return nil, fmt.Errorf("meter: read %s: %w", key, err)
	}
	if !ok {
		return ZeroTotals(), nil
	}
	return t, nil
}

func (s *Service) getDate(key string) (time.Time, error) {
	var raw string
	ok, err := s.kv.Get(key, &raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("meter: read %s: %w", key, err)
	}
	if !ok {
		return time.Time{}, fmt.Errorf("meter: %s is not set; seed the store first", key)
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("meter: %s: %w", key, err)
	}
	return d, nil
}
