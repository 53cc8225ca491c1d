package meter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interruptmeter/interruptmeter/pkg/types"
	"github.com/interruptmeter/interruptmeter/server/internal/store"
	"github.com/interruptmeter/interruptmeter/server/internal/store/storetest"
)

func seededService(t *testing.T, kv store.KV) *Service {
	t.Helper()
	svc := NewService(kv, DefaultStateMap())
	require.NoError(t, svc.Seed(day(2012, 11, 12), day(2012, 10, 26)))
	return svc
}

func rawStories() []types.RawStory {
	return []types.RawStory{
		{ID: "1", CreatedAt: "2012-11-20T10:00:00Z", State: "accepted", Estimate: types.EstimateOf("3")},
		{ID: "2", CreatedAt: "2012-11-13T10:00:00Z", State: "delivered", Estimate: types.EstimateOf("2")},
		{ID: "3", CreatedAt: "2012-11-01T10:00:00Z", State: "unstarted", Estimate: types.EstimateOf("4")},
		{ID: "4", CreatedAt: "2012-09-01T10:00:00Z", State: "unscheduled"},
		{ID: "5", CreatedAt: "garbage", State: "accepted"},
	}
}

func TestService_SeedWritesZeroTotals(t *testing.T) {
	svc := seededService(t, store.NewMemory())

	b, err := svc.Boundary()
	require.NoError(t, err)
	assert.Equal(t, day(2012, 11, 12), b.CurrentStart)
	assert.Equal(t, day(2012, 10, 26), b.PreviousStart)

	series, err := svc.Display()
	require.NoError(t, err)
	require.Len(t, series, 4)
	for _, e := range series {
		assert.Equal(t, [2]Point{{0, 0}, {1, 0}}, e.Points, "category %s", e.Category)
	}
}

func TestService_SeedKeepsExistingValues(t *testing.T) {
	kv := store.NewMemory()
	require.NoError(t, kv.Set(KeyCurrentStart, "2020-01-06"))
	svc := NewService(kv, DefaultStateMap())

	require.NoError(t, svc.Seed(day(2012, 11, 12), day(2012, 10, 26)))

	b, err := svc.Boundary()
	require.NoError(t, err)
	assert.Equal(t, day(2020, 1, 6), b.CurrentStart)
	assert.Equal(t, day(2012, 10, 26), b.PreviousStart)
}

func TestService_Refresh(t *testing.T) {
	kv := store.NewMemory()
	svc := seededService(t, kv)
	svc.now = func() time.Time { return day(2012, 11, 21) }

	res, err := svc.Refresh(rawStories())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, BucketCounts{Current: 2, Previous: 1, Older: 1}, res.Counts)
	assert.Equal(t, Totals{{Done, 3}, {Started, 2}, {Planned, 0}, {Icebox, 0}}, res.Current)
	assert.Equal(t, Totals{{Done, 0}, {Started, 0}, {Planned, 4}, {Icebox, 0}}, res.Previous)
	require.Len(t, res.Faults, 1)
	assert.Equal(t, "5", res.Faults[0].ID)

	cur, prev, err := svc.StoredTotals()
	require.NoError(t, err)
	assert.Equal(t, res.Current, cur)
	assert.Equal(t, res.Previous, prev)

	st := svc.Stats()
	assert.Equal(t, uint64(1), st.Refreshes)
	assert.Equal(t, uint64(1), st.ParseFaults)
	assert.Equal(t, day(2012, 11, 21), st.LastRefresh.UTC())
}

func TestService_RefreshUsesSwappedStates(t *testing.T) {
	svc := seededService(t, store.NewMemory())
	m, err := NewStateMap(map[Category][]string{
		Done: {"accepted", "delivered"}, Started: {"started"}, Planned: {"unstarted"}, Icebox: {"unscheduled"},
	})
	require.NoError(t, err)
	svc.SetStates(m)

	res, err := svc.Refresh(rawStories())
	require.NoError(t, err)
	pts, _ := res.Current.Get(Done)
	assert.Equal(t, 5, pts)
}

func TestService_RefreshWithoutSeedFails(t *testing.T) {
	svc := NewService(store.NewMemory(), DefaultStateMap())
	_, err := svc.Refresh(rawStories())
	assert.Error(t, err)
}

func TestService_RefreshWriteFailureKeepsOldTotals(t *testing.T) {
	kv := &storetest.FailingWrites{KV: store.NewMemory()}
	svc := seededService(t, kv)

	kv.Fail = true
	_, err := svc.Refresh(rawStories())
	var pe *store.PersistenceError
	require.True(t, errors.As(err, &pe), "want *store.PersistenceError, got %v", err)

	cur, _, err := svc.StoredTotals()
	require.NoError(t, err)
	assert.Equal(t, ZeroTotals(), cur)
	assert.Equal(t, uint64(0), svc.Stats().Refreshes)
}

func TestService_DisplayMismatch(t *testing.T) {
	kv := store.NewMemory()
	svc := seededService(t, kv)
	require.NoError(t, kv.Set(KeyPreviousData, Totals{{Done, 1}}))

	_, err := svc.Display()
	var mm *CategoryMismatchError
	assert.True(t, errors.As(err, &mm))
}

func TestService_SetCycles(t *testing.T) {
	svc := seededService(t, store.NewMemory())

	b, err := svc.SetCycles(day(2012, 11, 26), day(2012, 11, 12))
	require.NoError(t, err)
	assert.Equal(t, day(2012, 11, 26), b.CurrentStart)

	got, err := svc.Boundary()
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = svc.SetCycles(day(2012, 11, 1), day(2012, 11, 12))
	assert.Error(t, err)
}
