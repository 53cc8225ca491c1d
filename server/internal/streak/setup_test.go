package streak

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interruptmeter/interruptmeter/server/internal/store"
	"github.com/interruptmeter/interruptmeter/server/internal/store/storetest"
)

func TestSeed_OnlyFillsMissingKeys(t *testing.T) {
	kv := store.NewMemory()
	require.NoError(t, kv.Set("max_outage", 40))

	tr := New(kv, time.UTC)
	tr.now = fixedClock(today)
	require.NoError(t, tr.Seed(map[Track]time.Time{
		Outage: time.Date(2012, 11, 24, 0, 0, 0, 0, time.UTC),
		Hotfix: time.Date(2012, 11, 23, 0, 0, 0, 0, time.UTC),
	}))

	assert.Equal(t, []string{"last_hotfix", "last_outage", "max_hotfix", "max_outage"}, kv.Keys())
	got, err := tr.Max(Outage)
	require.NoError(t, err)
	assert.Equal(t, 40, got)

	a, err := tr.Anchor(Hotfix)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2012, 11, 23, 0, 0, 0, 0, time.UTC), a)
}

func TestSeed_RequiresBothAnchors(t *testing.T) {
	tr := New(store.NewMemory(), time.UTC)
	err := tr.Seed(map[Track]time.Time{Outage: today})
	assert.Error(t, err)
}

func TestSetAnchor(t *testing.T) {
	tr := newTracker(t, store.NewMemory(), 1, 0, 1, 0)

	require.NoError(t, tr.SetAnchor(Outage, daysAgo(20)))
	st, err := tr.Observe(Outage)
	require.NoError(t, err)
	assert.Equal(t, Status{Current: 20, Max: 20}, st)

	err = tr.SetAnchor(Outage, today.AddDate(0, 0, 1))
	var fe *FutureAnchorError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, Outage, fe.Track)
}

func TestSetRecord(t *testing.T) {
	tr := newTracker(t, store.NewMemory(), 1, 10, 1, 0)

	require.NoError(t, tr.SetRecord(Outage, 25))
	got, err := tr.Max(Outage)
	require.NoError(t, err)
	assert.Equal(t, 25, got)

	require.NoError(t, tr.SetRecord(Outage, 25), "equal value is a no-op")

	err = tr.SetRecord(Outage, 3)
	assert.True(t, errors.Is(err, ErrRecordDecrease))
	got, err = tr.Max(Outage)
	require.NoError(t, err)
	assert.Equal(t, 25, got)
}

func TestEdits_ValidatesWithoutWriting(t *testing.T) {
	kv := store.NewMemory()
	tr := newTracker(t, kv, 5, 10, 2, 4)

	entries, err := tr.Edits(
		map[Track]time.Time{Outage: daysAgo(30)},
		map[Track]int{Outage: 10, Hotfix: 9},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"last_outage": daysAgo(30).Format(DateLayout),
		"max_hotfix":  9,
	}, entries, "an unchanged record produces no entry")

	a, err := tr.Anchor(Outage)
	require.NoError(t, err)
	assert.Equal(t, dateOf(daysAgo(5)), a, "Edits does not write")

	_, err = tr.Edits(nil, map[Track]int{Hotfix: 1})
	assert.ErrorIs(t, err, ErrRecordDecrease)

	_, err = tr.Edits(map[Track]time.Time{Hotfix: today.AddDate(0, 0, 2)}, nil)
	var fe *FutureAnchorError
	assert.ErrorAs(t, err, &fe)
}

func TestCommit_OneWrite(t *testing.T) {
	kv := &storetest.WriteBudget{KV: store.NewMemory(), Left: 100}
	tr := newTracker(t, kv, 5, 10, 2, 4)
	kv.Left = 1

	require.NoError(t, tr.Commit(map[string]any{
		"last_outage":       daysAgo(1).Format(DateLayout),
		"max_hotfix":        20,
		"current_iteration": "2026-03-09",
	}))
	assert.Zero(t, kv.Left)

	got, err := tr.Max(Hotfix)
	require.NoError(t, err)
	assert.Equal(t, 20, got)

	err = tr.Commit(map[string]any{"max_hotfix": 30})
	var pe *store.PersistenceError
	assert.ErrorAs(t, err, &pe)
	require.NoError(t, tr.Commit(nil), "nothing to write is not a write")
}
