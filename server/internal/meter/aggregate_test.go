package meter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/interruptmeter/interruptmeter/pkg/types"
	"github.com/interruptmeter/interruptmeter/server/internal/tracker"
)

func TestComputeCycleTotals_AllCurrent(t *testing.T) {
	b := mustBoundary(t, day(2012, 11, 12), day(2012, 10, 26))
	in := day(2012, 11, 20)
	records := []tracker.StoryRecord{
		story("1", "accepted", 3, in),
		story("2", "delivered", 2, in),
		story("3", "unstarted", 4, in),
		story("4", "unscheduled", 1, in),
	}

	cur, prev := ComputeCycleTotals(records, b, DefaultStateMap())

	want := Totals{
		{Done, 3}, {Started, 2}, {Planned, 4}, {Icebox, 1},
	}
	if diff := cmp.Diff(want, cur); diff != "" {
		t.Errorf("current totals (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ZeroTotals(), prev); diff != "" {
		t.Errorf("previous totals (-want +got):\n%s", diff)
	}
}

func TestComputeCycleTotals_SplitsBuckets(t *testing.T) {
	b := mustBoundary(t, day(2012, 11, 12), day(2012, 10, 26))
	records := []tracker.StoryRecord{
		story("1", "accepted", 3, day(2012, 11, 12)),
		story("2", "started", 5, day(2012, 11, 1)),
		story("3", "delivered", 2, day(2012, 11, 2)),
		story("4", "accepted", 8, day(2012, 9, 1)),
	}

	ct := Bucketize(records, b, DefaultStateMap())

	if diff := cmp.Diff(Totals{{Done, 3}, {Started, 0}, {Planned, 0}, {Icebox, 0}}, ct.Current); diff != "" {
		t.Errorf("current (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Totals{{Done, 0}, {Started, 7}, {Planned, 0}, {Icebox, 0}}, ct.Previous); diff != "" {
		t.Errorf("previous (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Totals{{Done, 8}, {Started, 0}, {Planned, 0}, {Icebox, 0}}, ct.Older); diff != "" {
		t.Errorf("older (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[Bucket]int{Current: 1, Previous: 2, Older: 1}, ct.Counts)
}

func TestAggregate_AbcEstimateCountsOnePointToDone(t *testing.T) {
	records, faults := tracker.Parse([]types.RawStory{{
		ID: "1", CreatedAt: "2012-11-20T10:00:00Z", State: "accepted",
		Estimate: types.EstimateOf("abc"),
	}})
	assert.Empty(t, faults)

	got := Aggregate(records, DefaultStateMap())
	pts, ok := got.Get(Done)
	assert.True(t, ok)
	assert.Equal(t, 1, pts)
}

func TestAggregate_AlwaysHasAllCategories(t *testing.T) {
	for name, records := range map[string][]tracker.StoryRecord{
		"empty":         nil,
		"unknown state": {story("1", "rejected", 5, day(2012, 11, 20))},
		"one category":  {story("1", "accepted", 2, day(2012, 11, 20))},
	} {
		t.Run(name, func(t *testing.T) {
			got := Aggregate(records, DefaultStateMap())
			assert.Equal(t, Categories, got.Keys())
		})
	}
}

func TestAggregate_UnknownStateContributesNothing(t *testing.T) {
	got := Aggregate([]tracker.StoryRecord{
		story("1", "rejected", 5, day(2012, 11, 20)),
		story("2", "accepted", 1, day(2012, 11, 20)),
	}, DefaultStateMap())
	assert.Equal(t, 1, got.Sum())
}

func TestFold_SumsManyStatesIntoOneCategory(t *testing.T) {
	got := Fold(map[string]int{"delivered": 2, "started": 5, "accepted": 1}, DefaultStateMap())
	pts, _ := got.Get(Started)
	assert.Equal(t, 7, pts)
	pts, _ = got.Get(Planned)
	assert.Equal(t, 0, pts)
}

func TestTotals_GetMissing(t *testing.T) {
	_, ok := Totals{{Done, 1}}.Get(Icebox)
	assert.False(t, ok)
}
