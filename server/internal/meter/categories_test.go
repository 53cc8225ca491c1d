package meter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStateMap(t *testing.T) {
	m := DefaultStateMap()
	tests := map[string]Category{
		"accepted":    Done,
		"delivered":   Started,
		"started":     Started,
		"unstarted":   Planned,
		"unscheduled": Icebox,
	}
	for state, want := range tests {
		got, ok := m.CategoryOf(state)
		require.True(t, ok, "state %q", state)
		assert.Equal(t, want, got, "state %q", state)
	}

	_, ok := m.CategoryOf("rejected")
	assert.False(t, ok)
	assert.Equal(t, []string{"delivered", "started"}, m.States(Started))
}

func TestNewStateMap_Validation(t *testing.T) {
	tests := []struct {
		name    string
		table   map[Category][]string
		wantErr string
	}{
		{
			name: "missing category",
			table: map[Category][]string{
				Done: {"accepted"}, Started: {"started"}, Planned: {"unstarted"},
			},
			wantErr: `category "icebox" is missing`,
		},
		{
			name: "unknown category",
			table: map[Category][]string{
				Done: {"accepted"}, Started: {"started"}, Planned: {"unstarted"},
				Icebox: {"unscheduled"}, "blocked": {"rejected"},
			},
			wantErr: "unknown categories blocked",
		},
		{
			name: "state in two categories",
			table: map[Category][]string{
				Done: {"accepted"}, Started: {"started", "accepted"}, Planned: {"unstarted"},
				Icebox: {"unscheduled"},
			},
			wantErr: `state "accepted" mapped to both`,
		},
		{
			name: "empty state name",
			table: map[Category][]string{
				Done: {"accepted"}, Started: {" "}, Planned: {"unstarted"}, Icebox: {"unscheduled"},
			},
			wantErr: "empty state name",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewStateMap(tc.table)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewStateMap_EmptyCategoryAllowed(t *testing.T) {
	m, err := NewStateMap(map[Category][]string{
		Done: {"accepted", "finished"}, Started: {"started"}, Planned: {}, Icebox: nil,
	})
	require.NoError(t, err)
	c, ok := m.CategoryOf("finished")
	require.True(t, ok)
	assert.Equal(t, Done, c)
	assert.Empty(t, m.States(Planned))
}
