package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawStory_EstimateForms(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *Estimate
	}{
		{"number", `{"id":"1","estimate":3}`, EstimateOf("3")},
		{"string", `{"id":"1","estimate":"abc"}`, EstimateOf("abc")},
		{"negative", `{"id":"1","estimate":-1}`, EstimateOf("-1")},
		{"null", `{"id":"1","estimate":null}`, nil},
		{"absent", `{"id":"1"}`, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var rs RawStory
			require.NoError(t, json.Unmarshal([]byte(tc.body), &rs))
			assert.Equal(t, tc.want, rs.Estimate)
		})
	}
}

func TestRawStory_EstimateKeepsOtherValuesAsText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *Estimate
	}{
		{"bool", `{"id":"1","estimate":true}`, EstimateOf("true")},
		{"object", `{"id":"1","estimate":{"v":1}}`, EstimateOf(`{"v":1}`)},
		{"array", `{"id":"1","estimate":[2]}`, EstimateOf("[2]")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var rs RawStory
			require.NoError(t, json.Unmarshal([]byte(tc.body), &rs))
			assert.Equal(t, tc.want, rs.Estimate)
		})
	}
}
