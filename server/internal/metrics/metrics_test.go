package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interruptmeter/interruptmeter/server/internal/meter"
	"github.com/interruptmeter/interruptmeter/server/internal/streak"
)

func sample(t *testing.T) Sample {
	t.Helper()
	cur := meter.Totals{
		{Category: meter.Done, Points: 3},
		{Category: meter.Started, Points: 2},
		{Category: meter.Planned, Points: 0},
		{Category: meter.Icebox, Points: 1},
	}
	series, err := meter.MergeForDisplay(cur, meter.ZeroTotals())
	require.NoError(t, err)
	return Sample{
		Streaks: streak.Report{
			Outage: streak.Status{Current: 10, Max: 12},
			Hotfix: streak.Status{Current: 0, Max: 3},
		},
		Iterations: series,
		Stats: meter.Stats{
			Refreshes:   4,
			ParseFaults: 2,
			LastRefresh: time.Unix(1773565200, 0),
		},
		Clients: 1,
	}
}

func scrape(t *testing.T, h http.Handler) (*httptest.ResponseRecorder, map[string]*dto.MetricFamily) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		return rr, nil
	}
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	require.NoError(t, err)
	return rr, mfs
}

// value finds the metric in mf whose labels include all of want.
func value(t *testing.T, mf *dto.MetricFamily, want map[string]string) float64 {
	t.Helper()
	require.NotNil(t, mf)
	for _, m := range mf.GetMetric() {
		got := map[string]string{}
		for _, lp := range m.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		match := true
		for k, v := range want {
			if got[k] != v {
				match = false
			}
		}
		if !match {
			continue
		}
		switch {
		case m.Gauge != nil:
			return m.Gauge.GetValue()
		case m.Counter != nil:
			return m.Counter.GetValue()
		}
	}
	t.Fatalf("%s: no metric with labels %v", mf.GetName(), want)
	return 0
}

func TestHandler_RoundTrip(t *testing.T) {
	s := sample(t)
	rr, mfs := scrape(t, Handler(func() (Sample, error) { return s, nil }))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")

	assert.Equal(t, 10.0, value(t, mfs["interruptmeter_streak_days"], map[string]string{"track": "outage"}))
	assert.Equal(t, 0.0, value(t, mfs["interruptmeter_streak_days"], map[string]string{"track": "hotfix"}))
	assert.Equal(t, 12.0, value(t, mfs["interruptmeter_streak_record_days"], map[string]string{"track": "outage"}))

	pts := mfs["interruptmeter_iteration_points"]
	assert.Len(t, pts.GetMetric(), 8)
	assert.Equal(t, 3.0, value(t, pts, map[string]string{"iteration": "current", "category": "done"}))
	assert.Equal(t, 1.0, value(t, pts, map[string]string{"iteration": "current", "category": "icebox"}))
	assert.Equal(t, 0.0, value(t, pts, map[string]string{"iteration": "previous", "category": "done"}))

	assert.Equal(t, dto.MetricType_COUNTER, mfs["interruptmeter_refreshes_total"].GetType())
	assert.Equal(t, 4.0, value(t, mfs["interruptmeter_refreshes_total"], nil))
	assert.Equal(t, 2.0, value(t, mfs["interruptmeter_parse_faults_total"], nil))
	assert.Equal(t, 1773565200.0, value(t, mfs["interruptmeter_last_refresh_timestamp_seconds"], nil))
	assert.Equal(t, 1.0, value(t, mfs["interruptmeter_ws_clients"], nil))
}

func TestFamilies_NoRefreshYet(t *testing.T) {
	s := sample(t)
	s.Stats = meter.Stats{}
	for _, mf := range Families(s) {
		if mf.GetName() == "interruptmeter_last_refresh_timestamp_seconds" {
			assert.Equal(t, 0.0, mf.GetMetric()[0].GetGauge().GetValue())
			return
		}
	}
	t.Fatal("last refresh family missing")
}

func TestHandler_CollectError(t *testing.T) {
	rr, _ := scrape(t, Handler(func() (Sample, error) { return Sample{}, errors.New("store down") }))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := Handler(func() (Sample, error) { return Sample{}, nil })
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
