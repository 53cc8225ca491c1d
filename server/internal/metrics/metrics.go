package metrics

import (
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/interruptmeter/interruptmeter/server/internal/meter"
	"github.com/interruptmeter/interruptmeter/server/internal/streak"
)

const namespace = "interruptmeter_"

// Sample is the state one scrape reports.
type Sample struct {
	Streaks    streak.Report
	Iterations meter.Series
	Stats      meter.Stats
	Clients    int
}

// Families converts s into metric families in a fixed order.
func Families(s Sample) []*dto.MetricFamily {
	days := gauge("streak_days", "Days since the last event on the track.")
	record := gauge("streak_record_days", "Longest streak ever observed on the track.")
	for _, tr := range []struct {
		track streak.Track
		st    streak.Status
	}{
		{streak.Outage, s.Streaks.Outage},
		{streak.Hotfix, s.Streaks.Hotfix},
	} {
		days.Metric = append(days.Metric, gaugeMetric(float64(tr.st.Current), label("track", string(tr.track))))
		record.Metric = append(record.Metric, gaugeMetric(float64(tr.st.Max), label("track", string(tr.track))))
	}

	points := gauge("iteration_points", "Interrupt story points per iteration and category.")
	for _, e := range s.Iterations {
		cat := label("category", string(e.Category))
		points.Metric = append(points.Metric,
			gaugeMetric(float64(e.Points[meter.TagCurrent][1]), label("iteration", "current"), cat),
			gaugeMetric(float64(e.Points[meter.TagPrevious][1]), label("iteration", "previous"), cat),
		)
	}

	refreshes := counter("refreshes_total", "Completed iteration refreshes since start.", float64(s.Stats.Refreshes))
	faults := counter("parse_faults_total", "Stories skipped for unparseable fields since start.", float64(s.Stats.ParseFaults))

	var last float64
	if !s.Stats.LastRefresh.IsZero() {
		last = float64(s.Stats.LastRefresh.UnixNano()) / 1e9
	}
	lastRefresh := gauge("last_refresh_timestamp_seconds", "Unix time of the last refresh, 0 if none.")
	lastRefresh.Metric = append(lastRefresh.Metric, gaugeMetric(last))

	clients := gauge("ws_clients", "Connected dashboard WebSocket clients.")
	clients.Metric = append(clients.Metric, gaugeMetric(float64(s.Clients)))

	return []*dto.MetricFamily{days, record, points, refreshes, faults, lastRefresh, clients}
}

// Handler serves the families of a fresh sample on every request.
func Handler(collect func() (Sample, error)) http.Handler {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s, err := collect()
		if err != nil {
			slog.Error("metrics: collect failed", "err", err)
			http.Error(w, "collect: "+err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", string(format))
		enc := expfmt.NewEncoder(w, format)
		for _, mf := range Families(s) {
			if len(mf.Metric) == 0 {
				continue // the text format has no empty families
			}
			if err := enc.Encode(mf); err != nil {
				slog.Warn("metrics: encode failed", "family", mf.GetName(), "err", err)
				return
			}
		}
	})
}

func ptr[T any](v T) *T { return &v }

func gauge(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: ptr(namespace + name),
		Help: ptr(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(namespace + name),
		Help:   ptr(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: ptr(v)}}},
	}
}

func gaugeMetric(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: ptr(v)}}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: ptr(name), Value: ptr(value)}
}
