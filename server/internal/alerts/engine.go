package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/interruptmeter/interruptmeter/server/internal/config"
	"github.com/interruptmeter/interruptmeter/server/internal/streak"
)

const (
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert represents a single alert event produced by the engine.
type Alert struct {
	ID         string     `json:"id"`
	Rule       string     `json:"rule"`
	Track      string     `json:"track"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// condition is one rule evaluated against a streak report.
type condition struct {
	rule     string
	track    streak.Track
	severity string
	fires    bool
	value    float64
	message  string
}

func conditions(rep streak.Report) []condition {
	var out []condition
	for _, tr := range []struct {
		track    streak.Track
		st       streak.Status
		severity string
	}{
		{streak.Outage, rep.Outage, "critical"},
		{streak.Hotfix, rep.Hotfix, "warning"},
	} {
		out = append(out,
			condition{
				rule:     string(tr.track) + "_today",
				track:    tr.track,
				severity: tr.severity,
				fires:    tr.st.Current == 0,
				value:    float64(tr.st.Max),
				message: fmt.Sprintf("%s recorded today, the record stays at %d days",
					tr.track, tr.st.Max),
			},
			condition{
				rule:     string(tr.track) + "_record",
				track:    tr.track,
				severity: "info",
				fires:    tr.st.Current > 0 && tr.st.Current >= tr.st.Max,
				value:    float64(tr.st.Current),
				message:  fmt.Sprintf("%s-free streak of %d days is a new record", tr.track, tr.st.Current),
			},
		)
	}
	return out
}

// Engine evaluates streak reports and delivers webhook notifications when
// an alert fires or resolves.
//
// Engine is safe for concurrent use.
type Engine struct {
	webhooks []config.WebhookConfig
	cooldown time.Duration

	mu       sync.Mutex
	active   map[string]*Alert    // key: rule name
	lastFire map[string]time.Time // for cooldown
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time

	trigger    chan struct{}
	deliveries sync.WaitGroup
}

// New creates an Engine from the alerts configuration. An Engine without
// webhooks still tracks alerts for Active.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		webhooks: cfg.Webhooks,
		cooldown: cfg.Cooldown,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
}

// Evaluate tests every rule against rep. Alerts that fire are stored and
// delivered asynchronously; firing alerts whose condition cleared are
// resolved and delivered too.
func (e *Engine) Evaluate(rep streak.Report) {
	now := e.now()
	for _, c := range conditions(rep) {
		e.mu.Lock()
		a, firing := e.active[c.rule]

		switch {
		case c.fires && !firing:
			if last, ok := e.lastFire[c.rule]; ok && now.Sub(last) < e.cooldown {
				e.mu.Unlock()
				continue
			}
			a = &Alert{
				ID:       fmt.Sprintf("%s:%d", c.rule, now.UnixNano()),
				Rule:     c.rule,
				Track:    string(c.track),
				Severity: c.severity,
				Message:  c.message,
				Value:    c.value,
				FiredAt:  now,
				State:    "firing",
			}
			e.active[c.rule] = a
			e.lastFire[c.rule] = now
			cp := *a
			e.mu.Unlock()

			slog.Warn("alerts: fired", "rule", c.rule, "severity", c.severity, "value", c.value)
			e.send(&cp)

		case !c.fires && firing:
			resolved := now
			a.State = "resolved"
			a.ResolvedAt = &resolved
			delete(e.active, c.rule)

			e.history = append(e.history, a)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			cp := *a
			e.mu.Unlock()

			slog.Info("alerts: resolved", "rule", c.rule)
			e.send(&cp)

		default:
			e.mu.Unlock()
		}
	}
}

func (e *Engine) send(a *Alert) {
	e.deliveries.Add(1)
	go func() {
		defer e.deliveries.Done()
		e.deliver(a)
	}()
}

// Active returns copies of all firing alerts plus alerts resolved within
// the past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Trigger asks Run for an evaluation ahead of the next tick. It never blocks.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run evaluates src every interval and on Trigger until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration, src func() (streak.Report, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	eval := func() {
		rep, err := src()
		if err != nil {
			slog.Warn("alerts: read streaks failed", "err", err)
			return
		}
		e.Evaluate(rep)
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			e.deliveries.Wait()
			return
		case <-ticker.C:
			eval()
		case <-e.trigger:
			eval()
		}
	}
}

// ServeHTTP answers GET with Active as JSON.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"}) //nolint:errcheck
		return
	}
	if err := json.NewEncoder(w).Encode(e.Active()); err != nil {
		slog.Warn("alerts: encode response failed", "err", err)
	}
}
