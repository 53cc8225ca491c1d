package alerts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/interruptmeter/interruptmeter/server/internal/config"
	"github.com/interruptmeter/interruptmeter/server/internal/streak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// sink records webhook bodies.
type sink struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (s *sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.bodies = append(s.bodies, b)
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *sink) all() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.bodies...)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newEngine(t *testing.T, hookType string, cooldown time.Duration) (*Engine, *sink, *clock) {
	t.Helper()
	s := &sink{}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_ALERT_URL", srv.URL)

	e := New(config.AlertsConfig{
		Cooldown: cooldown,
		Webhooks: []config.WebhookConfig{{Type: hookType, URLEnv: "TEST_ALERT_URL"}},
	})
	t.Cleanup(e.client.CloseIdleConnections)
	c := &clock{t: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)}
	e.now = c.now
	return e, s, c
}

func report(outage, outageMax, hotfix, hotfixMax int) streak.Report {
	return streak.Report{
		Outage: streak.Status{Current: outage, Max: outageMax},
		Hotfix: streak.Status{Current: hotfix, Max: hotfixMax},
	}
}

func TestEvaluate_FiresAndResolves(t *testing.T) {
	e, s, c := newEngine(t, "http", time.Minute)

	e.Evaluate(report(0, 40, 3, 10))
	e.deliveries.Wait()

	active := e.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "outage_today", active[0].Rule)
	assert.Equal(t, "critical", active[0].Severity)
	assert.Equal(t, "firing", active[0].State)
	assert.Equal(t, float64(40), active[0].Value)

	bodies := s.all()
	require.Len(t, bodies, 1)
	var got struct{ Alert Alert }
	require.NoError(t, json.Unmarshal(bodies[0], &got))
	assert.Equal(t, "outage_today", got.Alert.Rule)

	// Still true: no second delivery.
	e.Evaluate(report(0, 40, 3, 10))
	e.deliveries.Wait()
	assert.Len(t, s.all(), 1)

	c.t = c.t.Add(24 * time.Hour)
	e.Evaluate(report(1, 40, 4, 10))
	e.deliveries.Wait()

	active = e.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "resolved", active[0].State)
	require.NotNil(t, active[0].ResolvedAt)
	assert.Len(t, s.all(), 2)
}

func TestEvaluate_RecordRun(t *testing.T) {
	e, _, _ := newEngine(t, "http", time.Minute)

	e.Evaluate(report(12, 12, 3, 10))
	e.deliveries.Wait()

	active := e.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "outage_record", active[0].Rule)
	assert.Equal(t, "info", active[0].Severity)
	assert.Contains(t, active[0].Message, "outage-free streak of 12 days")
}

func TestEvaluate_Cooldown(t *testing.T) {
	e, s, c := newEngine(t, "http", time.Hour)

	e.Evaluate(report(5, 40, 0, 10))
	c.t = c.t.Add(time.Minute)
	e.Evaluate(report(5, 40, 1, 10))
	c.t = c.t.Add(time.Minute)
	e.Evaluate(report(5, 40, 0, 10))
	e.deliveries.Wait()

	assert.Len(t, s.all(), 2, "fire and resolve only; the re-fire is inside the cooldown")

	c.t = c.t.Add(2 * time.Hour)
	e.Evaluate(report(5, 40, 0, 10))
	e.deliveries.Wait()
	assert.Len(t, s.all(), 3)
}

func TestSlackPayload(t *testing.T) {
	e, s, _ := newEngine(t, "slack", time.Minute)

	e.Evaluate(report(5, 40, 0, 10))
	e.deliveries.Wait()

	bodies := s.all()
	require.Len(t, bodies, 1)
	var msg map[string]string
	require.NoError(t, json.Unmarshal(bodies[0], &msg))
	assert.Equal(t, "*[WARNING]* hotfix recorded today, the record stays at 10 days", msg["text"])
}

func TestDeliver_SkipsUnsetURL(t *testing.T) {
	e := New(config.AlertsConfig{
		Webhooks: []config.WebhookConfig{{Type: "slack", URLEnv: "TEST_ALERT_URL_UNSET"}},
	})
	e.Evaluate(report(0, 1, 1, 1))
	e.deliveries.Wait()
	assert.NotEmpty(t, e.Active())
}

func TestRun_TriggerAndCancel(t *testing.T) {
	e, _, _ := newEngine(t, "http", time.Minute)

	var mu sync.Mutex
	rep := report(5, 40, 3, 10)
	src := func() (streak.Report, error) {
		mu.Lock()
		defer mu.Unlock()
		return rep, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx, time.Hour, src)
		close(done)
	}()

	mu.Lock()
	rep = report(0, 40, 3, 10)
	mu.Unlock()
	e.Trigger()

	assert.Eventually(t, func() bool { return len(e.Active()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServeHTTP(t *testing.T) {
	e, _, _ := newEngine(t, "http", time.Minute)
	e.Evaluate(report(0, 40, 3, 10))
	e.deliveries.Wait()

	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var got []Alert
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "outage_today", got[0].Rule)

	rr = httptest.NewRecorder()
	e.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/alerts", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestPayload_Teams(t *testing.T) {
	a := &Alert{Rule: "outage_today", Track: "outage", Severity: "critical",
		Message: "outage recorded today", Value: 40, State: "firing"}

	body, err := payload(config.WebhookConfig{Type: "teams"}, a)
	require.NoError(t, err)

	var card struct {
		ThemeColor string `json:"themeColor"`
		Title      string `json:"title"`
		Sections   []struct {
			Facts []struct{ Name, Value string } `json:"facts"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(body, &card))
	assert.Equal(t, "FF4F6A", card.ThemeColor)
	assert.Equal(t, "Interrupt meter: outage_today", card.Title)
	require.Len(t, card.Sections, 1)
	assert.Contains(t, card.Sections[0].Facts, struct{ Name, Value string }{"Days", "40"})

	a.State = "resolved"
	body, err = payload(config.WebhookConfig{Type: "slack"}, a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"*[RESOLVED]* outage recorded today"}`, string(body))

	_, err = payload(config.WebhookConfig{Type: "pagerduty"}, a)
	assert.Error(t, err)
}
