package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/interruptmeter/interruptmeter/server/internal/config"
)

const userAgent = "interruptmeter-alerts"

// deliver posts a to every webhook with a resolvable URL. Failures are
// logged per target.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			slog.Debug("alerts: webhook url not set", "type", wh.Type, "env", wh.URLEnv)
			continue
		}
		body, err := payload(wh, a)
		if err != nil {
			slog.Warn("alerts: skipping webhook", "type", wh.Type, "err", err)
			continue
		}
		if err := e.post(context.Background(), url, body); err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "rule", a.Rule, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.Rule, "state", a.State)
	}
}

// payload renders a in the body format of the webhook type.
func payload(wh config.WebhookConfig, a *Alert) ([]byte, error) {
	switch wh.Type {
	case "slack":
		return json.Marshal(map[string]string{"text": headline(a)})
	case "teams":
		return json.Marshal(map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": color(a),
			"summary":    a.Rule,
			"title":      "Interrupt meter: " + a.Rule,
			"text":       a.Message,
			"sections": []map[string]any{{
				"facts": []map[string]string{
					{"name": "Track", "value": a.Track},
					{"name": "State", "value": a.State},
					{"name": "Days", "value": strconv.FormatFloat(a.Value, 'f', -1, 64)},
				},
			}},
		})
	case "http":
		return json.Marshal(map[string]any{"alert": a})
	default:
		return nil, fmt.Errorf("unknown webhook type %q", wh.Type)
	}
}

func (e *Engine) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook answered %s", resp.Status)
	}
	return nil
}

// headline is the one-line form used by chat webhooks.
func headline(a *Alert) string {
	if a.State == "resolved" {
		return "*[RESOLVED]* " + a.Message
	}
	switch a.Severity {
	case "critical":
		return "*[CRITICAL]* " + a.Message
	case "warning":
		return "*[WARNING]* " + a.Message
	default:
		return "*[INFO]* " + a.Message
	}
}

func color(a *Alert) string {
	switch {
	case a.State == "resolved":
		return "2EB67D"
	case a.Severity == "critical":
		return "FF4F6A"
	case a.Severity == "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
