package api

import (
	"github.com/interruptmeter/interruptmeter/server/internal/meter"
	"github.com/interruptmeter/interruptmeter/server/internal/streak"
)

// ResetRequest is the body of POST /api/v1/reset.
type ResetRequest struct {
	Track string `json:"track"` // outage | hotfix
}

// ResetResponse is the payload for POST /api/v1/reset.
type ResetResponse struct {
	Status string        `json:"status"`
	Track  string        `json:"track"`
	Date   string        `json:"date"` // YYYY-MM-DD
	Streak streak.Status `json:"streak"`
}

// FaultResponse is one story skipped by a refresh.
type FaultResponse struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Value string `json:"value"`
	Error string `json:"error"`
}

// RefreshResponse is the payload for POST /api/v1/iterations.
type RefreshResponse struct {
	RunID            string             `json:"run_id"`
	CurrentIteration string             `json:"current_iteration"`
	LastIteration    string             `json:"last_iteration"`
	Counts           meter.BucketCounts `json:"counts"`
	Current          meter.Totals       `json:"current"`
	Previous         meter.Totals       `json:"previous"`
	Older            meter.Totals       `json:"older"`
	Faults           []FaultResponse    `json:"faults"`
}

// SetupResponse is the payload for GET and POST /api/v1/setup.
type SetupResponse struct {
	CurrentIteration string `json:"current_iteration"`
	LastIteration    string `json:"last_iteration"`
	LastOutage       string `json:"last_outage"`
	LastHotfix       string `json:"last_hotfix"`
	MaxOutage        int    `json:"max_outage"`
	MaxHotfix        int    `json:"max_hotfix"`
}

// SetupRequest is the body of POST /api/v1/setup. Omitted fields keep
// their stored value. Dates are YYYY-MM-DD.
type SetupRequest struct {
	CurrentIteration *string `json:"current_iteration,omitempty"`
	LastIteration    *string `json:"last_iteration,omitempty"`
	LastOutage       *string `json:"last_outage,omitempty"`
	LastHotfix       *string `json:"last_hotfix,omitempty"`
	MaxOutage        *int    `json:"max_outage,omitempty"`
	MaxHotfix        *int    `json:"max_hotfix,omitempty"`
}

// DashboardResponse is everything the dashboard page renders. It is the
// payload of GET /api/v1/dashboard and of every WebSocket push.
type DashboardResponse struct {
	Streaks          streak.Report    `json:"streaks"`
	Iterations       meter.Series     `json:"iterations"`
	CurrentIteration string           `json:"current_iteration"`
	LastIteration    string           `json:"last_iteration"`
	Diagnostics      []DiagnosticHint `json:"diagnostics"`
	GeneratedAt      string           `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
