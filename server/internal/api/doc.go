// Package api implements the HTTP JSON API of the interrupt meter.
//
// New(meterService, streakTracker, guard) returns a Handler that serves:
//
//	GET  /api/v1/status      current streak and record per track; observes both
//	POST /api/v1/reset       {"track":"outage"|"hotfix"}: anchor the track to today
//	GET  /api/v1/iterations  current vs previous totals, {"done":[[0,n],[1,m]],...}
//	POST /api/v1/iterations  JSON story array (or XML export) -> recompute totals
//	GET  /api/v1/setup       stored cycle dates, anchors and records
//	POST /api/v1/setup       edit any of them; records may only go up
//	GET  /api/v1/dashboard   status + iterations + diagnostics in one document
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for other methods
//   - Run POST requests through the guard middleware (API key)
//
// Domain errors map to status codes: future anchors and record decreases
// are 409, storage failures 503, anything else 500.
package api
