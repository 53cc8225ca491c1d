// Package metrics exposes the meter state in the Prometheus text format at
// GET /metrics.
//
// Families:
//
//	interruptmeter_streak_days{track}                       gauge
//	interruptmeter_streak_record_days{track}                gauge
//	interruptmeter_iteration_points{iteration,category}     gauge
//	interruptmeter_refreshes_total                          counter
//	interruptmeter_parse_faults_total                       counter
//	interruptmeter_last_refresh_timestamp_seconds           gauge
//	interruptmeter_ws_clients                               gauge
//
// Families are built as client_model protos on every scrape and written
// with expfmt; there is no registry. A scrape observes both streaks, like
// any other status query.
package metrics
