// Package cli implements the interruptmeter command line.
//
//	interruptmeter serve                      run the HTTP API, /metrics and /ws/stream
//	interruptmeter status                     print both streaks (observes them)
//	interruptmeter reset <outage|hotfix>      anchor a track to today
//	interruptmeter refresh --file stories.json|.xml
//	interruptmeter setup [--current D] [--previous D] [--outage D] [--hotfix D]
//	                     [--outage-record N] [--hotfix-record N]
//
// Global flags: --config (default config.yaml; a missing default file means
// built-in defaults), --env-file (default .env) and --debug. Every command
// opens the configured store and seeds keys that are still missing.
// Command output is indented JSON on stdout; logs go to stderr, except for
// serve which logs to stdout.
package cli
