// Package alerts raises alerts from streak state and delivers them to
// webhooks. An alert fires when an outage or hotfix is recorded today and
// when a streak reaches its record; it resolves once the condition clears.
package alerts
