// Package streak counts days since the last outage and the last hotfix and
// keeps the all-time record of each.
//
// Observe is called on every status query: it recomputes the streak and,
// when the streak beats the record, persists the new record. Records never
// decrease. Reset moves a track's anchor to today without touching its
// record or the other track.
package streak
