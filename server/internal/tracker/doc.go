// Package tracker turns raw story entries from the issue tracker into
// StoryRecords.
//
// DecodeXML and DecodeJSON read raw entries from the tracker's XML export
// or a JSON array. A JSON element that fails to decode becomes a ParseFault
// with Field "record" and the rest of the batch is kept. Parse normalises them: an unparseable created_at drops
// the entry and yields a ParseFault; a missing, non-positive or non-integer
// estimate counts as one point.
package tracker
