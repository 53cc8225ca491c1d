package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawStory is one story entry as delivered by the retrieval job.
// Field values are kept as text; the server decides what is parseable.
type RawStory struct {
	ID        string    `json:"id" xml:"id"`
	Name      string    `json:"name,omitempty" xml:"name"`
	CreatedAt string    `json:"created_at" xml:"created_at"`
	State     string    `json:"current_state" xml:"current_state"`
	Estimate  *Estimate `json:"estimate,omitempty" xml:"estimate"`
}

// Estimate is the raw point estimate of a story. The tracker emits it as an
// integer, but hand-written payloads often quote it, so JSON strings are
// kept unquoted and any other JSON value is kept as its raw text. Deciding
// whether that is a usable number is left to the parser.
type Estimate string

// UnmarshalJSON never fails on well-formed JSON: strings are unquoted,
// everything else (numbers, booleans, objects) is stored verbatim.
func (e *Estimate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("estimate: %w", err)
		}
		*e = Estimate(s)
		return nil
	}
	*e = Estimate(data)
	return nil
}

// EstimateOf is a convenience for building RawStory values in code.
func EstimateOf(s string) *Estimate {
	e := Estimate(s)
	return &e
}
