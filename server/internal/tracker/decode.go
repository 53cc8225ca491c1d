package tracker

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/interruptmeter/interruptmeter/pkg/types"
)

type xmlStories struct {
	Stories []types.RawStory `xml:"story"`
}

// DecodeXML reads a tracker story export: a <stories> root holding
// <story> elements with id, name, current_state, estimate and created_at.
func DecodeXML(r io.Reader) ([]types.RawStory, error) {
	var doc xmlStories
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("tracker: decode xml: %w", err)
	}
	return doc.Stories, nil
}

// maxFaultValue bounds how much of an undecodable element a fault quotes.
const maxFaultValue = 120

// DecodeJSON reads a JSON array of raw stories. Only a body that is not a
// JSON array is an error. An element that does not decode as a story is
// dropped and reported as a ParseFault with Field "record"; the rest of the
// array is returned.
func DecodeJSON(r io.Reader) ([]types.RawStory, []ParseFault, error) {
	var elems []json.RawMessage
	if err := json.NewDecoder(r).Decode(&elems); err != nil {
		return nil, nil, fmt.Errorf("tracker: decode json: %w", err)
	}

	out := make([]types.RawStory, 0, len(elems))
	var faults []ParseFault
	for i, elem := range elems {
		var rs types.RawStory
		if err := json.Unmarshal(elem, &rs); err != nil {
			f := ParseFault{
				ID:    elementID(elem, i),
				Field: "record",
				Value: truncate(string(elem), maxFaultValue),
				Err:   err,
			}
			slog.Warn("tracker: skipping undecodable story", "id", f.ID, "index", i, "err", err)
			faults = append(faults, f)
			continue
		}
		out = append(out, rs)
	}
	return out, faults, nil
}

// elementID returns the element's "id" when it is a string or number, or
// its array position otherwise.
func elementID(elem json.RawMessage, index int) string {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(elem, &head) == nil && len(head.ID) > 0 {
		var s string
		if json.Unmarshal(head.ID, &s) == nil {
			return s
		}
		var n json.Number
		if json.Unmarshal(head.ID, &n) == nil {
			return n.String()
		}
	}
	return "#" + strconv.Itoa(index)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
