package api

import (
	"fmt"
	"sort"

	"github.com/interruptmeter/interruptmeter/server/internal/meter"
	"github.com/interruptmeter/interruptmeter/server/internal/streak"
)

// DiagnosticHint is one short observation shown under the dashboard charts.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level  string `json:"level"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	// Value is an optional number associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// diagState is what computeDiagnostics looks at.
type diagState struct {
	streaks  streak.Report
	current  meter.Totals
	previous meter.Totals
	stats    meter.Stats
	// lastFaults is the number of stories skipped by the most recent
	// refresh of this process; -1 before the first one.
	lastFaults int
}

// computeDiagnostics derives hints from the dashboard state, critical first.
func computeDiagnostics(s diagState) []DiagnosticHint {
	var hints []DiagnosticHint

	tracks := []struct {
		name string
		st   streak.Status
	}{
		{"outage", s.streaks.Outage},
		{"hotfix", s.streaks.Hotfix},
	}
	for _, tr := range tracks {
		days := float64(tr.st.Current)
		switch {
		case tr.st.Current == 0:
			hints = append(hints, DiagnosticHint{
				Key:   tr.name + "_today",
				Level: "warning",
				Title: fmt.Sprintf("%s today", title(tr.name)),
				Detail: fmt.Sprintf("The %s counter was reset today. "+
					"The record of %d days is kept.", tr.name, tr.st.Max),
				Value: &days,
			})
		case tr.st.Current == tr.st.Max:
			hints = append(hints, DiagnosticHint{
				Key:    tr.name + "_record",
				Level:  "ok",
				Title:  fmt.Sprintf("%s record", title(tr.name)),
				Detail: fmt.Sprintf("%d %s-free days is the longest run so far.", tr.st.Current, tr.name),
				Value:  &days,
			})
		}
	}

	if s.stats.Refreshes == 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "no_refresh",
			Level: "info",
			Title: "No refresh yet",
			Detail: "Iteration totals come from the store and have not been " +
				"recomputed since the server started. Push stories to " +
				"POST /api/v1/iterations to update them.",
		})
	}

	if s.lastFaults > 0 {
		v := float64(s.lastFaults)
		hints = append(hints, DiagnosticHint{
			Key:   "parse_faults",
			Level: "warning",
			Title: fmt.Sprintf("%d stories skipped", s.lastFaults),
			Detail: "The last refresh dropped stories whose creation time " +
				"could not be read. The totals exclude them.",
			Value: &v,
		})
	}

	cur, prev := s.current.Sum(), s.previous.Sum()
	if prev > 0 && cur > prev {
		pct := float64(cur-prev) / float64(prev) * 100
		level := "info"
		if pct >= 50 {
			level = "warning"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "interrupts_up",
			Level: level,
			Title: fmt.Sprintf("Interrupts up %.0f%%", pct),
			Detail: fmt.Sprintf("%d interrupt points so far this iteration "+
				"against %d in the last one.", cur, prev),
			Value: &pct,
		})
	}

	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "all_clear",
			Level:  "ok",
			Title:  "All clear",
			Detail: "No event today, no skipped stories and interrupts are not above the last iteration.",
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}

func title(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
