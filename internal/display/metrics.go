package display

import (
	"fmt"
	"strings"

	"lawgpt/internal/metrics"
)

func FormatSessionMetrics(sm *metrics.SessionMetrics) string {
	if sm == nil {
		return "No metrics available."
	}
	var sb strings.Builder
	sb.WriteString("Session metrics:\n")
	sb.WriteString(fmt.Sprintf("- Total: %d ms  (success=%v, calls=%d, attempts=%d, searches=%d)\n",
		sm.DurationMs, sm.Succeeded, len(sm.Calls), sm.TotalAttempts(), sm.Searches))
	for _, p := range sm.PhaseTotals() {
		sb.WriteString(fmt.Sprintf("  %-12s %2d call(s) %7d ms\n", p.Phase, p.Calls, p.DurationMs))
	}
	for _, c := range sm.Calls {
		if c.Success {
			continue
		}
		sb.WriteString(fmt.Sprintf("    • %s failed after %d attempt(s): %s\n", c.Phase, c.Attempts, c.Err))
	}
	return sb.String()
}
