package metrics

import "time"

type CallMetrics struct {
	Phase      string    `json:"phase"`
	SubPhase   string    `json:"sub_phase,omitempty"`
	Task       int       `json:"task,omitempty"` // 1-based, 0 outside research
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMs int64     `json:"duration_ms"`
	Attempts   int       `json:"attempts"`
	Success    bool      `json:"success"`
	Err        string    `json:"err,omitempty"`
}

type SessionMetrics struct {
	SessionID  string        `json:"session_id"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	DurationMs int64         `json:"duration_ms"`
	Succeeded  bool          `json:"succeeded"`
	Searches   int           `json:"searches"`
	Calls      []CallMetrics `json:"calls"`
}

// Compute derived fields for a call.
func (c *CallMetrics) Finalize() {
	c.DurationMs = c.End.Sub(c.Start).Milliseconds()
}

func (s *SessionMetrics) Finalize() {
	if s.End.IsZero() {
		s.End = time.Now()
	}
	s.DurationMs = s.End.Sub(s.Start).Milliseconds()
}

// TotalAttempts counts transport attempts, retries included.
func (s *SessionMetrics) TotalAttempts() int {
	n := 0
	for _, c := range s.Calls {
		n += c.Attempts
	}
	return n
}

// PhaseTotals sums call durations per phase, in first-seen order.
func (s *SessionMetrics) PhaseTotals() []PhaseTotal {
	var out []PhaseTotal
	idx := map[string]int{}
	for _, c := range s.Calls {
		i, ok := idx[c.Phase]
		if !ok {
			i = len(out)
			idx[c.Phase] = i
			out = append(out, PhaseTotal{Phase: c.Phase})
		}
		out[i].Calls++
		out[i].DurationMs += c.DurationMs
	}
	return out
}

type PhaseTotal struct {
	Phase      string `json:"phase"`
	Calls      int    `json:"calls"`
	DurationMs int64  `json:"duration_ms"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *SessionMetrics) Clone() *SessionMetrics {
	if s == nil {
		return nil
	}
	c := *s
	c.Calls = append([]CallMetrics(nil), s.Calls...)
	return &c
}
