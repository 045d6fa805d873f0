package supervisor

import (
	"lawgpt/internal/metrics"
	"lawgpt/internal/pipeline"
)

const (
	StatusAwaitingInput = "AWAITING_INPUT"
	StatusSucceeded     = "SUCCEEDED"
	StatusFailed        = "FAILED"
)

type SessionResult struct {
	SessionID string                  `json:"session_id"`
	Question  string                  `json:"question"`
	Status    string                  `json:"status"`
	FinalHTML string                  `json:"final_html,omitempty"`
	Fragments []pipeline.Fragment     `json:"fragments,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Metrics   *metrics.SessionMetrics `json:"metrics,omitempty"`
}

// ResultOf summarizes where session s stands after a submit that returned err.
func ResultOf(s *pipeline.Session, err error) SessionResult {
	st := s.State()
	r := SessionResult{
		SessionID: s.ID,
		Question:  s.Question(),
		FinalHTML: st.FinalHTML,
		Fragments: st.Fragments,
		Metrics:   s.Metrics(),
	}
	switch {
	case err != nil:
		r.Status = StatusFailed
		r.Error = err.Error()
	case st.Done():
		r.Status = StatusSucceeded
	case st.Phase == pipeline.PhaseIdle:
		r.Status = StatusFailed
		r.Error = st.Err
	default:
		r.Status = StatusAwaitingInput
	}
	return r
}
