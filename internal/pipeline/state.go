package pipeline

import (
	"errors"
	"time"

	"lawgpt/internal/ledger"
	"lawgpt/internal/metrics"
)

type Phase string

const (
	PhaseIntake     Phase = "intake"
	PhaseStrategy   Phase = "strategy"
	PhaseSummarizer Phase = "summarizer"
	PhaseResearch   Phase = "research"
	PhaseSynthesis  Phase = "synthesis"
	PhaseStyling    Phase = "styling"
	PhaseIdle       Phase = "idle"
)

type SubPhase string

const (
	SubIdle               SubPhase = "idle"
	SubSendingTask        SubPhase = "sending_task_to_researcher"
	SubAwaitingResearch   SubPhase = "awaiting_research_response"
	SubSendingToValidator SubPhase = "sending_research_to_validator"
	SubAwaitingValidation SubPhase = "awaiting_validation_response"
	SubWebSearching       SubPhase = "web_searching"
	SubWebSearchDone      SubPhase = "web_search_done"
)

var (
	ErrPhaseStalled    = errors.New("phase made no progress")
	ErrSessionFinished = errors.New("session is finished, start a new one")
	ErrSessionBusy     = errors.New("session is already processing a message")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrAwaitingInput   = errors.New("intake still needs more information")
)

// Fragment is the outcome of researching one task.
type Fragment struct {
	Task   string                  `json:"task"`
	Result string                  `json:"result"`
	Status ledger.ValidationStatus `json:"status"`
}

type State struct {
	Phase     Phase      `json:"phase"`
	SubPhase  SubPhase   `json:"sub_phase"`
	Tasks     []string   `json:"tasks"`
	TaskIndex int        `json:"task_index"`
	Summary   string     `json:"summary,omitempty"`
	Brief     string     `json:"brief,omitempty"`
	Fragments []Fragment `json:"fragments,omitempty"`
	FinalHTML string     `json:"final_html,omitempty"`
	Status    string     `json:"status,omitempty"`
	Loading   bool       `json:"loading"`
	Err       string     `json:"error,omitempty"`
}

func (s State) clone() State {
	s.Tasks = append([]string(nil), s.Tasks...)
	s.Fragments = append([]Fragment(nil), s.Fragments...)
	return s
}

// Done reports whether the session reached its final brief.
func (s State) Done() bool {
	return s.Phase == PhaseIdle && s.FinalHTML != ""
}

// Run is the record handed to an Archive when a session finishes.
type Run struct {
	SessionID string                  `json:"session_id"`
	Question  string                  `json:"question"`
	Summary   string                  `json:"summary"`
	Tasks     []string                `json:"tasks"`
	Fragments []Fragment              `json:"fragments"`
	Brief     string                  `json:"brief"`
	FinalHTML string                  `json:"final_html"`
	Metrics   *metrics.SessionMetrics `json:"metrics,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

type EventKind string

const (
	EventStatus  EventKind = "status"
	EventPhase   EventKind = "phase"
	EventMessage EventKind = "message"
	EventRetry   EventKind = "retry"
	EventError   EventKind = "error"
)

type Event struct {
	SessionID string
	Kind      EventKind
	Phase     Phase
	SubPhase  SubPhase
	Text      string
	Message   *ledger.Message
}

// Observer receives session events synchronously on the goroutine driving the
// session. It must not call back into the session.
type Observer func(Event)
