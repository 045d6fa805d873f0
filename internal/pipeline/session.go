// Package pipeline drives one legal research session through its phases:
// intake, strategy, summarizer, research, synthesis and styling.
//
// Each phase is one model call with its own persona prompt. A phase advances
// when the reply carries that phase's completion tag; phase changes are
// chained with hidden synthetic user turns so the model always sees the
// latest ledger.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lawgpt/internal/ledger"
	"lawgpt/internal/llm_client"
	"lawgpt/internal/logger"
	"lawgpt/internal/metrics"
	"lawgpt/internal/prompts"
	"lawgpt/internal/search"
	"lawgpt/internal/transport"
)

const DefaultMaxPhaseAttempts = 3

// MaxTasks is the number of research tasks kept from a strategy reply.
const MaxTasks = 2

// Sender is satisfied by *transport.Client.
type Sender interface {
	Send(ctx context.Context, messages []llm_client.Message) (transport.Reply, error)
}

// Archive stores finished runs.
type Archive interface {
	SaveRun(ctx context.Context, run Run) error
}

type Options struct {
	MaxPhaseAttempts int
	Prompts          *prompts.Set
	Searcher         search.Searcher
	Observer         Observer
	Archive          Archive
}

func (o Options) withDefaults() Options {
	if o.MaxPhaseAttempts <= 0 {
		o.MaxPhaseAttempts = DefaultMaxPhaseAttempts
	}
	if o.Prompts == nil {
		o.Prompts = prompts.Default()
	}
	if o.Searcher == nil {
		o.Searcher = search.NewSimulated()
	}
	return o
}

type Session struct {
	ID string

	// mu serializes Submit and Reset: one model call in flight per session.
	mu sync.Mutex

	sender Sender
	opts   Options
	ledger *ledger.Ledger

	stateMu  sync.RWMutex
	state    State
	question string
	metrics  *metrics.SessionMetrics
}

// NewSession returns a session seeded with the greeting and waiting in
// intake. An empty id gets a generated one.
func NewSession(id string, sender Sender, opts Options) *Session {
	if id == "" {
		id = uuid.New().String()[:8]
	}
	s := &Session{
		ID:     id,
		sender: sender,
		opts:   opts.withDefaults(),
		ledger: ledger.New(),
	}
	s.reset()
	return s
}

// Submit records a real user message and drives the session until it needs
// more user input or finishes.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if !s.mu.TryLock() {
		return ErrSessionBusy
	}
	defer s.mu.Unlock()

	if s.State().Phase == PhaseIdle {
		return ErrSessionFinished
	}

	s.stateMu.Lock()
	if s.question == "" {
		s.question = text
	}
	s.stateMu.Unlock()

	if err := s.appendMessage(ledger.Message{Role: ledger.RoleUser, Content: text, DisplayInChat: true}); err != nil {
		return err
	}
	logger.Log.Infow("user message received", "session", s.ID, "phase", s.State().Phase)
	return s.run(ctx)
}

// Reset starts the session over: one greeting message, phase intake, no tasks.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	logger.Log.Infow("session reset", "session", s.ID)
	s.emit(Event{Kind: EventPhase, Phase: PhaseIntake, SubPhase: SubIdle})
}

func (s *Session) reset() {
	s.ledger.Reset(ledger.Message{
		Role:          ledger.RoleAssistant,
		Content:       s.opts.Prompts.Greeting,
		DisplayInChat: true,
	})
	s.stateMu.Lock()
	s.state = State{Phase: PhaseIntake, SubPhase: SubIdle}
	s.question = ""
	s.metrics = &metrics.SessionMetrics{SessionID: s.ID, Start: time.Now()}
	s.stateMu.Unlock()
}

func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state.clone()
}

// Messages returns the full ledger, hidden turns included.
func (s *Session) Messages() []ledger.Message { return s.ledger.Snapshot() }

// Visible returns the messages meant for the chat view.
func (s *Session) Visible() []ledger.Message { return s.ledger.Visible() }

func (s *Session) Metrics() *metrics.SessionMetrics {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.metrics.Clone()
}

func (s *Session) Question() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.question
}

func (s *Session) update(fn func(*State)) {
	s.stateMu.Lock()
	fn(&s.state)
	s.stateMu.Unlock()
}

func (s *Session) setPhase(p Phase) {
	s.update(func(st *State) {
		st.Phase = p
		st.SubPhase = SubIdle
	})
	logger.Log.Infow("phase changed", "session", s.ID, "phase", p)
	s.emit(Event{Kind: EventPhase, Phase: p, SubPhase: SubIdle})
}

func (s *Session) setSubPhase(sp SubPhase) {
	s.update(func(st *State) { st.SubPhase = sp })
	logger.Log.Debugw("sub-phase changed", "session", s.ID, "sub_phase", sp)
}

func (s *Session) setStatus(text string) {
	s.update(func(st *State) { st.Status = text })
	s.emit(Event{Kind: EventStatus, Text: text})
}

func (s *Session) appendMessage(m ledger.Message) error {
	if err := s.ledger.Append(m); err != nil {
		return err
	}
	if m.DisplayInChat {
		msg := m
		s.emit(Event{Kind: EventMessage, Message: &msg, Text: m.Content})
	}
	return nil
}

// synthetic appends a hidden user turn that drives the next call.
func (s *Session) synthetic(text string) error {
	return s.appendMessage(ledger.Message{Role: ledger.RoleUser, Content: text})
}

func (s *Session) emit(e Event) {
	if s.opts.Observer == nil {
		return
	}
	e.SessionID = s.ID
	if e.Phase == "" || e.SubPhase == "" {
		st := s.State()
		if e.Phase == "" {
			e.Phase = st.Phase
		}
		if e.SubPhase == "" {
			e.SubPhase = st.SubPhase
		}
	}
	s.opts.Observer(e)
}
