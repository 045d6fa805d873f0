// Package supervisor keeps track of concurrent research sessions.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"lawgpt/internal/logger"
	"lawgpt/internal/pipeline"
)

var ErrUnknownSession = errors.New("unknown session")

const (
	resultBuffer     = 100
	batchConcurrency = 4
)

type Manager struct {
	sender pipeline.Sender
	opts   pipeline.Options

	mu       sync.RWMutex
	sessions map[string]*pipeline.Session

	results chan SessionResult
}

// New returns a manager whose sessions share sender and opts.
func New(sender pipeline.Sender, opts pipeline.Options) *Manager {
	return &Manager{
		sender:   sender,
		opts:     opts,
		sessions: make(map[string]*pipeline.Session),
		results:  make(chan SessionResult, resultBuffer),
	}
}

// Results delivers a record every time a session finishes. Records are
// dropped when nobody drains the channel.
func (m *Manager) Results() <-chan SessionResult { return m.results }

func (m *Manager) Start() *pipeline.Session {
	s := pipeline.NewSession("", m.sender, m.opts)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	logger.Log.Infow("session started", "session", s.ID)
	return s
}

func (m *Manager) Get(id string) (*pipeline.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

// IDs lists open sessions in lexical order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Submit forwards text to session id and reports the resulting state.
func (m *Manager) Submit(ctx context.Context, id, text string) (pipeline.State, error) {
	s, err := m.Get(id)
	if err != nil {
		return pipeline.State{}, err
	}
	err = s.Submit(ctx, text)
	if errors.Is(err, pipeline.ErrSessionBusy) || errors.Is(err, pipeline.ErrSessionFinished) || errors.Is(err, pipeline.ErrEmptyMessage) {
		return s.State(), err
	}
	if st := s.State(); st.Phase == pipeline.PhaseIdle {
		m.publish(ResultOf(s, err))
	}
	return s.State(), err
}

func (m *Manager) Reset(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.Reset()
	return nil
}

// Close forgets session id.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	delete(m.sessions, id)
	logger.Log.Infow("session closed", "session", id)
	return nil
}

// RunBatch researches every question in its own session, at most
// concurrency at a time. Per-question failures are reported in the results,
// which keep the order of questions.
func (m *Manager) RunBatch(ctx context.Context, questions []string, concurrency, maxNudges int) ([]SessionResult, error) {
	if concurrency <= 0 {
		concurrency = batchConcurrency
	}
	out := make([]SessionResult, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, q := range questions {
		g.Go(func() (rerr error) {
			s := m.Start()
			defer func() {
				if rec := recover(); rec != nil {
					out[i] = SessionResult{SessionID: s.ID, Question: q, Status: StatusFailed, Error: fmt.Sprintf("panic: %v", rec)}
				}
			}()

			_, err := pipeline.RunToCompletion(gctx, s, q, maxNudges)
			out[i] = ResultOf(s, err)
			if out[i].Question == "" {
				out[i].Question = q
			}
			m.publish(out[i])
			if err != nil {
				logger.Log.Warnw("batch question failed", "session", s.ID, "question", q, "error", err)
			}
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}

func (m *Manager) publish(r SessionResult) {
	select {
	case m.results <- r:
	default:
		logger.Log.Warnw("result channel full, dropping result", "session", r.SessionID)
	}
}
