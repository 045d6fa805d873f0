package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lawgpt/internal/ledger"
	"lawgpt/internal/llm_client"
	"lawgpt/internal/logger"
	"lawgpt/internal/metrics"
	"lawgpt/internal/tags"
	"lawgpt/internal/transport"
)

const (
	turnStartStrategy  = "Proceed with strategy formulation."
	turnStartSummarize = "Summarize the research requirements based on the generated tasks."
	briefHeader        = "Synthesized Legal Brief to Style:\n"

	statusComplete   = "Research complete!"
	statusCommFailed = "🚨 AI communication failed. Please check the logs for details."
	statusStalled    = "🚨 The AI did not follow the research protocol. Please start a new session."
)

// run advances the session until it waits for user input or reaches idle.
func (s *Session) run(ctx context.Context) error {
	s.update(func(st *State) {
		st.Loading = true
		st.Err = ""
	})
	defer s.update(func(st *State) { st.Loading = false })

	attempts := 0
	for {
		phase := s.State().Phase
		var (
			advanced bool
			err      error
		)
		switch phase {
		case PhaseIdle:
			return nil
		case PhaseIntake:
			var waiting bool
			waiting, err = s.intake(ctx)
			if err == nil && waiting {
				return nil
			}
			advanced = true
		case PhaseStrategy:
			advanced, err = s.strategy(ctx)
		case PhaseSummarizer:
			advanced, err = s.summarize(ctx)
		case PhaseResearch:
			err = s.research(ctx)
			advanced = true
		case PhaseSynthesis:
			advanced, err = s.synthesize(ctx)
		case PhaseStyling:
			advanced, err = s.style(ctx)
		default:
			err = fmt.Errorf("unknown phase %q", phase)
		}
		if err != nil {
			return s.fail(err)
		}
		if advanced {
			attempts = 0
			continue
		}

		attempts++
		if attempts >= s.opts.MaxPhaseAttempts {
			return s.fail(fmt.Errorf("%w: %s after %d attempts", ErrPhaseStalled, phase, attempts))
		}
		logger.Log.Warnw("reply missing completion tag, re-invoking phase",
			"session", s.ID, "phase", phase, "attempt", attempts, "max_attempts", s.opts.MaxPhaseAttempts)
	}
}

func (s *Session) intake(ctx context.Context) (bool, error) {
	text, t, err := s.call(ctx, s.opts.Prompts.Intake, s.history())
	if err != nil {
		return false, err
	}
	if t.Equal("intake_status", "done") {
		if err := s.synthetic(turnStartStrategy); err != nil {
			return false, err
		}
		s.setPhase(PhaseStrategy)
		return false, nil
	}
	if cleaned := tags.Strip(text); cleaned != "" {
		if err := s.appendMessage(ledger.Message{Role: ledger.RoleAssistant, Content: cleaned, DisplayInChat: true}); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *Session) strategy(ctx context.Context) (bool, error) {
	text, t, err := s.call(ctx, s.opts.Prompts.Strategy, s.history())
	if err != nil {
		return false, err
	}
	tasks := ClampTasks(t["tasks"], MaxTasks)
	if len(tasks) == 0 {
		return false, nil
	}
	if err := s.appendHidden(text); err != nil {
		return false, err
	}
	s.update(func(st *State) {
		st.Tasks = tasks
		st.TaskIndex = 0
	})
	logger.Log.Infow("research tasks planned", "session", s.ID, "tasks", tasks)
	if err := s.synthetic(turnStartSummarize); err != nil {
		return false, err
	}
	s.setPhase(PhaseSummarizer)
	return true, nil
}

func (s *Session) summarize(ctx context.Context) (bool, error) {
	text, t, err := s.call(ctx, s.opts.Prompts.Summarizer, s.history())
	if err != nil {
		return false, err
	}
	if !t.Equal("summary_status", "finalized") {
		return false, nil
	}
	if err := s.appendHidden(text); err != nil {
		return false, err
	}
	s.update(func(st *State) { st.Summary = tags.Strip(text) })
	s.setPhase(PhaseResearch)
	return true, nil
}

func (s *Session) synthesize(ctx context.Context) (bool, error) {
	text, t, err := s.call(ctx, s.opts.Prompts.Synthesis, s.history())
	if err != nil {
		return false, err
	}
	if !t.Equal("synthesis_status", "done") {
		return false, nil
	}
	brief := tags.Strip(text)
	s.update(func(st *State) { st.Brief = brief })
	if err := s.synthetic(briefHeader + brief); err != nil {
		return false, err
	}
	s.setPhase(PhaseStyling)
	return true, nil
}

func (s *Session) style(ctx context.Context) (bool, error) {
	text, t, err := s.call(ctx, s.opts.Prompts.Styling, s.history())
	if err != nil {
		return false, err
	}
	final := tags.Strip(text)
	if !t.Equal("render_status", "final") || final == "" {
		return false, nil
	}
	if err := s.appendMessage(ledger.Message{
		Role:          ledger.RoleAssistant,
		Content:       final,
		DisplayInChat: true,
		IsFinalHTML:   true,
	}); err != nil {
		return false, err
	}
	s.update(func(st *State) {
		st.FinalHTML = final
		st.Phase = PhaseIdle
		st.SubPhase = SubIdle
	})
	s.emit(Event{Kind: EventPhase, Phase: PhaseIdle, SubPhase: SubIdle})
	s.setStatus(statusComplete)
	s.finish(ctx, true)
	return true, nil
}

func (s *Session) appendHidden(text string) error {
	return s.appendMessage(ledger.Message{Role: ledger.RoleAssistant, Content: text})
}

// call sends system followed by history and publishes any status_message tag
// of the reply.
func (s *Session) call(ctx context.Context, system string, history []llm_client.Message) (string, tags.Tags, error) {
	msgs := make([]llm_client.Message, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, llm_client.Message{Role: string(ledger.RoleSystem), Content: system})
	}
	msgs = append(msgs, history...)

	st := s.State()
	cm := metrics.CallMetrics{Phase: string(st.Phase), Start: time.Now()}
	if st.Phase == PhaseResearch {
		cm.SubPhase = string(st.SubPhase)
		cm.Task = st.TaskIndex + 1
	}

	ctx = transport.WithObserver(ctx, func(e transport.RetryEvent) {
		if e.Final {
			return
		}
		s.emit(Event{Kind: EventRetry, Text: fmt.Sprintf("AI call failed, retrying in %s (attempt %d/%d)...",
			e.Delay, e.Attempt+1, e.MaxAttempts)})
	})
	reply, err := s.sender.Send(ctx, msgs)

	cm.End = time.Now()
	cm.Attempts = reply.Attempts
	cm.Success = err == nil
	if err != nil {
		cm.Err = err.Error()
	}
	cm.Finalize()
	s.stateMu.Lock()
	s.metrics.Calls = append(s.metrics.Calls, cm)
	s.stateMu.Unlock()

	if err != nil {
		return "", nil, err
	}
	logger.Log.Debugw("model reply", "session", s.ID, "phase", cm.Phase, "sub_phase", cm.SubPhase,
		"attempts", reply.Attempts, "bytes", len(reply.Text))

	t := tags.Parse(reply.Text)
	if status, ok := t.String("status_message"); ok && strings.TrimSpace(status) != "" {
		s.setStatus(strings.TrimSpace(status))
	}
	return reply.Text, t, nil
}

// history replays the ledger as role and content only.
func (s *Session) history() []llm_client.Message {
	return toWire(s.ledger.Snapshot())
}

func toWire(msgs []ledger.Message) []llm_client.Message {
	out := make([]llm_client.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm_client.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// fail forces the session idle after an unrecoverable error.
func (s *Session) fail(err error) error {
	status := "🚨 Research stopped: " + err.Error()
	switch {
	case errors.Is(err, transport.ErrCommunication):
		status = statusCommFailed
	case errors.Is(err, ErrPhaseStalled):
		status = statusStalled
	}
	logger.Log.Errorw("research session failed", "session", s.ID, "phase", s.State().Phase, "error", err)

	s.update(func(st *State) {
		st.Phase = PhaseIdle
		st.SubPhase = SubIdle
		st.Loading = false
		st.Err = err.Error()
	})
	s.setStatus(status)
	s.emit(Event{Kind: EventError, Text: err.Error()})
	s.finish(context.Background(), false)
	return err
}

func (s *Session) finish(ctx context.Context, succeeded bool) {
	s.stateMu.Lock()
	s.metrics.End = time.Now()
	s.metrics.Succeeded = succeeded
	s.metrics.Finalize()
	s.stateMu.Unlock()

	if !succeeded || s.opts.Archive == nil {
		return
	}
	st := s.State()
	run := Run{
		SessionID: s.ID,
		Question:  s.Question(),
		Summary:   st.Summary,
		Tasks:     st.Tasks,
		Fragments: st.Fragments,
		Brief:     st.Brief,
		FinalHTML: st.FinalHTML,
		Metrics:   s.Metrics(),
		CreatedAt: time.Now(),
	}
	if err := s.opts.Archive.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Log.Warnw("failed to archive run", "session", s.ID, "error", err)
	}
}

// ClampTasks keeps the first limit non-empty string entries of a tasks tag
// value, in order. Anything that is not a list yields no tasks.
func ClampTasks(v any, limit int) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		task, ok := item.(string)
		if !ok || !validTask(task) {
			continue
		}
		out = append(out, strings.TrimSpace(task))
		if len(out) == limit {
			break
		}
	}
	return out
}

func validTask(task string) bool {
	t := strings.TrimSpace(task)
	return t != "" && t != "["
}
