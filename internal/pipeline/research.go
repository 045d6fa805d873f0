package pipeline

import (
	"context"
	"fmt"
	"strings"

	"lawgpt/internal/ledger"
	"lawgpt/internal/llm_client"
	"lawgpt/internal/logger"
	"lawgpt/internal/search"
	"lawgpt/internal/tags"
)

const fragmentHeader = "--- Validated Data Fragment ---\n"

// research runs every task through researcher and validator, then hands the
// fragments to synthesis. Each task costs two calls, plus one more when the
// researcher asks for a web search.
func (s *Session) research(ctx context.Context) error {
	for {
		st := s.State()
		if st.TaskIndex >= len(st.Tasks) {
			break
		}
		i, n, task := st.TaskIndex, len(st.Tasks), st.Tasks[st.TaskIndex]
		if !validTask(task) {
			logger.Log.Warnw("skipping malformed task", "session", s.ID, "task", task)
			s.update(func(st *State) {
				st.TaskIndex++
				st.SubPhase = SubIdle
			})
			continue
		}

		s.setStatus(fmt.Sprintf("🔎 Researching task %d/%d: %s...", i+1, n, task))
		frag, err := s.researchTask(ctx, i, n, task)
		if err != nil {
			return err
		}
		s.update(func(st *State) {
			st.Fragments = append(st.Fragments, frag)
			st.TaskIndex++
			st.SubPhase = SubIdle
		})
		logger.Log.Infow("task researched", "session", s.ID, "task", i+1, "status", frag.Status)
	}

	st := s.State()
	if err := s.synthetic(synthesisInput(st.Summary, st.Fragments)); err != nil {
		return err
	}
	s.setPhase(PhaseSynthesis)
	return nil
}

func (s *Session) researchTask(ctx context.Context, i, n int, task string) (Fragment, error) {
	if err := s.synthetic(task); err != nil {
		return Fragment{}, err
	}
	s.setSubPhase(SubSendingTask)
	system := s.opts.Prompts.Research + "\n\nResearch Task: " + task

	findings, t, err := s.call(ctx, system, s.history())
	if err != nil {
		return Fragment{}, err
	}
	if query, ok := t.String("query"); ok && t.Equal("action", "web_search") && strings.TrimSpace(query) != "" {
		if err := s.webSearch(ctx, strings.TrimSpace(query)); err != nil {
			return Fragment{}, err
		}
		// The follow-up reply is taken as findings even if it asks to search again.
		findings, _, err = s.call(ctx, system, s.history())
		if err != nil {
			return Fragment{}, err
		}
	}

	if err := s.appendMessage(ledger.Message{
		Role:            ledger.RoleAssistant,
		Content:         findings,
		NeedsValidation: true,
	}); err != nil {
		return Fragment{}, err
	}
	s.setSubPhase(SubAwaitingResearch)

	return s.validate(ctx, i, n, task)
}

func (s *Session) webSearch(ctx context.Context, query string) error {
	s.setSubPhase(SubWebSearching)
	s.setStatus(fmt.Sprintf("🌐 Performing web search for %q...", query))

	results, err := s.opts.Searcher.Search(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Log.Warnw("web search failed, continuing with no results", "session", s.ID, "query", query, "error", err)
		results = search.Results{Query: query}
	}
	s.stateMu.Lock()
	s.metrics.Searches++
	s.stateMu.Unlock()

	directive, err := search.Directive(results)
	if err != nil {
		return err
	}
	s.setSubPhase(SubWebSearchDone)
	s.setStatus(fmt.Sprintf("✅ Web search complete for %q. Processing results...", query))
	return s.synthetic(directive)
}

// validate sends the pending findings to the validator once. A reply without
// a verified or corrected status keeps the findings as they are, unverified.
func (s *Session) validate(ctx context.Context, i, n int, task string) (Fragment, error) {
	s.setStatus(fmt.Sprintf("⚖️ Validating research for task %d/%d...", i+1, n))
	s.setSubPhase(SubSendingToValidator)

	pending, ok := s.ledger.Pending()
	if !ok {
		return Fragment{}, ledger.ErrNoPending
	}
	msgs := make([]llm_client.Message, 0, s.ledger.Len())
	for _, m := range s.ledger.Snapshot() {
		if m.NeedsValidation {
			continue
		}
		msgs = append(msgs, llm_client.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, llm_client.Message{Role: string(ledger.RoleUser), Content: pending.Content})

	text, t, err := s.call(ctx, s.opts.Prompts.Validator, msgs)
	if err != nil {
		return Fragment{}, err
	}
	s.setSubPhase(SubAwaitingValidation)

	verdict, _ := t.String("validation_status")
	status := ledger.ValidationStatus(strings.ToLower(strings.TrimSpace(verdict)))
	if status == ledger.StatusVerified || status == ledger.StatusCorrected {
		cleaned := tags.Strip(text)
		if err := s.ledger.Resolve(status, cleaned); err != nil {
			return Fragment{}, err
		}
		return Fragment{Task: task, Result: cleaned, Status: status}, nil
	}

	logger.Log.Warnw("validation inconclusive, keeping findings unverified",
		"session", s.ID, "task", i+1, "verdict", verdict)
	if err := s.ledger.Skip(); err != nil {
		return Fragment{}, err
	}
	return Fragment{Task: task, Result: pending.Content, Status: ledger.StatusUnverified}, nil
}

func synthesisInput(summary string, frags []Fragment) string {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, fragmentHeader+tags.Strip(f.Result))
	}
	return fmt.Sprintf("Research Goal: %s\n\nValidated Data Fragments:\n%s", summary, strings.Join(parts, "\n\n"))
}
