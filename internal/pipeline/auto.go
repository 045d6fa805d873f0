package pipeline

import (
	"context"
	"fmt"

	"lawgpt/internal/logger"
)

const intakeNudge = "Please proceed with the research using reasonable assumptions for any missing details."

// RunToCompletion submits question and answers up to maxNudges intake
// follow-up questions with a fixed nudge, so no user is needed at the
// terminal.
func RunToCompletion(ctx context.Context, s *Session, question string, maxNudges int) (State, error) {
	if err := s.Submit(ctx, question); err != nil {
		return s.State(), err
	}
	for nudges := 0; s.State().Phase == PhaseIntake; nudges++ {
		if nudges >= maxNudges {
			return s.State(), fmt.Errorf("%w after %d follow-ups", ErrAwaitingInput, nudges)
		}
		logger.Log.Infow("answering intake follow-up automatically", "session", s.ID, "nudge", nudges+1)
		if err := s.Submit(ctx, intakeNudge); err != nil {
			return s.State(), err
		}
	}
	return s.State(), nil
}
