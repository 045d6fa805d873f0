// Package quickchat talks to the model outside the research pipeline: single
// questions under the general LawGPT prompt, and a short multi-turn chat.
package quickchat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lawgpt/internal/ledger"
	"lawgpt/internal/llm_client"
	"lawgpt/internal/logger"
	"lawgpt/internal/pipeline"
	"lawgpt/internal/tags"
)

var ErrBaseChat = errors.New("base AI communication failed")

const failureReply = "Error: Could not get a response from AI."

type Service struct {
	sender     pipeline.Sender
	prompt     string
	transcript *ledger.Ledger
}

func New(sender pipeline.Sender, prompt string) *Service {
	return &Service{sender: sender, prompt: prompt, transcript: ledger.New()}
}

// Ask sends question as a fresh two-turn conversation and returns the reply
// with directives removed. Earlier questions are not replayed.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", pipeline.ErrEmptyMessage
	}
	if err := s.record(ledger.RoleUser, question); err != nil {
		return "", err
	}

	reply, err := s.sender.Send(ctx, []llm_client.Message{
		{Role: string(ledger.RoleSystem), Content: s.prompt},
		{Role: string(ledger.RoleUser), Content: question},
	})
	if err != nil {
		logger.Log.Errorw("Base chat call failed", "attempts", reply.Attempts, "error", err)
		if rerr := s.record(ledger.RoleAssistant, failureReply); rerr != nil {
			logger.Log.Warnw("Could not record failure reply", "error", rerr)
		}
		return "", fmt.Errorf("%w: %w", ErrBaseChat, err)
	}

	answer := tags.Strip(reply.Text)
	if err := s.record(ledger.RoleAssistant, answer); err != nil {
		return "", err
	}
	return answer, nil
}

// Transcript returns every question and answer seen by this service.
func (s *Service) Transcript() []ledger.Message {
	return s.transcript.Snapshot()
}

func (s *Service) record(role ledger.Role, content string) error {
	if err := s.transcript.Append(ledger.Message{Role: role, Content: content, DisplayInChat: true}); err != nil {
		return fmt.Errorf("record %s turn: %w", role, err)
	}
	return nil
}
