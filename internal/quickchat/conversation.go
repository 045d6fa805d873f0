package quickchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"lawgpt/internal/ledger"
	"lawgpt/internal/llm_client"
	"lawgpt/internal/logger"
	"lawgpt/internal/pipeline"
)

var ErrMiniChat = errors.New("mini AI communication failed")

// Conversation is a multi-turn chat under a fixed system message. Every call
// replays the earlier turns.
type Conversation struct {
	mu         sync.Mutex
	sender     pipeline.Sender
	prompt     string
	transcript *ledger.Ledger
}

func NewConversation(sender pipeline.Sender, prompt string) *Conversation {
	return &Conversation{sender: sender, prompt: prompt, transcript: ledger.New()}
}

// Chat sends text after the transcript so far and returns the model's reply.
// A failed call leaves the transcript unchanged.
func (c *Conversation) Chat(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", pipeline.ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	history := c.transcript.Snapshot()
	msgs := make([]llm_client.Message, 0, len(history)+2)
	msgs = append(msgs, llm_client.Message{Role: string(ledger.RoleSystem), Content: c.prompt})
	for _, m := range history {
		if m.Role == ledger.RoleSystem {
			continue
		}
		msgs = append(msgs, llm_client.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, llm_client.Message{Role: string(ledger.RoleUser), Content: text})

	reply, err := c.sender.Send(ctx, msgs)
	if err != nil {
		logger.Log.Errorw("Mini chat call failed", "attempts", reply.Attempts, "turns", len(history), "error", err)
		return "", fmt.Errorf("%w: %w", ErrMiniChat, err)
	}

	if err := c.record(ledger.RoleUser, text); err != nil {
		return "", err
	}
	if err := c.record(ledger.RoleAssistant, reply.Text); err != nil {
		return "", err
	}
	return reply.Text, nil
}

// Reset forgets every earlier turn.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript.Reset()
}

func (c *Conversation) Transcript() []ledger.Message {
	return c.transcript.Snapshot()
}

func (c *Conversation) record(role ledger.Role, content string) error {
	if err := c.transcript.Append(ledger.Message{Role: role, Content: content, DisplayInChat: true}); err != nil {
		return fmt.Errorf("record %s turn: %w", role, err)
	}
	return nil
}
