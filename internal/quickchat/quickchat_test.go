package quickchat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawgpt/internal/ledger"
	"lawgpt/internal/llm_client"
	"lawgpt/internal/pipeline"
	"lawgpt/internal/transport"
)

type fakeSender struct {
	reply string
	err   error
	calls [][]llm_client.Message
}

func (f *fakeSender) Send(_ context.Context, msgs []llm_client.Message) (transport.Reply, error) {
	f.calls = append(f.calls, msgs)
	if f.err != nil {
		return transport.Reply{Attempts: 4}, f.err
	}
	return transport.Reply{Text: f.reply, Attempts: 1}, nil
}

func TestAsk(t *testing.T) {
	sender := &fakeSender{reply: `<div>Yes, with due process.</div> [source: "bar notes"]`}
	svc := New(sender, "LawGPT prompt")

	answer, err := svc.Ask(context.Background(), "  Can an employee be dismissed?  ")
	require.NoError(t, err)

	assert.Equal(t, "<div>Yes, with due process.</div>", answer)
	require.Len(t, sender.calls, 1)
	assert.Equal(t, []llm_client.Message{
		{Role: "system", Content: "LawGPT prompt"},
		{Role: "user", Content: "Can an employee be dismissed?"},
	}, sender.calls[0])

	_, err = svc.Ask(context.Background(), "Second question")
	require.NoError(t, err)
	assert.Len(t, sender.calls[1], 2, "earlier questions are not replayed")
	assert.Len(t, svc.Transcript(), 4)
}

func TestAsk_Failure(t *testing.T) {
	sender := &fakeSender{err: transport.ErrCommunication}
	svc := New(sender, "p")

	_, err := svc.Ask(context.Background(), "hello")
	assert.True(t, errors.Is(err, ErrBaseChat))
	assert.True(t, errors.Is(err, transport.ErrCommunication))

	tr := svc.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, ledger.RoleAssistant, tr[1].Role)
	assert.Equal(t, failureReply, tr[1].Content)
}

func TestAsk_Empty(t *testing.T) {
	svc := New(&fakeSender{}, "p")
	_, err := svc.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, pipeline.ErrEmptyMessage)
	assert.Empty(t, svc.Transcript())
}
