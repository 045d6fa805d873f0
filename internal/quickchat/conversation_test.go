package quickchat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawgpt/internal/ledger"
	"lawgpt/internal/llm_client"
	"lawgpt/internal/pipeline"
	"lawgpt/internal/transport"
)

const miniPrompt = "you are lawGPT, helping lawyers"

func TestConversationChat_ReplaysHistory(t *testing.T) {
	sender := &fakeSender{reply: "Article 297 of the Labor Code."}
	conv := NewConversation(sender, miniPrompt)

	_, err := conv.Chat(context.Background(), "What governs just causes?")
	require.NoError(t, err)

	sender.reply = "Yes, serious misconduct qualifies."
	answer, err := conv.Chat(context.Background(), " Does misconduct count? ")
	require.NoError(t, err)
	assert.Equal(t, "Yes, serious misconduct qualifies.", answer)

	require.Len(t, sender.calls, 2)
	assert.Equal(t, []llm_client.Message{
		{Role: "system", Content: miniPrompt},
		{Role: "user", Content: "What governs just causes?"},
		{Role: "assistant", Content: "Article 297 of the Labor Code."},
		{Role: "user", Content: "Does misconduct count?"},
	}, sender.calls[1])
	assert.Len(t, conv.Transcript(), 4)
}

func TestConversationChat_Failure(t *testing.T) {
	sender := &fakeSender{reply: "first"}
	conv := NewConversation(sender, miniPrompt)
	_, err := conv.Chat(context.Background(), "hello")
	require.NoError(t, err)

	sender.err = transport.ErrCommunication
	_, err = conv.Chat(context.Background(), "again")
	assert.ErrorIs(t, err, ErrMiniChat)
	assert.ErrorIs(t, err, transport.ErrCommunication)
	assert.Len(t, conv.Transcript(), 2, "failed turns are not kept")

	sender.err = nil
	_, err = conv.Chat(context.Background(), "third")
	require.NoError(t, err)
	assert.Len(t, sender.calls[2], 4)
}

func TestConversationReset(t *testing.T) {
	sender := &fakeSender{reply: "ok"}
	conv := NewConversation(sender, miniPrompt)
	_, err := conv.Chat(context.Background(), "one")
	require.NoError(t, err)

	conv.Reset()
	assert.Empty(t, conv.Transcript())

	_, err = conv.Chat(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, []llm_client.Message{
		{Role: "system", Content: miniPrompt},
		{Role: "user", Content: "two"},
	}, sender.calls[1])
	assert.Equal(t, ledger.RoleAssistant, conv.Transcript()[1].Role)
}

func TestConversationChat_Empty(t *testing.T) {
	conv := NewConversation(&fakeSender{}, miniPrompt)
	_, err := conv.Chat(context.Background(), "\n ")
	assert.ErrorIs(t, err, pipeline.ErrEmptyMessage)
}
