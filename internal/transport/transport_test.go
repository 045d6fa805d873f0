package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawgpt/internal/llm_client"
)

// flakySender fails the first `failures` calls, then answers with body.
type flakySender struct {
	failures int
	body     string
	calls    int
}

func (f *flakySender) Chat(ctx context.Context, _ []llm_client.Message) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("connection reset")
	}
	return f.body, nil
}

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestSend_RecoversAfterThreeFailures(t *testing.T) {
	sender := &flakySender{failures: 3, body: `{"ai_message": "ok"}`}
	sleeps := &recordedSleeps{}
	var events []RetryEvent
	ctx := WithObserver(context.Background(), func(e RetryEvent) { events = append(events, e) })

	reply, err := New(sender, WithSleep(sleeps.sleep)).Send(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, "ok", reply.Text)
	assert.Equal(t, 4, reply.Attempts)
	assert.Equal(t, 4, sender.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, sleeps.delays)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, i+1, e.Attempt)
		assert.False(t, e.Final)
	}
}

func TestSend_FailsAfterFourFailures(t *testing.T) {
	sender := &flakySender{failures: 4, body: "never"}
	sleeps := &recordedSleeps{}
	var events []RetryEvent
	ctx := WithObserver(context.Background(), func(e RetryEvent) { events = append(events, e) })

	_, err := New(sender, WithSleep(sleeps.sleep)).Send(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommunication)
	assert.Equal(t, 4, sender.calls, "no silent retries after exhaustion")
	assert.Len(t, sleeps.delays, 3)

	require.Len(t, events, 4)
	assert.True(t, events[3].Final)
}

func TestSend_StopsOnCancelledContext(t *testing.T) {
	sender := &flakySender{failures: 10}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(sender, WithSleep((&recordedSleeps{}).sleep)).Send(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sender.calls)
}

func TestSend_CustomRetries(t *testing.T) {
	sender := &flakySender{failures: 1, body: "plain"}

	_, err := New(sender, WithRetries(0), WithSleep((&recordedSleeps{}).sleep)).Send(context.Background(), nil)
	assert.ErrorIs(t, err, ErrCommunication)
	assert.Equal(t, 1, sender.calls)
}

func TestExtractMessage(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "Envelope", raw: `{"ai_message": "[tasks: [\"A\"]]"}`, want: `[tasks: ["A"]]`},
		{name: "Envelope with surrounding space", raw: "\n {\"ai_message\": \"hi\"} ", want: "hi"},
		{name: "Plain text", raw: "[intake_status: done]", want: "[intake_status: done]"},
		{name: "JSON without the field", raw: `{"message": "x"}`, want: `{"message": "x"}`},
		{name: "Non-string field", raw: `{"ai_message": 5}`, want: `{"ai_message": 5}`},
		{name: "Empty body", raw: "", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractMessage(tc.raw))
		})
	}
}
