// Package transport wraps a model provider with bounded retries and
// normalizes the response body into the text the codec reads.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lawgpt/internal/llm_client"
	"lawgpt/internal/logger"
)

var ErrCommunication = errors.New("AI communication failed")

const (
	DefaultRetries   = 3
	DefaultBaseDelay = time.Second
)

// Sender is satisfied by llm_client.Provider.
type Sender interface {
	Chat(ctx context.Context, messages []llm_client.Message) (string, error)
}

type Reply struct {
	Text     string
	Raw      string
	Attempts int
	Duration time.Duration
}

type Client struct {
	next      Sender
	retries   int
	baseDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

// WithRetries sets how many times a failed call is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBaseDelay sets the unit of the linear backoff (attempt × d).
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.baseDelay = d
		}
	}
}

// WithSleep replaces the wait between attempts; used by tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

func New(next Sender, opts ...Option) *Client {
	c := &Client{
		next:      next,
		retries:   DefaultRetries,
		baseDelay: DefaultBaseDelay,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send delivers messages, retrying failures with a delay of attempt × base.
// Once retries are exhausted the error wraps ErrCommunication.
func (c *Client) Send(ctx context.Context, messages []llm_client.Message) (Reply, error) {
	start := time.Now()
	notify := observerFrom(ctx)
	maxAttempts := c.retries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := c.next.Chat(ctx, messages)
		if err == nil {
			return Reply{
				Text:     ExtractMessage(raw),
				Raw:      raw,
				Attempts: attempt,
				Duration: time.Since(start),
			}, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Reply{Attempts: attempt, Duration: time.Since(start)}, ctxErr
		}
		if attempt == maxAttempts {
			break
		}

		delay := time.Duration(attempt) * c.baseDelay
		logger.Log.Warnw("AI call failed, retrying",
			"attempt", attempt, "max_attempts", maxAttempts, "delay", delay, "error", err)
		notify(RetryEvent{Attempt: attempt, MaxAttempts: maxAttempts, Err: err, Delay: delay})

		if err := c.sleep(ctx, delay); err != nil {
			return Reply{Attempts: attempt, Duration: time.Since(start)}, err
		}
	}

	logger.Log.Errorw("AI call failed, retries exhausted", "attempts", maxAttempts, "error", lastErr)
	notify(RetryEvent{Attempt: maxAttempts, MaxAttempts: maxAttempts, Err: lastErr, Final: true})
	return Reply{Attempts: maxAttempts, Duration: time.Since(start)},
		fmt.Errorf("%w after %d attempts: %w", ErrCommunication, maxAttempts, lastErr)
}

// ExtractMessage returns the ai_message field of a JSON envelope, or raw
// unchanged when the body is not such an envelope.
func ExtractMessage(raw string) string {
	var env struct {
		AIMessage *string `json:"ai_message"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &env); err == nil && env.AIMessage != nil {
		return *env.AIMessage
	}
	return raw
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
