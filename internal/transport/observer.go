package transport

import (
	"context"
	"time"
)

// RetryEvent reports a failed attempt. Final is set once no retry follows.
type RetryEvent struct {
	Attempt     int
	MaxAttempts int
	Err         error
	Delay       time.Duration
	Final       bool
}

type RetryObserver func(RetryEvent)

type observerKey struct{}

// WithObserver attaches fn to ctx; Send reports every retry and the final
// failure to it.
func WithObserver(ctx context.Context, fn RetryObserver) context.Context {
	return context.WithValue(ctx, observerKey{}, fn)
}

func observerFrom(ctx context.Context) RetryObserver {
	if fn, ok := ctx.Value(observerKey{}).(RetryObserver); ok && fn != nil {
		return fn
	}
	return func(RetryEvent) {}
}
