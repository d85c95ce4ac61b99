package inbound

import (
	"context"
	"time"
)

// Request is a provider-originated event as seen by the dispatcher.
type Request struct {
	Provider string
	Event    string
	Headers  map[string]string
	Body     map[string]any
	Metadata map[string]any

	// DeliveryKey is the resolved idempotency key, set by the dispatcher
	// before the handler runs.
	DeliveryKey string
}

type Result struct {
	Accepted   bool
	StatusCode int
	Payload    any
	Metadata   map[string]any
}

type Handler interface {
	Handle(ctx context.Context, req Request) (Result, error)
}

type HandlerFunc func(ctx context.Context, req Request) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

type Verifier interface {
	Verify(ctx context.Context, req Request) error
}

// ClaimStore tracks delivery keys so a redelivered event runs once.
// Fail releases a claim so the event can be retried after retryAt.
type ClaimStore interface {
	Claim(ctx context.Context, key string, lease time.Duration) (claimID string, accepted bool, err error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}
