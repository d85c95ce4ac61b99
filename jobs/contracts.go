// Package jobs defines the CRM background jobs: identifiers, payloads,
// handlers and the worker that drains a go-job queue.
package jobs

import (
	"context"
	"errors"
	"time"

	job "github.com/goliatone/go-job"
)

const (
	JobMassCreateTicket     = "crm.mass_create_ticket"
	JobUpdateUserByWebhooks = "crm.update_user_by_webhooks"

	EventTypeReceiveNews = "receive_news"
)

const (
	defaultRetryBackoff    = time.Second
	defaultWorkerBatchSize = 10
	defaultWorkerPollEvery = time.Second
)

// ErrNoJob is returned by a dequeuer when nothing is ready to run.
var ErrNoJob = errors.New("jobs: no job ready")

// Handle identifies an enqueued job.
type Handle struct {
	ID         string
	JobID      string
	DispatchID string
}

type Enqueuer interface {
	Enqueue(ctx context.Context, msg *job.ExecutionMessage) (Handle, error)
}

type Handler interface {
	Handle(ctx context.Context, msg *job.ExecutionMessage) error
}

type HandlerFunc func(ctx context.Context, msg *job.ExecutionMessage) error

func (fn HandlerFunc) Handle(ctx context.Context, msg *job.ExecutionMessage) error {
	return fn(ctx, msg)
}

// Event describes one worker step for CRM-level hooks.
type Event struct {
	JobID          string
	IdempotencyKey string
	Parameters     map[string]any
	Attempt        int
	Delay          time.Duration
	Err            error
	StartedAt      time.Time
	Duration       time.Duration
}

type Hook interface {
	OnStart(ctx context.Context, event Event)
	OnSuccess(ctx context.Context, event Event)
	OnFailure(ctx context.Context, event Event)
	OnRetry(ctx context.Context, event Event)
}

type UserTicket struct {
	UserID      int64
	CouponID    int64
	AdminUserID int64
	Reason      string
}

type TicketWriter interface {
	CreateTickets(ctx context.Context, tickets []UserTicket) error
}

type ConsentWriter interface {
	UpdateReceiveNews(ctx context.Context, userID int64, receiveNews bool) error
}
