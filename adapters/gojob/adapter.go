// Package gojob bridges CRM jobs to go-job queue and worker contracts.
package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crm/jobs"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	"github.com/google/uuid"
)

// RetryPolicy bounds retries so a failing job cannot loop forever.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt clamps the delay and turns a retry into a terminal
// disposition once attempt reaches MaxAttempts: dead_letter with
// DeadLetterOnMax, failed otherwise. An empty disposition means retry.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Disposition != queue.NackDispositionRetry {
		out.Delay = 0
		return out
	}
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Delay = 0
		out.Disposition = queue.NackDispositionFailed
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		}
	}
	return out
}

// EnqueuerAdapter exposes a go-job enqueuer as a jobs.Enqueuer, assigning an
// idempotency key when the caller left it empty.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *job.ExecutionMessage) (jobs.Handle, error) {
	if a == nil || a.enqueuer == nil {
		return jobs.Handle{}, fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return jobs.Handle{}, fmt.Errorf("gojob: execution message is required")
	}
	out := cloneMessage(msg)
	if out.JobID == "" {
		return jobs.Handle{}, fmt.Errorf("gojob: job id is required")
	}
	if out.IdempotencyKey == "" {
		out.IdempotencyKey = uuid.NewString()
	}
	receipt, err := a.enqueuer.Enqueue(ctx, out)
	if err != nil {
		return jobs.Handle{}, err
	}
	return jobs.Handle{ID: out.IdempotencyKey, JobID: out.JobID, DispatchID: receipt.DispatchID}, nil
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *job.ExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return d.delivery.Message()
}

// Attempt forwards the attempt count when the wrapped delivery reports one.
func (d *DeliveryAdapter) Attempt() int {
	if d == nil || d.delivery == nil {
		return 0
	}
	if reporter, ok := d.delivery.(interface{ Attempt() int }); ok {
		return reporter.Attempt()
	}
	return 0
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts queue.NackOptions) error {
	return d.NackForAttempt(ctx, opts, d.Attempt())
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts queue.NackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Nack(ctx, d.policy.NormalizeAttempt(opts, attempt))
}

// DequeuerAdapter wraps every delivery with the retry policy.
type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// WorkerHookAdapter feeds go-job worker events into a jobs.Hook.
type WorkerHookAdapter struct {
	hook jobs.Hook
}

func NewWorkerHookAdapter(hook jobs.Hook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) jobs.Event {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	out := jobs.Event{
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
	if message != nil {
		out.JobID = strings.TrimSpace(message.JobID)
		out.IdempotencyKey = strings.TrimSpace(message.IdempotencyKey)
		out.Parameters = copyAnyMap(message.Parameters)
	}
	return out
}

func cloneMessage(msg *job.ExecutionMessage) *job.ExecutionMessage {
	out := *msg
	out.JobID = strings.TrimSpace(msg.JobID)
	out.ScriptPath = strings.TrimSpace(msg.ScriptPath)
	out.IdempotencyKey = strings.TrimSpace(msg.IdempotencyKey)
	out.Parameters = copyAnyMap(msg.Parameters)
	return &out
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ jobs.Enqueuer  = (*EnqueuerAdapter)(nil)
	_ queue.Delivery = (*DeliveryAdapter)(nil)
	_ queue.Dequeuer = (*DequeuerAdapter)(nil)
	_ worker.Hook    = (*WorkerHookAdapter)(nil)
)
