package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-crm/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

// attemptNacker is implemented by deliveries that apply a retry policy
// based on the attempt number.
type attemptNacker interface {
	NackForAttempt(ctx context.Context, opts queue.NackOptions, attempt int) error
}

type attemptReporter interface {
	Attempt() int
}

type WorkerOption func(*Worker)

func WithHook(hook worker.Hook) WorkerOption {
	return func(w *Worker) {
		if hook != nil {
			w.hooks = append(w.hooks, hook)
		}
	}
}

func WithPollInterval(interval time.Duration) WorkerOption {
	return func(w *Worker) {
		if interval > 0 {
			w.pollEvery = interval
		}
	}
}

func WithBatchSize(size int) WorkerOption {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithMaxAttempts dead-letters a job once it has failed attempts times.
func WithMaxAttempts(attempts int) WorkerOption {
	return func(w *Worker) {
		if attempts > 0 {
			w.maxAttempts = attempts
		}
	}
}

func WithRetryBackoff(base time.Duration) WorkerOption {
	return func(w *Worker) {
		if base > 0 {
			w.backoff = base
		}
	}
}

func WithLogger(logger core.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Worker drains a queue serially, dispatching each delivery to the handler
// registered for its job id.
type Worker struct {
	dequeuer  queue.Dequeuer
	registry  *Registry
	hooks     []worker.Hook
	pollEvery time.Duration
	batchSize int
	backoff   time.Duration
	logger    core.Logger

	maxAttempts int
}

func NewWorker(dequeuer queue.Dequeuer, registry *Registry, opts ...WorkerOption) (*Worker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("jobs: dequeuer is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("jobs: handler registry is required")
	}
	w := &Worker{
		dequeuer:  dequeuer,
		registry:  registry,
		pollEvery: defaultWorkerPollEvery,
		batchSize: defaultWorkerBatchSize,
		backoff:   defaultRetryBackoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.logger = core.ResolveLogger("jobs", nil, w.logger)
	return w, nil
}

// Run drains the queue every poll interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("jobs: worker is nil")
	}
	w.logger.Info("job worker started", "poll_interval", w.pollEvery.String(), "batch_size", w.batchSize)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("job worker stopped")
			return nil
		case <-timer.C:
		}
		if _, err := w.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("job worker drain failed", "error", err.Error())
		}
		timer.Reset(w.pollEvery)
	}
}

// Drain processes up to one batch of ready jobs and reports how many ran.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	if w == nil {
		return 0, fmt.Errorf("jobs: worker is nil")
	}
	processed := 0
	for processed < w.batchSize {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		ran, err := w.ProcessNext(ctx)
		if err != nil {
			return processed, err
		}
		if !ran {
			break
		}
		processed++
	}
	return processed, nil
}

// ProcessNext handles a single delivery. It returns false when the queue
// had nothing ready.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if errors.Is(err, ErrNoJob) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}

	msg := delivery.Message()
	attempt := 1
	if reporter, ok := delivery.(attemptReporter); ok && reporter.Attempt() > 0 {
		attempt = reporter.Attempt()
	}
	event := worker.Event{
		Message:   msg,
		Delivery:  delivery,
		Attempt:   attempt,
		StartedAt: time.Now().UTC(),
	}
	w.emit(func(h worker.Hook) { h.OnStart(ctx, event) })

	handleErr := w.handle(ctx, msg)
	event.Duration = time.Since(event.StartedAt)
	if handleErr == nil {
		if err := delivery.Ack(ctx); err != nil {
			return true, fmt.Errorf("jobs: ack %s: %w", jobIDOf(msg), err)
		}
		w.emit(func(h worker.Hook) { h.OnSuccess(ctx, event) })
		return true, nil
	}

	event.Err = handleErr
	opts := queue.NackOptions{Disposition: queue.NackDispositionDeadLetter, Reason: handleErr.Error()}
	if !IsPermanent(handleErr) && (w.maxAttempts <= 0 || attempt < w.maxAttempts) {
		opts.Disposition = queue.NackDispositionRetry
		opts.Delay = w.retryDelay(attempt)
	}
	if nacker, ok := delivery.(attemptNacker); ok {
		err = nacker.NackForAttempt(ctx, opts, attempt)
	} else {
		err = delivery.Nack(ctx, opts)
	}
	if err != nil {
		return true, fmt.Errorf("jobs: nack %s: %w", jobIDOf(msg), err)
	}
	if opts.Disposition == queue.NackDispositionRetry {
		event.Delay = opts.Delay
		w.emit(func(h worker.Hook) { h.OnRetry(ctx, event) })
	} else {
		w.emit(func(h worker.Hook) { h.OnFailure(ctx, event) })
	}
	return true, nil
}

func (w *Worker) handle(ctx context.Context, msg *job.ExecutionMessage) error {
	if msg == nil {
		return Permanent(fmt.Errorf("jobs: delivery carried no message"))
	}
	handler, ok := w.registry.Get(msg.JobID)
	if !ok {
		return Permanent(fmt.Errorf("jobs: no handler for %q", msg.JobID))
	}
	return handler.Handle(ctx, msg)
}

func (w *Worker) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		attempt = 16
	}
	return w.backoff * time.Duration(1<<(attempt-1))
}

func (w *Worker) emit(fn func(worker.Hook)) {
	for _, hook := range w.hooks {
		fn(hook)
	}
}

func jobIDOf(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	return strings.TrimSpace(msg.JobID)
}
