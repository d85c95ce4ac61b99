package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-crm/core"
)

// ObserverHook reports worker steps as crm.jobs.<job>.* metrics and logs.
type ObserverHook struct {
	observer *core.Observer
}

func NewObserverHook(logger core.Logger, metrics core.MetricsRecorder) *ObserverHook {
	return &ObserverHook{observer: core.NewObserver("crm.jobs", logger, metrics, "phase")}
}

func (h *ObserverHook) OnStart(context.Context, Event) {}

func (h *ObserverHook) OnSuccess(ctx context.Context, event Event) {
	h.observe(ctx, event, nil, "success")
}

func (h *ObserverHook) OnFailure(ctx context.Context, event Event) {
	h.observe(ctx, event, event.Err, "failure")
}

func (h *ObserverHook) OnRetry(ctx context.Context, event Event) {
	h.observe(ctx, event, event.Err, "retry")
}

func (h *ObserverHook) observe(ctx context.Context, event Event, err error, phase string) {
	if h == nil || h.observer == nil {
		return
	}
	startedAt := event.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().Add(-event.Duration)
	}
	operation := strings.TrimPrefix(strings.TrimSpace(event.JobID), "crm.")
	h.observer.Observe(ctx, startedAt, operation, err, map[string]any{
		"job_id":          event.JobID,
		"idempotency_key": event.IdempotencyKey,
		"attempt":         event.Attempt,
		"phase":           phase,
		"delay_ms":        event.Delay.Milliseconds(),
	})
}

var _ Hook = (*ObserverHook)(nil)
