package exponea

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goliatone/go-crm/core"
	"github.com/goliatone/go-crm/jobs"
	"github.com/goliatone/go-crm/result"
	"github.com/goliatone/go-crm/service"
)

var ticketErrorStatus = map[string]int{
	CodeTicketNotExist: http.StatusNotFound,
	CodeTicketNotValid: http.StatusUnprocessableEntity,
}

type Dependencies struct {
	Enqueuer   jobs.Enqueuer
	Admins     AdminDirectory
	Coupons    CouponCatalog
	Transactor service.Transactor
	Logger     core.Logger
	Metrics    core.MetricsRecorder
	BatchSize  int
}

// TicketWebhookProcessor grants a coupon ticket to every listed user by
// enqueuing one mass_create_ticket job per batch of user ids.
type TicketWebhookProcessor struct {
	svc       *service.Service[map[string]any, bool]
	enqueuer  jobs.Enqueuer
	admins    AdminDirectory
	logger    core.Logger
	batchSize int
}

func NewTicketWebhookProcessor(deps Dependencies) (*TicketWebhookProcessor, error) {
	if deps.Enqueuer == nil {
		return nil, core.InternalError("exponea: ticket processor requires an enqueuer", nil)
	}
	if deps.Admins == nil {
		return nil, core.InternalError("exponea: ticket processor requires an admin directory", nil)
	}
	if deps.Transactor == nil {
		return nil, core.InternalError("exponea: ticket processor requires a transactor", nil)
	}
	p := &TicketWebhookProcessor{
		enqueuer:  deps.Enqueuer,
		admins:    deps.Admins,
		logger:    core.ResolveLogger("crm.exponea.ticket", nil, deps.Logger),
		batchSize: deps.BatchSize,
	}
	if p.batchSize <= 0 {
		p.batchSize = TicketBatchSize
	}
	svc, err := service.New("exponea.ticket_webhook", p.createJobs,
		service.Use(
			service.WithValidation[map[string]any, bool](
				ticketValidator{coupons: deps.Coupons},
				service.MapValidation(ticketFailure),
			),
			service.WithTransaction[map[string]any, bool](deps.Transactor),
		),
		service.WithObserver[map[string]any, bool](core.NewObserver("crm.service", deps.Logger, deps.Metrics)),
	)
	if err != nil {
		return nil, err
	}
	p.svc = svc
	return p, nil
}

func (p *TicketWebhookProcessor) Call(ctx context.Context, data map[string]any) result.Result[bool, service.Failure] {
	if p == nil {
		panic(service.ErrNotImplemented)
	}
	return p.svc.Call(ctx, data)
}

func (p *TicketWebhookProcessor) createJobs(ctx context.Context, data map[string]any) result.Result[bool, service.Failure] {
	form, err := BindTicketForm(data)
	if err != nil {
		return result.Failure[bool](service.InternalFailure(err))
	}
	robotID, err := p.admins.RobotID(ctx)
	if err != nil {
		return result.Failure[bool](service.InternalFailure(fmt.Errorf("exponea: resolve robot admin: %w", err)))
	}
	for i, batch := range Batches(form.UserIDs, p.batchSize) {
		payload := jobs.MassCreateTicketPayload{
			UserIDs:     batch,
			TicketID:    form.CouponID,
			AdminUserID: robotID,
			Reason:      form.Reason,
		}
		msg := payload.Message(jobKey(ctx, "ticket:"+strconv.Itoa(i)))
		if _, err := p.enqueuer.Enqueue(ctx, msg); err != nil {
			p.logger.Error("mass_create_ticket enqueue failed",
				"batch", i,
				"batch_size", len(batch),
				"ticket_id", form.CouponID,
				"error", err,
			)
		}
	}
	return result.Success[bool, service.Failure](true)
}

// ticketFailure reports coupon problems as 404 or 422 and any other invalid
// field as 404.
func ticketFailure(failure service.Failure) service.Failure {
	out := service.Failure{Status: http.StatusNotFound, Fields: failure.Fields}
	first, ok := failure.Fields.First()
	if ok && first.Field == "coupon_id" {
		if status, known := ticketErrorStatus[first.Code]; known {
			out.Status = status
		}
	}
	return out
}

// Batches splits ids into consecutive groups of at most size, keeping order.
func Batches(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = TicketBatchSize
	}
	out := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, append([]int64(nil), ids[start:end]...))
	}
	return out
}

// ConsentWebhookProcessor applies newsletter consent changes. Only the
// update_consent action is supported.
type ConsentWebhookProcessor struct {
	svc      *service.Service[map[string]any, jobs.Handle]
	enqueuer jobs.Enqueuer
}

func NewConsentWebhookProcessor(deps Dependencies) (*ConsentWebhookProcessor, error) {
	if deps.Enqueuer == nil {
		return nil, core.InternalError("exponea: consent processor requires an enqueuer", nil)
	}
	p := &ConsentWebhookProcessor{enqueuer: deps.Enqueuer}
	svc, err := service.New("exponea.consent_webhook", p.dispatch,
		service.Use(service.WithValidation[map[string]any, jobs.Handle](consentValidator{})),
		service.WithObserver[map[string]any, jobs.Handle](core.NewObserver("crm.service", deps.Logger, deps.Metrics)),
	)
	if err != nil {
		return nil, err
	}
	p.svc = svc
	return p, nil
}

func (p *ConsentWebhookProcessor) Call(ctx context.Context, data map[string]any) result.Result[jobs.Handle, service.Failure] {
	if p == nil {
		panic(service.ErrNotImplemented)
	}
	return p.svc.Call(ctx, data)
}

func (p *ConsentWebhookProcessor) dispatch(ctx context.Context, data map[string]any) result.Result[jobs.Handle, service.Failure] {
	form, err := BindConsentForm(data)
	if err != nil {
		return result.Failure[jobs.Handle](service.InternalFailure(err))
	}
	switch form.ActionName {
	case ActionUpdateConsent:
		return p.updateSubscription(ctx, form)
	default:
		return result.Failure[jobs.Handle](service.CodeFailure(service.CodeNotImplemented))
	}
}

func (p *ConsentWebhookProcessor) updateSubscription(ctx context.Context, form ConsentWebhookForm) result.Result[jobs.Handle, service.Failure] {
	payload := jobs.UpdateUserPayload{
		EventType:  jobs.EventTypeReceiveNews,
		UserID:     form.UserID,
		EventValue: form.ReceiveNews,
	}
	handle, err := p.enqueuer.Enqueue(ctx, payload.Message(jobKey(ctx, "consent")))
	if err != nil {
		return result.Failure[jobs.Handle](service.InternalFailure(fmt.Errorf("exponea: enqueue consent update: %w", err)))
	}
	return result.Success[jobs.Handle, service.Failure](handle)
}
