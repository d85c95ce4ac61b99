package inbound

import (
	"context"
	"net/http"

	"github.com/goliatone/go-crm/exponea"
	"github.com/goliatone/go-crm/jobs"
	"github.com/goliatone/go-crm/result"
	"github.com/goliatone/go-crm/service"
)

const (
	ProviderExponea = "exponea"
	EventTicket     = "ticket"
	EventConsent    = "consent"
)

type TicketCaller interface {
	Call(ctx context.Context, data map[string]any) result.Result[bool, service.Failure]
}

type ConsentCaller interface {
	Call(ctx context.Context, data map[string]any) result.Result[jobs.Handle, service.Failure]
}

// RegisterExponea routes exponea ticket and consent webhooks.
func RegisterExponea(d *Dispatcher, tickets TicketCaller, consent ConsentCaller) error {
	if tickets == nil || consent == nil {
		return inboundBadInput("inbound: exponea processors are required", nil)
	}
	if err := d.Register(ProviderExponea, EventTicket, ServiceHandler(tickets.Call)); err != nil {
		return err
	}
	return d.Register(ProviderExponea, EventConsent, ServiceHandler(consent.Call))
}

// ServiceHandler adapts a service call into a Handler. Success answers 202
// with the value as payload; a failure answers with its mapped status.
func ServiceHandler[T any](call func(context.Context, map[string]any) result.Result[T, service.Failure]) Handler {
	return HandlerFunc(func(ctx context.Context, req Request) (Result, error) {
		if req.DeliveryKey != "" {
			ctx = exponea.WithDeliveryKey(ctx, req.DeliveryKey)
		}
		body := req.Body
		if body == nil {
			body = map[string]any{}
		}
		res := call(ctx, body)
		if res.IsFailure() {
			failure := res.Reason()
			return Result{StatusCode: failure.HTTPStatus()}, failure.AsError()
		}
		return Result{
			Accepted:   true,
			StatusCode: http.StatusAccepted,
			Payload:    res.Value(),
		}, nil
	})
}
