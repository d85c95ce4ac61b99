package inbound

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-crm/exponea"
	"github.com/goliatone/go-crm/jobs"
	"github.com/goliatone/go-crm/result"
	"github.com/goliatone/go-crm/service"
	goerrors "github.com/goliatone/go-errors"
)

func TestRegisterExponea_SuccessAnswersAcceptedWithDeliveryKey(t *testing.T) {
	tickets := &stubTicketCaller{res: result.Success[bool, service.Failure](true)}
	consent := &stubConsentCaller{res: result.Success[jobs.Handle, service.Failure](jobs.Handle{ID: "h1"})}
	dispatcher := NewDispatcher(nil, NewMemoryClaimStore())
	if err := RegisterExponea(dispatcher, tickets, consent); err != nil {
		t.Fatalf("register exponea: %v", err)
	}

	res, err := dispatcher.Dispatch(context.Background(), Request{
		Provider: ProviderExponea,
		Event:    EventTicket,
		Headers:  map[string]string{"Idempotency-Key": "evt-7"},
		Body:     map[string]any{"coupon_id": 1},
	})
	if err != nil {
		t.Fatalf("dispatch ticket: %v", err)
	}
	if res.StatusCode != http.StatusAccepted || res.Payload != true {
		t.Fatalf("expected 202 with true payload, got %+v", res)
	}
	if tickets.deliveryKey != "evt-7" {
		t.Fatalf("expected delivery key in context, got %q", tickets.deliveryKey)
	}
	if tickets.data["coupon_id"] != 1 {
		t.Fatalf("expected body forwarded, got %v", tickets.data)
	}

	res, err = dispatcher.Dispatch(context.Background(), Request{Provider: ProviderExponea, Event: EventConsent})
	if err != nil {
		t.Fatalf("dispatch consent: %v", err)
	}
	handle, ok := res.Payload.(jobs.Handle)
	if !ok || handle.ID != "h1" {
		t.Fatalf("expected job handle payload, got %#v", res.Payload)
	}
	if consent.data == nil {
		t.Fatalf("expected non-nil body for empty request")
	}
}

func TestRegisterExponea_FailureMapsStatusAndReleasesClaim(t *testing.T) {
	failure := service.Failure{
		Status: http.StatusUnprocessableEntity,
		Fields: service.ValidationErrors{{Field: "coupon_id", Code: exponea.CodeTicketNotValid, Message: "invalid"}},
	}
	tickets := &stubTicketCaller{res: result.Failure[bool](failure)}
	consent := &stubConsentCaller{res: result.Failure[jobs.Handle](service.CodeFailure(service.CodeNotImplemented))}
	dispatcher := NewDispatcher(nil, NewMemoryClaimStore())
	if err := RegisterExponea(dispatcher, tickets, consent); err != nil {
		t.Fatalf("register exponea: %v", err)
	}

	req := Request{Provider: ProviderExponea, Event: EventTicket, Metadata: map[string]any{"delivery_id": "d1"}}
	res, err := dispatcher.Dispatch(context.Background(), req)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 result, got %d", res.StatusCode)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 envelope, got %v", err)
	}
	if _, err := dispatcher.Dispatch(context.Background(), req); err == nil {
		t.Fatalf("expected rejected delivery to be processed again")
	}
	if tickets.calls != 2 {
		t.Fatalf("expected failed claim released, got %d calls", tickets.calls)
	}

	res, err = dispatcher.Dispatch(context.Background(), Request{Provider: ProviderExponea, Event: EventConsent})
	if err == nil || res.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501 for unknown action, got %d (%v)", res.StatusCode, err)
	}
}

func TestRegisterExponea_RequiresProcessors(t *testing.T) {
	if err := RegisterExponea(NewDispatcher(nil, nil), nil, nil); err == nil {
		t.Fatalf("expected missing processors to be rejected")
	}
}

type stubTicketCaller struct {
	res         result.Result[bool, service.Failure]
	calls       int
	data        map[string]any
	deliveryKey string
}

func (s *stubTicketCaller) Call(ctx context.Context, data map[string]any) result.Result[bool, service.Failure] {
	s.calls++
	s.data = data
	s.deliveryKey = exponea.DeliveryKeyFromContext(ctx)
	return s.res
}

type stubConsentCaller struct {
	res  result.Result[jobs.Handle, service.Failure]
	data map[string]any
}

func (s *stubConsentCaller) Call(_ context.Context, data map[string]any) result.Result[jobs.Handle, service.Failure] {
	s.data = data
	return s.res
}
