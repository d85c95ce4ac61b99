package inbound

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/goliatone/go-crm/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestDispatch_MissingRouteReturnsRichError(t *testing.T) {
	dispatcher := NewDispatcher(nil, nil)
	_, err := dispatcher.Dispatch(context.Background(), Request{Provider: "exponea", Event: "unknown"})
	assertEnvelope(t, err, goerrors.CategoryNotFound, core.ErrorNotFound, http.StatusNotFound)
}

func TestDispatch_VerificationFailureReturnsRichError(t *testing.T) {
	dispatcher := NewDispatcher(stubVerifier{err: errors.New("invalid token")}, NewMemoryClaimStore())
	if err := dispatcher.Register("exponea", "ticket", &stubHandler{}); err != nil {
		t.Fatalf("register handler: %v", err)
	}
	_, err := dispatcher.Dispatch(context.Background(), Request{
		Provider: "exponea",
		Event:    "ticket",
		Metadata: map[string]any{"delivery_id": "d1"},
	})
	assertEnvelope(t, err, goerrors.CategoryAuth, core.ErrorUnauthorized, http.StatusUnauthorized)
}

func TestDispatch_PlainHandlerErrorBecomesOperationFailure(t *testing.T) {
	dispatcher := NewDispatcher(nil, nil)
	if err := dispatcher.Register("exponea", "ticket", &stubHandler{err: errors.New("boom")}); err != nil {
		t.Fatalf("register handler: %v", err)
	}
	_, err := dispatcher.Dispatch(context.Background(), Request{Provider: "exponea", Event: "ticket"})
	assertEnvelope(t, err, goerrors.CategoryOperation, core.ErrorOperationFailed, http.StatusBadGateway)
}

func TestDispatch_RichHandlerErrorKeepsStatus(t *testing.T) {
	dispatcher := NewDispatcher(nil, nil)
	rich := core.NewError("coupon missing", goerrors.CategoryNotFound, http.StatusNotFound, core.ErrorNotFound, nil)
	if err := dispatcher.Register("exponea", "ticket", &stubHandler{err: rich}); err != nil {
		t.Fatalf("register handler: %v", err)
	}
	_, err := dispatcher.Dispatch(context.Background(), Request{Provider: "exponea", Event: "ticket"})
	assertEnvelope(t, err, goerrors.CategoryNotFound, core.ErrorNotFound, http.StatusNotFound)
}

func assertEnvelope(t *testing.T, err error, category goerrors.Category, textCode string, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != category {
		t.Fatalf("expected %q category, got %q", category, rich.Category)
	}
	if rich.TextCode != textCode {
		t.Fatalf("expected %q text code, got %q", textCode, rich.TextCode)
	}
	if rich.Code != code {
		t.Fatalf("expected %d code, got %d", code, rich.Code)
	}
}
