package inbound

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-crm/core"
	goerrors "github.com/goliatone/go-errors"
)

const DefaultKeyTTL = 10 * time.Minute

type IdempotencyKeyExtractor func(req Request) (string, error)

type Dispatcher struct {
	Verifier   Verifier
	Store      ClaimStore
	ExtractKey IdempotencyKeyExtractor
	KeyTTL     time.Duration
	// RequireKey rejects deliveries without an idempotency key when a
	// store is configured.
	RequireKey bool

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher(verifier Verifier, store ClaimStore) *Dispatcher {
	return &Dispatcher{
		Verifier:   verifier,
		Store:      store,
		ExtractKey: DefaultIdempotencyKeyExtractor,
		KeyTTL:     DefaultKeyTTL,
		handlers:   map[string]Handler{},
	}
}

func (d *Dispatcher) Register(provider, event string, handler Handler) error {
	if d == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	if handler == nil {
		return inboundBadInput("inbound: handler is nil", nil)
	}
	provider = normalize(provider)
	event = normalize(event)
	if provider == "" || event == "" {
		return inboundBadInput("inbound: provider and event are required", map[string]any{
			"provider": provider,
			"event":    event,
		})
	}
	route := routeKey(provider, event)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = map[string]Handler{}
	}
	if _, exists := d.handlers[route]; exists {
		return inboundError(
			fmt.Sprintf("inbound: handler already registered for %q", route),
			goerrors.CategoryConflict,
			http.StatusConflict,
			core.ErrorConflict,
			map[string]any{"provider": provider, "event": event},
		)
	}
	d.handlers[route] = handler
	return nil
}

// Routes lists registered provider:event pairs.
func (d *Dispatcher) Routes() []string {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for route := range d.handlers {
		out = append(out, route)
	}
	return out
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if d == nil {
		return Result{}, inboundInternal("inbound: dispatcher is nil", nil)
	}
	req.Provider = normalize(req.Provider)
	req.Event = normalize(req.Event)
	meta := map[string]any{"provider": req.Provider, "event": req.Event}
	if req.Provider == "" || req.Event == "" {
		return Result{}, inboundBadInput("inbound: provider and event are required", meta)
	}
	if d.Verifier != nil {
		if err := d.Verifier.Verify(ctx, req); err != nil {
			return Result{
					Accepted:   false,
					StatusCode: http.StatusUnauthorized,
					Metadata: map[string]any{
						"provider": req.Provider,
						"event":    req.Event,
						"rejected": true,
					},
				}, inboundWrapError(
					err,
					goerrors.CategoryAuth,
					"inbound: request verification failed",
					http.StatusUnauthorized,
					core.ErrorUnauthorized,
					meta,
				)
		}
	}

	handler := d.handlerFor(req.Provider, req.Event)
	if handler == nil {
		return Result{}, inboundError(
			fmt.Sprintf("inbound: no handler registered for %q", routeKey(req.Provider, req.Event)),
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			core.ErrorNotFound,
			meta,
		)
	}

	claimID := ""
	if d.Store != nil {
		extractor := d.ExtractKey
		if extractor == nil {
			extractor = DefaultIdempotencyKeyExtractor
		}
		key, err := extractor(req)
		if err != nil {
			return Result{}, inboundWrapError(
				err,
				goerrors.CategoryBadInput,
				"inbound: resolve idempotency key",
				http.StatusBadRequest,
				core.ErrorBadInput,
				meta,
			)
		}
		if key == "" && d.RequireKey {
			return Result{}, inboundBadInput("inbound: idempotency key is required", meta)
		}
		if key != "" {
			var accepted bool
			claimID, accepted, err = d.Store.Claim(ctx, routeKey(req.Provider, req.Event)+":"+key, d.keyTTL())
			if err != nil {
				return Result{}, inboundWrapError(
					err,
					goerrors.CategoryOperation,
					"inbound: idempotency claim failed",
					http.StatusInternalServerError,
					core.ErrorOperationFailed,
					map[string]any{
						"provider":    req.Provider,
						"event":       req.Event,
						"idempotency": key,
					},
				)
			}
			if !accepted {
				return Result{
					Accepted:   true,
					StatusCode: http.StatusOK,
					Metadata: map[string]any{
						"provider": req.Provider,
						"event":    req.Event,
						"deduped":  true,
					},
				}, nil
			}
			req.DeliveryKey = key
		}
	}

	result, err := handler.Handle(ctx, req)
	if err != nil {
		handlerErr := handlerFailure(err, meta)
		if failErr := d.fail(ctx, claimID, err); failErr != nil {
			return result, errors.Join(handlerErr, failErr)
		}
		return result, handlerErr
	}
	if !result.Accepted || result.StatusCode >= http.StatusInternalServerError {
		retryErr := inboundError(
			fmt.Sprintf("inbound: handler returned retryable status %d", result.StatusCode),
			goerrors.CategoryOperation,
			http.StatusBadGateway,
			core.ErrorOperationFailed,
			map[string]any{
				"provider":    req.Provider,
				"event":       req.Event,
				"status_code": result.StatusCode,
			},
		)
		if failErr := d.fail(ctx, claimID, retryErr); failErr != nil {
			return result, errors.Join(retryErr, failErr)
		}
		return result, retryErr
	}
	if d.Store != nil && claimID != "" {
		if err := d.Store.Complete(ctx, claimID); err != nil {
			return Result{}, inboundWrapError(
				err,
				goerrors.CategoryOperation,
				"inbound: complete idempotency claim",
				http.StatusInternalServerError,
				core.ErrorOperationFailed,
				map[string]any{"provider": req.Provider, "event": req.Event, "claim_id": claimID},
			)
		}
	}
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["provider"] = req.Provider
	result.Metadata["event"] = req.Event
	return result, nil
}

// handlerFailure keeps envelopes that already carry a status so transports
// answer with the handler's code; anything else becomes an operation failure.
func handlerFailure(err error, meta map[string]any) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code > 0 {
		return err
	}
	return inboundWrapError(
		err,
		goerrors.CategoryOperation,
		"inbound: handler execution failed",
		http.StatusBadGateway,
		core.ErrorOperationFailed,
		meta,
	)
}

func (d *Dispatcher) fail(ctx context.Context, claimID string, cause error) error {
	if d.Store == nil || claimID == "" {
		return nil
	}
	if err := d.Store.Fail(ctx, claimID, cause, time.Time{}); err != nil {
		return inboundWrapError(
			err,
			goerrors.CategoryOperation,
			"inbound: mark idempotency claim failed",
			http.StatusInternalServerError,
			core.ErrorInternal,
			map[string]any{"claim_id": claimID},
		)
	}
	return nil
}

// DefaultIdempotencyKeyExtractor reads the delivery key from metadata or
// headers. A delivery without one yields an empty key.
func DefaultIdempotencyKeyExtractor(req Request) (string, error) {
	if req.Metadata != nil {
		for _, name := range []string{"idempotency_key", "delivery_id", "message_id"} {
			if value := trimAny(req.Metadata[name]); value != "" {
				return value, nil
			}
		}
	}
	if req.Headers != nil {
		for _, name := range []string{"idempotency-key", "x-idempotency-key", "x-delivery-id"} {
			if value := headerValue(req.Headers, name); value != "" {
				return value, nil
			}
		}
	}
	if req.Body != nil {
		if value := trimAny(req.Body["delivery_id"]); value != "" {
			return value, nil
		}
	}
	return "", nil
}

func (d *Dispatcher) keyTTL() time.Duration {
	if d != nil && d.KeyTTL > 0 {
		return d.KeyTTL
	}
	return DefaultKeyTTL
}

func (d *Dispatcher) handlerFor(provider, event string) Handler {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[routeKey(provider, event)]
}

func routeKey(provider, event string) string {
	return provider + ":" + event
}

func normalize(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}

func trimAny(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
