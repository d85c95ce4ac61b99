// Package service composes request handlers from a core function and an
// explicit, ordered list of middleware. Every call ends in exactly one of
// result.Success or result.Failure.
package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-crm/core"
	"github.com/goliatone/go-crm/result"
	goerrors "github.com/goliatone/go-errors"
)

// ErrNotImplemented is raised, as a panic, when a Service without a core
// handler is called.
var ErrNotImplemented = goerrors.New("service: call not implemented", goerrors.CategoryInternal).
	WithCode(http.StatusNotImplemented).
	WithTextCode(core.ErrorNotImplemented)

type Handler[P any, T any] func(ctx context.Context, params P) result.Result[T, Failure]

type Middleware[P any, T any] func(next Handler[P, T]) Handler[P, T]

type Option[P any, T any] func(*Service[P, T])

type Service[P any, T any] struct {
	name        string
	core        Handler[P, T]
	middlewares []Middleware[P, T]
	observer    *core.Observer
	handler     Handler[P, T]
}

// Use appends middleware. The first middleware given is the outermost.
func Use[P any, T any](middlewares ...Middleware[P, T]) Option[P, T] {
	return func(s *Service[P, T]) {
		for _, mw := range middlewares {
			if mw != nil {
				s.middlewares = append(s.middlewares, mw)
			}
		}
	}
}

func WithObserver[P any, T any](observer *core.Observer) Option[P, T] {
	return func(s *Service[P, T]) {
		if observer != nil {
			s.observer = observer
		}
	}
}

func New[P any, T any](name string, handler Handler[P, T], opts ...Option[P, T]) (*Service[P, T], error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.InternalError("service: name is required", nil)
	}
	if handler == nil {
		return nil, core.InternalError("service: core handler is required", map[string]any{"service": name})
	}
	svc := &Service[P, T]{name: name, core: handler}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	if svc.observer == nil {
		svc.observer = core.NewObserver("crm.service", nil, nil)
	}

	composed := handler
	for i := len(svc.middlewares) - 1; i >= 0; i-- {
		composed = svc.middlewares[i](composed)
	}
	svc.handler = composed
	return svc, nil
}

func (s *Service[P, T]) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Call runs the composed chain. Panics from the chain are not recovered.
func (s *Service[P, T]) Call(ctx context.Context, params P) result.Result[T, Failure] {
	if s == nil || s.handler == nil {
		panic(ErrNotImplemented)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	out := s.handler(ctx, params)

	fields := map[string]any{"service": s.name}
	var err error
	if out.IsFailure() {
		reason := out.Reason()
		err = reason
		if reason.Code != "" {
			fields["failure_code"] = reason.Code
		}
		if reason.Status != 0 {
			fields["failure_status"] = reason.Status
		}
	}
	s.observer.Observe(ctx, startedAt, s.name, err, fields)
	return out
}
