package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-crm/core"
	"github.com/goliatone/go-crm/exports"
	"github.com/goliatone/go-crm/inbound"
	goerrors "github.com/goliatone/go-errors"
)

const DefaultMaxBodyBytes int64 = 1 << 20

type WebhookDispatcher interface {
	Dispatch(ctx context.Context, req inbound.Request) (inbound.Result, error)
}

type Options struct {
	Dispatcher     WebhookDispatcher
	Exports        exports.Lister
	Logger         core.Logger
	Metrics        core.MetricsRecorder
	MetricsHandler http.Handler
	// Ready reports whether dependencies such as the database are reachable.
	Ready        func(ctx context.Context) error
	MaxBodyBytes int64
}

type router struct {
	opts     Options
	logger   core.Logger
	observer *core.Observer
}

func NewRouter(opts Options) (http.Handler, error) {
	if opts.Dispatcher == nil {
		return nil, core.InternalError("httpapi: webhook dispatcher is required", nil)
	}
	if opts.Exports == nil {
		return nil, core.InternalError("httpapi: export lister is required", nil)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	logger := core.ResolveLogger("crm.http", nil, opts.Logger)
	rt := &router{
		opts:     opts,
		logger:   logger,
		observer: core.NewObserver("crm.http", logger, opts.Metrics, "route", "status_code"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.observe)

	r.Get("/healthz", rt.health)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}
	r.Post("/webhooks/{provider}/{event}", rt.webhook)
	r.Get("/customer-exports", rt.listExports)
	return r, nil
}

func (rt *router) health(w http.ResponseWriter, r *http.Request) {
	if rt.opts.Ready != nil {
		if err := rt.opts.Ready(r.Context()); err != nil {
			writeError(w, core.WrapError(err, goerrors.CategoryOperation, "httpapi: dependency unavailable",
				http.StatusServiceUnavailable, core.ErrorOperationFailed, nil))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (rt *router) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r, rt.opts.MaxBodyBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := rt.opts.Dispatcher.Dispatch(r.Context(), inbound.Request{
		Provider: chi.URLParam(r, "provider"),
		Event:    chi.URLParam(r, "event"),
		Headers:  flattenHeaders(r.Header),
		Body:     body,
		Metadata: map[string]any{"request_id": middleware.GetReqID(r.Context())},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	status := result.StatusCode
	if status == 0 {
		status = http.StatusAccepted
	}
	payload := map[string]any{"accepted": result.Accepted}
	if result.Metadata["deduped"] == true {
		payload["deduped"] = true
	}
	if result.Payload != nil {
		payload["result"] = result.Payload
	}
	writeJSON(w, status, payload)
}

func (rt *router) listExports(w http.ResponseWriter, r *http.Request) {
	req, err := exports.ParseQuery(r.URL.RawQuery)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := rt.opts.Exports.List(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// observe records crm.http.request.total and .duration_ms per route pattern.
func (rt *router) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var err error
		if status >= http.StatusInternalServerError {
			err = errors.New(http.StatusText(status))
		}
		rt.observer.Observe(r.Context(), startedAt, "request", err, map[string]any{
			"route":       route,
			"method":      r.Method,
			"status_code": status,
		})
	})
}

func decodeBody(r *http.Request, limit int64) (map[string]any, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, core.BadInputError("httpapi: read request body: "+err.Error(), nil)
	}
	if int64(len(raw)) > limit {
		return nil, core.BadInputError("httpapi: request body too large", map[string]any{"limit": limit})
	}
	body := map[string]any{}
	if strings.TrimSpace(string(raw)) == "" {
		return body, nil
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, core.BadInputError("httpapi: request body must be a JSON object", nil)
	}
	return body, nil
}

func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key := range header {
		out[key] = header.Get(key)
	}
	return out
}
