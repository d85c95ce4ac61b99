package core

import (
	"context"
	"strings"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// StaticTagRecorder forwards samples with a fixed tag set merged in. Tags set
// at the call site win.
type StaticTagRecorder struct {
	next MetricsRecorder
	tags map[string]string
}

// WithStaticTags wraps next. Blank keys and values are dropped; with nothing
// left to add, next is returned unchanged.
func WithStaticTags(next MetricsRecorder, tags map[string]string) MetricsRecorder {
	if next == nil {
		next = NopMetricsRecorder{}
	}
	static := map[string]string{}
	for key, value := range tags {
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key != "" && value != "" {
			static[key] = value
		}
	}
	if len(static) == 0 {
		return next
	}
	return &StaticTagRecorder{next: next, tags: static}
}

func (r *StaticTagRecorder) IncCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	r.next.IncCounter(ctx, name, value, mergeTags(r.tags, tags))
}

func (r *StaticTagRecorder) ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	r.next.ObserveHistogram(ctx, name, value, mergeTags(r.tags, tags))
}

// mergeTags copies base and then overlay into a fresh map.
func mergeTags(base map[string]string, overlay map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overlay))
	for key, value := range base {
		out[key] = value
	}
	for key, value := range overlay {
		out[key] = value
	}
	return out
}
