// Package metrics backs core.MetricsRecorder with Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-crm/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var DefaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

type Option func(*Recorder)

func WithRegistry(registry *prometheus.Registry) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

func WithBuckets(buckets ...float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// Recorder creates collectors lazily from metric names such as
// "crm.service.exponea.ticket_webhook.total". The label set of a metric is
// fixed by its first observation; later tags outside that set are dropped.
type Recorder struct {
	registry *prometheus.Registry
	buckets  []float64

	mu         sync.Mutex
	counters   map[string]*counterEntry
	histograms map[string]*histogramEntry
}

type counterEntry struct {
	vec    *prometheus.CounterVec
	labels []string
}

type histogramEntry struct {
	vec    *prometheus.HistogramVec
	labels []string
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		registry:   prometheus.NewRegistry(),
		buckets:    DefaultBuckets,
		counters:   map[string]*counterEntry{},
		histograms: map[string]*histogramEntry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler exposes the recorder registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	entry, err := r.counter(name, tags)
	if err != nil {
		return
	}
	entry.vec.With(labelValues(entry.labels, tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	entry, err := r.histogram(name, tags)
	if err != nil {
		return
	}
	entry.vec.With(labelValues(entry.labels, tags)).Observe(value)
}

func (r *Recorder) counter(name string, tags map[string]string) (*counterEntry, error) {
	metric := CounterName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.counters[metric]; ok {
		return entry, nil
	}
	labels := labelNames(tags)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metric,
		Help: "Counter recorded for " + strings.TrimSpace(name) + ".",
	}, labels)
	if err := r.registry.Register(vec); err != nil {
		var exists prometheus.AlreadyRegisteredError
		if !errors.As(err, &exists) {
			return nil, err
		}
		existing, ok := exists.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	entry := &counterEntry{vec: vec, labels: labels}
	r.counters[metric] = entry
	return entry, nil
}

func (r *Recorder) histogram(name string, tags map[string]string) (*histogramEntry, error) {
	metric := SanitizeName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.histograms[metric]; ok {
		return entry, nil
	}
	labels := labelNames(tags)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metric,
		Help:    "Histogram recorded for " + strings.TrimSpace(name) + ".",
		Buckets: r.buckets,
	}, labels)
	if err := r.registry.Register(vec); err != nil {
		var exists prometheus.AlreadyRegisteredError
		if !errors.As(err, &exists) {
			return nil, err
		}
		existing, ok := exists.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, err
		}
		vec = existing
	}
	entry := &histogramEntry{vec: vec, labels: labels}
	r.histograms[metric] = entry
	return entry, nil
}

// SanitizeName maps a dotted metric name onto the Prometheus charset.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "crm_unnamed"
	}
	var b strings.Builder
	for i, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_', ch == ':':
			b.WriteRune(ch)
		case ch >= '0' && ch <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(ch)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// CounterName sanitizes name and ensures the conventional _total suffix.
func CounterName(name string) string {
	metric := SanitizeName(name)
	if !strings.HasSuffix(metric, "_total") {
		metric += "_total"
	}
	return metric
}

func labelNames(tags map[string]string) []string {
	labels := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for key := range tags {
		label := SanitizeName(key)
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func labelValues(labels []string, tags map[string]string) prometheus.Labels {
	values := make(prometheus.Labels, len(labels))
	for _, label := range labels {
		values[label] = ""
	}
	for key, value := range tags {
		label := SanitizeName(key)
		if _, ok := values[label]; ok {
			values[label] = value
		}
	}
	return values
}

var _ core.MetricsRecorder = (*Recorder)(nil)
