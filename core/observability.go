package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Observer logs and records metrics for named operations under a common
// prefix, e.g. "crm.service".
type Observer struct {
	prefix  string
	logger  Logger
	metrics MetricsRecorder
	tagKeys []string
}

func NewObserver(prefix string, logger Logger, metrics MetricsRecorder, tagKeys ...string) *Observer {
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return &Observer{
		prefix:  strings.Trim(strings.TrimSpace(prefix), "."),
		logger:  ResolveLogger(prefix, nil, logger),
		metrics: metrics,
		tagKeys: append([]string(nil), tagKeys...),
	}
}

func (o *Observer) Logger() Logger {
	if o == nil {
		return ResolveLogger("crm", nil, nil)
	}
	return o.logger
}

// Observe records <prefix>.<operation>.total and .duration_ms with a status
// tag and logs the outcome. Fields named in tagKeys are promoted to tags.
func (o *Observer) Observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if o == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	elapsed := time.Since(startedAt).Milliseconds()

	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = elapsed
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range o.tagKeys {
		if value := strings.TrimSpace(fmt.Sprint(contextFields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}

	o.metrics.IncCounter(ctx, o.metricName(operation, "total"), 1, mergeTags(nil, tags))
	o.metrics.ObserveHistogram(ctx, o.metricName(operation, "duration_ms"), float64(elapsed), mergeTags(nil, tags))

	if err != nil {
		o.log(ctx, "error", operation+" failed", contextFields)
		return
	}
	o.log(ctx, "info", operation+" succeeded", contextFields)
}

func (o *Observer) metricName(operation string, suffix string) string {
	if o.prefix == "" {
		return operation + "." + suffix
	}
	return o.prefix + "." + operation + "." + suffix
}

func (o *Observer) log(ctx context.Context, level string, message string, fields map[string]any) {
	if o == nil || o.logger == nil {
		return
	}
	logger := o.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
