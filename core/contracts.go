package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// ResolveLogger returns a logger named after component, preferring the
// provider when one is supplied.
func ResolveLogger(component string, provider LoggerProvider, logger Logger) Logger {
	provider, logger = glog.Resolve(component, provider, logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(component); named != nil {
			logger = glog.Ensure(named)
		}
	}
	return logger
}
