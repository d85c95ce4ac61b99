// Package gologger bridges glog loggers to CRM components and go-job.
package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Components resolves one named logger per CRM component. Names are
// prefixed with root, so "crm" and "jobs" yields "crm.jobs".
func Components(root string, provider glog.LoggerProvider, logger glog.Logger, names ...string) map[string]glog.Logger {
	root = strings.TrimSpace(root)
	provider, logger = Resolve(root, provider, logger)
	out := make(map[string]glog.Logger, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		full := name
		if root != "" {
			full = root + "." + name
		}
		named := logger
		if provider != nil {
			if candidate := provider.GetLogger(full); candidate != nil {
				named = candidate
			}
		}
		out[name] = glog.Ensure(named)
	}
	return out
}

func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
