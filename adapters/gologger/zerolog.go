package gologger

import (
	"context"
	"io"
	"os"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/rs/zerolog"
)

// ZerologProvider hands out glog loggers backed by a single zerolog root.
// Each logger carries its name as the "component" field.
type ZerologProvider struct {
	root zerolog.Logger
}

// NewZerologProvider writes JSON lines to out, or a console layout when
// console is true. An unknown level falls back to info.
func NewZerologProvider(out io.Writer, level string, console bool) *ZerologProvider {
	if out == nil {
		out = os.Stdout
	}
	if console {
		out = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = out })
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return &ZerologProvider{root: zerolog.New(out).Level(lvl).With().Timestamp().Logger()}
}

func (p *ZerologProvider) GetLogger(name string) glog.Logger {
	if p == nil {
		return glog.Nop()
	}
	log := p.root
	if name = strings.TrimSpace(name); name != "" {
		log = log.With().Str("component", name).Logger()
	}
	return &zerologLogger{log: log}
}

// Logger returns the unnamed root logger.
func (p *ZerologProvider) Logger() glog.Logger {
	return p.GetLogger("")
}

type zerologLogger struct {
	log zerolog.Logger
}

func (l *zerologLogger) Trace(msg string, args ...any) { l.emit(l.log.Trace(), msg, args) }
func (l *zerologLogger) Debug(msg string, args ...any) { l.emit(l.log.Debug(), msg, args) }
func (l *zerologLogger) Info(msg string, args ...any)  { l.emit(l.log.Info(), msg, args) }
func (l *zerologLogger) Warn(msg string, args ...any)  { l.emit(l.log.Warn(), msg, args) }
func (l *zerologLogger) Error(msg string, args ...any) { l.emit(l.log.Error(), msg, args) }

// Fatal logs at fatal level without exiting; process lifetime belongs to main.
func (l *zerologLogger) Fatal(msg string, args ...any) {
	l.emit(l.log.WithLevel(zerolog.FatalLevel), msg, args)
}

func (l *zerologLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	return &zerologLogger{log: l.log.With().Ctx(ctx).Logger()}
}

func (l *zerologLogger) emit(event *zerolog.Event, msg string, args []any) {
	if event == nil {
		return
	}
	if len(args) > 0 {
		event = event.Fields(args)
	}
	event.Msg(msg)
}

var (
	_ glog.Logger         = (*zerologLogger)(nil)
	_ glog.LoggerProvider = (*ZerologProvider)(nil)
)
