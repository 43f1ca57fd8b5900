package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// FormatConsole switches to zerolog's human readable writer for local runs.
const FormatConsole = "console"

type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a stack trace to warnings as well as errors.
	WarnStack bool
	Output    io.Writer
	Format    string
}

// Logger is a zerolog wrapper whose fields travel on the context. Every
// method is safe on a nil *Logger.
type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, FormatConsole) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	root := zerolog.New(out).Level(level).With().Timestamp().Str("service", opts.ServiceName).Logger()
	return &Logger{root: root, warnStack: opts.WarnStack}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{root: zerolog.Nop()}
}

// ParseLevel falls back to info for blank or unknown values.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) from(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if scoped, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
			return scoped
		}
	}
	if l == nil {
		return zerolog.Nop()
	}
	return l.root
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.WithFields(ctx, map[string]any{key: value})
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if l == nil {
		return ctx
	}
	scoped := l.from(ctx).With().Fields(fields).Logger()
	return context.WithValue(ctx, ctxKey{}, scoped)
}

func (l *Logger) WithRequestID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "request_id", id)
}

func (l *Logger) WithUserID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "user_id", id)
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.WithField(ctx, "actor_role", role)
}

func (l *Logger) WithOrderID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "order_id", id)
}

func (l *Logger) WithPayoutID(ctx context.Context, id string) context.Context {
	return l.WithField(ctx, "payout_id", id)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.event(ctx, zerolog.DebugLevel).Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.event(ctx, zerolog.InfoLevel).Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	e := l.event(ctx, zerolog.WarnLevel)
	if l != nil && l.warnStack {
		e = e.Str("stack", stack())
	}
	e.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	l.event(ctx, zerolog.ErrorLevel).Err(err).Str("stack", stack()).Msg(msg)
}

// event starts an entry and stamps the active span so log lines can be
// joined with traces.
func (l *Logger) event(ctx context.Context, level zerolog.Level) *zerolog.Event {
	zl := l.from(ctx)
	e := zl.WithLevel(level)
	if ctx == nil || e == nil {
		return e
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		e = e.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}
	return e
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
