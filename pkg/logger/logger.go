package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

var Logger = zerolog.New(io.Discard)

type ctxKey struct{}

// Init replaces Logger with a JSON writer, or a console writer in development
func Init(serviceName string, isDevelopment bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	if isDevelopment {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	Logger = zerolog.New(out).With().Timestamp().Str("service", serviceName).Logger()

	log.Logger = Logger
}

// SetLevel sets the global log level. Unknown values fall back to info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// WithRequestID stores the request id so WithContext can attach it
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestID returns the request id stored in ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithContext returns Logger enriched with the span and request id found in ctx
func WithContext(ctx context.Context) *zerolog.Logger {
	fields := Logger.With()
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = fields.
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}
	if id := RequestID(ctx); id != "" {
		fields = fields.Str("request_id", id)
	}
	l := fields.Logger()
	return &l
}

func at(ctx context.Context, level zerolog.Level) *zerolog.Event {
	return WithContext(ctx).WithLevel(level)
}

// Debug, Info, Warn and Error start an event carrying the context fields.
func Debug(ctx context.Context) *zerolog.Event { return at(ctx, zerolog.DebugLevel) }
func Info(ctx context.Context) *zerolog.Event  { return at(ctx, zerolog.InfoLevel) }
func Warn(ctx context.Context) *zerolog.Event  { return at(ctx, zerolog.WarnLevel) }
func Error(ctx context.Context) *zerolog.Event { return at(ctx, zerolog.ErrorLevel) }
