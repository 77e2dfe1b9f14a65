package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/tair/parts-exchange/pkg/logger"
)

// Config holds tracer settings
type Config struct {
	Enabled        bool    `env:"TRACING_ENABLED" env-default:"true"`
	JaegerEndpoint string  `env:"JAEGER_ENDPOINT" env-default:"http://localhost:14268/api/traces"`
	SampleRatio    float64 `env:"TRACING_SAMPLE_RATIO" env-default:"1"`
}

// Service identifies the process in exported spans
type Service struct {
	Name        string
	Version     string
	Environment string
}

// ShutdownFunc flushes pending spans
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs a Jaeger-backed tracer provider and the W3C propagator used
// for both HTTP and Kafka headers. With tracing disabled only the propagator
// is installed and the returned ShutdownFunc does nothing.
func Setup(svc Service, cfg Config) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	if !cfg.Enabled {
		logger.Logger.Info().Str("service", svc.Name).Msg("Tracing disabled")
		return noopShutdown, nil
	}

	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)),
	)
	if err != nil {
		return noopShutdown, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(svc.Name),
			semconv.ServiceVersion(svc.Version),
			semconv.DeploymentEnvironment(svc.Environment),
		),
	)
	if err != nil {
		return noopShutdown, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)

	logger.Logger.Info().
		Str("service", svc.Name).
		Str("endpoint", cfg.JaegerEndpoint).
		Float64("sample_ratio", cfg.SampleRatio).
		Msg("Tracer initialized")

	return tp.Shutdown, nil
}

// sampler keeps every trace at ratio >= 1 and otherwise follows the parent,
// sampling new roots at ratio
func sampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	if ratio <= 0 {
		return sdktrace.ParentBased(sdktrace.NeverSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
