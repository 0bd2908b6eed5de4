package observability

import (
	"context"
	"time"

	"github.com/storefront-api/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// InitTracer installs an OTLP/gRPC tracer provider when OTEL_EXPORTER_ENDPOINT
// is set. The returned function flushes and stops it; it is never nil.
func InitTracer(ctx context.Context, cfg *config.Config, log *zap.Logger) func() {
	noop := func() {}
	if cfg.OTelEndpoint == "" {
		log.Info("tracing disabled")
		return noop
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		log.Error("failed to create OTLP exporter", zap.Error(err))
		return noop
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("storefront-api"),
			semconv.DeploymentEnvironment(cfg.AppEnv),
		),
	)
	if err != nil {
		log.Error("failed to create resource", zap.Error(err))
		return noop
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	log.Info("tracer initialized", zap.String("endpoint", cfg.OTelEndpoint))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer provider", zap.Error(err))
		}
	}
}
