// Package telemetry provides OpenTelemetry integration for exporting
// performance spans.
//
// The package initializes a global TracerProvider from standard
// environment variables; spans recorded anywhere in the module (for
// example the per-chunk spans a Network exports after a profiled run)
// flow through it.
//
// Environment Variables:
//
//	OTEL_ENABLED                - Enable/disable tracing (default: false)
//	OTEL_SERVICE_NAME           - Service name (default: llrt)
//	OTEL_SERVICE_VERSION        - Service version (default: unknown)
//	OTEL_EXPORTER_OTLP_ENDPOINT - OTLP collector endpoint
//	OTEL_EXPORTER_OTLP_PROTOCOL - grpc or http/protobuf (default: grpc)
//	OTEL_EXPORTER_OTLP_HEADERS  - Headers (e.g. Authorization=Bearer xxx)
//	OTEL_EXPORTER_OTLP_INSECURE - Use insecure connection (default: false)
//	OTEL_TRACES_SAMPLER         - Sampler type (default: always_on)
//	OTEL_TRACES_SAMPLER_ARG     - Sampler argument (e.g. ratio)
//	OTEL_RESOURCE_ATTRIBUTES    - Additional resource attributes
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
)

var (
	globalConfig *Config
	configOnce   sync.Once
)

// ShutdownFunc is a function that shuts down the TracerProvider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error {
	return nil
}

// Init initializes OpenTelemetry and sets up the global
// TracerProvider. If OTEL_ENABLED is not "true" it returns a no-op
// shutdown function and the default no-op provider stays in place.
func Init(ctx context.Context) (ShutdownFunc, error) {
	cfg := loadConfig()

	if !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(createSampler(cfg)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return tp.Shutdown(ctx)
	}, nil
}

// Enabled returns whether OpenTelemetry tracing is enabled.
func Enabled() bool {
	return loadConfig().Enabled
}

func loadConfig() *Config {
	configOnce.Do(func() {
		globalConfig = LoadFromEnv()
	})
	return globalConfig
}
