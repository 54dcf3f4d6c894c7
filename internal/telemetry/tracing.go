// Package telemetry sets up tracing and the metrics endpoint.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Supported trace exporters.
const (
	TracingNone   = "none"
	TracingStdout = "stdout"
)

// TracingConfig controls trace export.
type TracingConfig struct {
	ServiceName string
	Exporter    string
	// Output receives stdout exporter spans. Defaults to stderr, stdout
	// may be the host protocol stream.
	Output io.Writer
}

// Tracing owns the SDK tracer provider, if one was installed.
type Tracing struct {
	tracerProvider *sdktrace.TracerProvider
	shutdownOnce   sync.Once
}

// SetupTracing installs a global tracer provider for cfg.Exporter. With
// TracingNone the otel no-op provider stays in place.
func SetupTracing(ctx context.Context, cfg TracingConfig) (*Tracing, error) {
	switch cfg.Exporter {
	case "", TracingNone:
		return &Tracing{}, nil
	case TracingStdout:
	default:
		return nil, fmt.Errorf("unsupported tracing exporter %q (must be one of: %s, %s)", cfg.Exporter, TracingNone, TracingStdout)
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "completion-bridge"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Output))
	if err != nil {
		return nil, fmt.Errorf("init stdout trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithMaxExportBatchSize(64)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Tracing{tracerProvider: tp}, nil
}

// Enabled reports whether spans are exported.
func (t *Tracing) Enabled() bool {
	return t.tracerProvider != nil
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracing) Shutdown(ctx context.Context) error {
	var err error
	t.shutdownOnce.Do(func() {
		if t.tracerProvider != nil {
			err = t.tracerProvider.Shutdown(ctx)
		}
	})
	return err
}
