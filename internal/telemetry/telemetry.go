// Package telemetry installs the global OpenTelemetry trace and metric providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gitlab.com/yelinaung/paywatch/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const metricInterval = 30 * time.Second

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(context.Context) error

// Options selects the exporter and describes the service.
type Options struct {
	Exporter    string
	ServiceName string
	Version     string
	// Writer receives stdout exports. Defaults to os.Stdout.
	Writer io.Writer
}

// Setup installs global providers for opts.Exporter. With config.ExporterNone
// nothing is installed and the returned shutdown is a no-op.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if opts.Exporter == "" || opts.Exporter == config.ExporterNone {
		return func(context.Context) error { return nil }, nil
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	spanExporter, metricExporter, err := newExporters(ctx, opts)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricInterval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newExporters(ctx context.Context, opts Options) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	var (
		spans   sdktrace.SpanExporter
		metrics sdkmetric.Exporter
		err     error
	)

	switch opts.Exporter {
	case config.ExporterStdout:
		if spans, err = stdouttrace.New(stdouttrace.WithWriter(opts.Writer)); err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		if metrics, err = stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer)); err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
	case config.ExporterOTLPGRPC:
		// Endpoints come from the standard OTEL_EXPORTER_OTLP_* variables.
		if spans, err = otlptracegrpc.New(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP gRPC trace exporter: %w", err)
		}
		if metrics, err = otlpmetricgrpc.New(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP gRPC metric exporter: %w", err)
		}
	case config.ExporterOTLPHTTP:
		if spans, err = otlptracehttp.New(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP HTTP trace exporter: %w", err)
		}
		if metrics, err = otlpmetrichttp.New(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP HTTP metric exporter: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("unknown telemetry exporter %q", opts.Exporter)
	}
	return spans, metrics, nil
}
