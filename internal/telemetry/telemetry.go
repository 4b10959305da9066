// Package telemetry installs the global OpenTelemetry trace and meter
// providers, exporting over OTLP/gRPC.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// DefaultServiceName is reported when the config leaves service_name empty.
const DefaultServiceName = "gamedata-etl"

const exportInterval = 30 * time.Second

// Shutdown flushes and stops the installed providers.
type Shutdown func(ctx context.Context) error

func noop(context.Context) error { return nil }

// Setup installs OTLP exporters when cfg names an endpoint. With a nil config
// or an empty endpoint it installs nothing and returns a no-op Shutdown.
func Setup(ctx context.Context, cfg *types.TelemetryConfig) (Shutdown, error) {
	if cfg == nil || cfg.OTLPEndpoint == "" {
		return noop, nil
	}

	res := Resource(cfg)

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	traceExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = traceExp.Shutdown(ctx)
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(exportInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

// Resource describes this process to the collector.
func Resource(cfg *types.TelemetryConfig) *resource.Resource {
	name := DefaultServiceName
	if cfg != nil && cfg.ServiceName != "" {
		name = cfg.ServiceName
	}
	return resource.NewSchemaless(attribute.String("service.name", name))
}
