// Package telemetry wires up the OpenTelemetry SDK behind the bare
// otel.Meter/otel.Tracer handles that internal/storage/sqlite/access_lock.go
// and internal/storage/sqlite/patch.go already call into, the same "library code talks
// to the global provider, the binary installs it" split
// beads/internal/storage/dolt/store.go's otel.Tracer/otel.Meter calls assume
// of whatever process links it in.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Shutdown flushes and tears down whatever provider Setup installed. Always
// non-nil; safe to call even when Setup installed nothing.
type Shutdown func(context.Context) error

// Setup installs a stdout-backed MeterProvider and TracerProvider as the
// process-global OpenTelemetry providers when verbose is true, so
// access_lock.go's lock-wait histogram and patch.go's per-patch spans
// actually go somewhere instead of the default no-op
// implementation. Quiet runs skip installation entirely: storagectl's
// everyday migrate/backup/sweep invocations shouldn't spam stdout with
// metric dumps on every call.
func Setup(ctx context.Context, verbose bool) (Shutdown, error) {
	noop := func(context.Context) error { return nil }
	if !verbose {
		return noop, nil
	}

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
	if err != nil {
		return noop, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
	)
	otel.SetMeterProvider(mp)

	traceExporter, err := stdouttrace.New(stdouttrace.WithoutTimestamps())
	if err != nil {
		_ = mp.Shutdown(ctx)
		return noop, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tp)

	return func(shutdownCtx context.Context) error {
		tErr := tp.Shutdown(shutdownCtx)
		mErr := mp.Shutdown(shutdownCtx)
		if tErr != nil {
			return tErr
		}
		return mErr
	}, nil
}
