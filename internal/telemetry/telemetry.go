// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry wires OpenTelemetry tracing for backend requests.
// Spans are exported as pretty-printed JSON into a rotating file so they can
// be inspected without a collector.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jeranaias/linuxassist/internal/config"
)

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(context.Context) error

// Init returns the tracer provider described by cfg. When tracing is
// disabled a no-op provider is returned and nothing touches the disk.
func Init(ctx context.Context, cfg config.TelemetryConfig, version string) (trace.TracerProvider, ShutdownFunc, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.TraceFile), 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	traceFile := &lumberjack.Logger{
		Filename:   cfg.TraceFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	tp, err := NewProvider(ctx, traceFile, cfg.ServiceName, version)
	if err != nil {
		traceFile.Close()
		return nil, nil, err
	}
	otel.SetTracerProvider(tp)

	shutdown := func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := traceFile.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return tp, shutdown, nil
}

// NewProvider builds a batching SDK provider that writes spans to w.
func NewProvider(ctx context.Context, w io.Writer, serviceName, version string) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}
