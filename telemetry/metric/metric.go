//
// Tencent is pleased to support the open source community by making trpc-opflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-opflow-go is licensed under the Apache License Version 2.0.
//
//

// Package metric provides the OpenTelemetry meter used by trpc-opflow-go.
package metric

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	// InstrumentName is the meter instrumentation scope name.
	InstrumentName = "trpc.opflow.go"

	defaultEndpoint = "localhost:4317"
)

// Attribute keys for operator invocation metrics.
const (
	KeyOperatorName = "opflow.operator.name"
	KeyErrorType    = "opflow.error.type"
)

// grpcNewClient is a package-level variable to allow test injection of a
// custom dialer.
var grpcNewClient = grpc.NewClient

// Instruments recording operator invocations. No-op until Start installs a
// real provider.
var (
	Meter metric.Meter = noop.NewMeterProvider().Meter(InstrumentName)

	InvocationCnt      metric.Int64Counter     = noop.Int64Counter{}
	InvocationDuration metric.Float64Histogram = noop.Float64Histogram{}
)

// Start installs a meter provider exporting through OTLP gRPC and rebinds the
// package instruments to it. The returned clean function shuts the provider
// down.
func Start(ctx context.Context, endpoint string) (clean func() error, err error) {
	if endpoint == "" {
		endpoint = metricsEndpoint()
	}
	conn, err := grpcNewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial otlp endpoint %s: %w", endpoint, err)
	}
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(provider)
	Meter = provider.Meter(InstrumentName)

	if InvocationCnt, err = Meter.Int64Counter("opflow.operator.invocations"); err != nil {
		return nil, fmt.Errorf("create invocation counter: %w", err)
	}
	if InvocationDuration, err = Meter.Float64Histogram("opflow.operator.invocation.duration",
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create invocation histogram: %w", err)
	}

	return func() error {
		defer func() { _ = conn.Close() }()
		return provider.Shutdown(context.Background())
	}, nil
}

// IncInvocationCnt counts one operator invocation.
func IncInvocationCnt(ctx context.Context, operatorName string) {
	InvocationCnt.Add(ctx, 1,
		metric.WithAttributes(attribute.String(KeyOperatorName, operatorName)))
}

// RecordInvocationDuration records the wall time of one operator invocation.
func RecordInvocationDuration(ctx context.Context, operatorName string, d time.Duration) {
	InvocationDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String(KeyOperatorName, operatorName)))
}

func metricsEndpoint() string {
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); ep != "" {
		return ep
	}
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
		return ep
	}
	return defaultEndpoint
}
