//
// Tencent is pleased to support the open source community by making trpc-opflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-opflow-go is licensed under the Apache License Version 2.0.
//
//

// Package trace provides the OpenTelemetry tracer used by trpc-opflow-go.
package trace

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	// ServiceName identifies this library in exported spans.
	ServiceName = "trpc-opflow-go"
	// InstrumentName is the tracer instrumentation scope name.
	InstrumentName = "trpc.opflow.go"

	defaultEndpoint = "localhost:4317"
)

// grpcNewClient is a package-level variable to allow test injection of a
// custom dialer. In production, this points to grpc.NewClient.
var grpcNewClient = grpc.NewClient

// Tracer is the tracer used across the library. It is a no-op until Start
// installs a real provider.
var Tracer trace.Tracer = noop.NewTracerProvider().Tracer(InstrumentName)

type options struct {
	endpoint    string
	serviceName string
}

// Option configures Start.
type Option func(*options)

// WithEndpoint sets the OTLP gRPC collector endpoint.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithServiceName overrides the reported service name.
func WithServiceName(name string) Option {
	return func(o *options) {
		o.serviceName = name
	}
}

// Start installs a trace provider exporting through OTLP gRPC and rebinds
// Tracer to it. The returned clean function flushes and shuts the provider
// down.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	opt := options{
		endpoint:    tracesEndpoint(),
		serviceName: ServiceName,
	}
	for _, o := range opts {
		o(&opt)
	}

	conn, err := grpcNewClient(opt.endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial otlp endpoint %s: %w", opt.endpoint, err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("create otlp trace exporter: %w", err)
	}

	res, err := sdkresource.Merge(sdkresource.Default(),
		sdkresource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(opt.serviceName)))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	Tracer = provider.Tracer(InstrumentName)

	return func() error {
		defer func() { _ = conn.Close() }()
		return provider.Shutdown(context.Background())
	}, nil
}

// tracesEndpoint resolves the collector endpoint from the standard OTLP
// environment variables, the specific one taking precedence.
func tracesEndpoint() string {
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); ep != "" {
		return ep
	}
	if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
		return ep
	}
	return defaultEndpoint
}
