// Package tracing configures the OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ServiceName identifies this service in exported spans.
const ServiceName = "party-signup"

// Provider owns the installed tracer provider.
type Provider struct {
	sdk *sdktrace.TracerProvider
}

// Option customises Setup.
type Option func(*options)

type options struct {
	writer io.Writer
}

// WithWriter sends stdout exporter output to w instead of os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// Setup installs a global tracer provider for exporter ("none" or
// "stdout"). With "none" spans are created by a no-op provider.
func Setup(exporter string, opts ...Option) (*Provider, error) {
	o := options{writer: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	switch exporter {
	case "", "none":
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &Provider{}, nil
	case "stdout":
		exp, err := stdouttrace.New(
			stdouttrace.WithWriter(o.writer),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(resource.NewSchemaless(
				attribute.String("service.name", ServiceName),
			)),
		)
		otel.SetTracerProvider(tp)
		return &Provider{sdk: tp}, nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", exporter)
	}
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.sdk != nil
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
