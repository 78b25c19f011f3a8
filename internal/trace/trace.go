// Package trace owns the process-wide OpenTelemetry tracer. Spans are written
// to stdout or stderr by the stdouttrace exporter when LOG_TRACING_ENABLED is
// "true"; otherwise every helper here is a no-op and StartSpan hands back the
// caller's context unchanged.
package trace

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "inr-trade-matcher"

// Version is reported as service.version. Override with
// -ldflags "-X inr-trade-matcher/internal/trace.Version=...".
var Version = "dev"

// Config controls span export.
type Config struct {
	Enabled bool
	// SampleRatio is the fraction of root spans kept, clamped to [0, 1].
	// Child spans follow their parent's decision.
	SampleRatio float64
	Output      io.Writer
	Pretty      bool
}

var (
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	enabled  bool
)

// ConfigFromEnv reads LOG_TRACING_ENABLED, TRACE_SAMPLE_RATIO, TRACE_OUTPUT
// (stdout or stderr) and TRACE_PRETTY.
func ConfigFromEnv() Config {
	cfg := Config{
		Enabled:     os.Getenv("LOG_TRACING_ENABLED") == "true",
		SampleRatio: 1,
		Output:      os.Stdout,
		Pretty:      os.Getenv("TRACE_PRETTY") != "false",
	}
	if v := os.Getenv("TRACE_SAMPLE_RATIO"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SampleRatio = r
		}
	}
	if strings.EqualFold(os.Getenv("TRACE_OUTPUT"), "stderr") {
		cfg.Output = os.Stderr
	}
	return cfg
}

// Init configures tracing from the environment.
func Init() error {
	return InitWithConfig(ConfigFromEnv())
}

// InitWithConfig installs a tracer provider for cfg. A disabled config leaves
// tracing off and returns nil.
func InitWithConfig(cfg Config) error {
	enabled = false
	if !cfg.Enabled {
		return nil
	}

	opts := []stdouttrace.Option{}
	if cfg.Output != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Output))
	}
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(Version),
		),
	)
	if err != nil {
		return err
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clamp(cfg.SampleRatio)))),
	)
	otel.SetTracerProvider(provider)
	tracer = provider.Tracer(serviceName)
	enabled = true
	return nil
}

func clamp(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// Shutdown flushes pending spans and turns tracing off.
func Shutdown(ctx context.Context) error {
	p := provider
	provider, tracer, enabled = nil, nil, false
	if p == nil {
		return nil
	}
	return p.Shutdown(ctx)
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if !enabled {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

func Enabled() bool {
	return enabled
}

// Fields returns the IDs of the span in ctx for log correlation.
func Fields(ctx context.Context) (traceID, spanID string, ok bool) {
	if !enabled {
		return "", "", false
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}
