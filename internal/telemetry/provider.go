package telemetry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// newResource creates the resource describing the emitting service. A fresh
// instance id is minted per process so the backend can tell emitters apart.
// Note: standalone resource (not merged with resource.Default()) to avoid
// schema URL conflicts across semconv versions.
func newResource(cfg *Config) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.ServiceInstanceID(uuid.NewString()),
	)
}

// newTracerProvider creates a TracerProvider exporting OTLP over
// HTTP/protobuf to <api_url>/api/v1/traces with bearer-token auth. Every
// export request carries the Authorization header.
func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*trace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.TracesEndpoint()),
		otlptracehttp.WithHeaders(map[string]string{
			"Authorization": "Bearer " + cfg.APIKey.Value(),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	var sampler trace.Sampler
	switch {
	case cfg.SamplingRate >= 1.0:
		sampler = trace.AlwaysSample()
	case cfg.SamplingRate <= 0:
		sampler = trace.NeverSample()
	default:
		sampler = trace.TraceIDRatioBased(cfg.SamplingRate)
	}
	sampler = trace.ParentBased(sampler)

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter,
			trace.WithBatchTimeout(cfg.BatchTimeout.Duration()),
			trace.WithMaxQueueSize(cfg.MaxQueueSize),
			trace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
		),
		trace.WithResource(res),
		trace.WithSampler(sampler),
	)

	return tp, nil
}
