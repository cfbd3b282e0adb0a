// Package telemetry builds and owns the OpenTelemetry trace pipeline for
// the AgentBay SDK.
//
// # Overview
//
// The pipeline is: resource metadata -> batch span processor -> OTLP/HTTP
// exporter. Spans are exported to <api_url>/api/v1/traces with an
// Authorization bearer header carrying the API key. The batch processor
// runs on a background goroutine with a bounded queue; when the queue is
// full new spans are dropped rather than blocking the caller.
//
// # Usage
//
//	cfg, err := telemetry.FromEnv()
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("agentbay.llms.gemini")
//
// # Configuration
//
// All keys can be set via AGENTBAY_* environment variables or a YAML file:
//
//	api_key: "sk-..."          # AGENTBAY_API_KEY
//	api_url: "https://host"    # AGENTBAY_API_URL
//	sampling_rate: 1.0
//	batch_timeout: "5s"
//	shutdown_timeout: "5s"
//
// # Error Handling
//
// Configuration errors fail closed at Validate time. Pipeline construction
// failures after a valid config degrade gracefully: the instance keeps
// working with a no-op tracer and the only observable effect is missing
// spans, never an error on the caller's request path.
//
// # Testing
//
// Use TestTelemetry for in-memory span capture:
//
//	tt := telemetry.NewTestTelemetry()
//	tracer := tt.Tracer("test")
//	_, span := tracer.Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry
