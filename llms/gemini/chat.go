package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/agentbaylabs/agentbay-go/llms"
)

const (
	// InstrumentationName is the tracer scope for gemini spans.
	InstrumentationName = "github.com/agentbaylabs/agentbay-go/llms/gemini"

	system       = "gemini"
	spanPrefix   = "gemini.chat.generate_content"
	unknownModel = "unknown"

	// defaultMaxFunctionCalls bounds the serialized function-call list so a
	// pathological response cannot produce an unbounded attribute. The
	// count attribute always reflects the full list.
	defaultMaxFunctionCalls = 32
)

// Option configures Wrap.
type Option func(*tracedModel)

// WithTracerProvider overrides the tracer source (for testing; production
// code uses the global provider installed by agentbay.Init).
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(t *tracedModel) {
		t.tracer = tp.Tracer(InstrumentationName)
	}
}

// WithLogger sets the diagnostics logger. Discarded by default.
func WithLogger(logger *zap.Logger) Option {
	return func(t *tracedModel) {
		if logger != nil {
			t.log = logger
		}
	}
}

// WithMaxFunctionCalls bounds the serialized function-call list.
func WithMaxFunctionCalls(n int) Option {
	return func(t *tracedModel) {
		if n > 0 {
			t.maxFunctionCalls = n
		}
	}
}

// Wrap returns a Model that records one span per GenerateContent call.
// Wrapping an already-wrapped model returns it unchanged, so routing a
// model through Wrap twice never produces nested spans for one call.
// A nil model is returned as-is.
func Wrap(m Model, opts ...Option) Model {
	if m == nil {
		return nil
	}
	if _, ok := m.(*tracedModel); ok {
		return m
	}

	t := &tracedModel{
		inner:            m,
		log:              zap.NewNop(),
		maxFunctionCalls: defaultMaxFunctionCalls,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracer == nil {
		t.tracer = otel.Tracer(InstrumentationName)
	}
	return t
}

type tracedModel struct {
	inner            Model
	tracer           oteltrace.Tracer
	log              *zap.Logger
	maxFunctionCalls int
}

func (t *tracedModel) Name() string { return t.inner.Name() }

// GenerateContent forwards the call unchanged to the inner model, recording
// request attributes before the call and response attributes (or the error)
// after it. The span stays open across the full call, including any
// blocking I/O, and is closed on every exit path.
func (t *tracedModel) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	model := t.inner.Name()
	if model == "" {
		model = unknownModel
	}

	ctx, span := t.tracer.Start(ctx, spanPrefix+" "+model)
	defer span.End()

	span.SetAttributes(
		attribute.String(llms.AttrSystem, system),
		attribute.String(llms.AttrRequestModel, model),
		attribute.String(llms.AttrRequestMessages, stringifyContents(req.Contents)),
	)
	if len(req.Tools) > 0 {
		span.SetAttributes(
			attribute.String(llms.AttrRequestTools, jsonOrString(req.Tools)),
			attribute.Int(llms.AttrRequestToolCount, len(req.Tools)),
		)
	}

	resp, err := t.inner.GenerateContent(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}

	t.recordResponse(span, resp)
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// recordResponse extracts response attributes. Every optional field is
// individually guarded: absence downgrades to "attribute omitted", never to
// an error on the call path.
func (t *tracedModel) recordResponse(span oteltrace.Span, resp *Response) {
	if resp == nil {
		return
	}

	if resp.Text != "" {
		span.SetAttributes(attribute.String(llms.AttrResponseContent, resp.Text))
	}

	if len(resp.Candidates) > 0 {
		if calls := resp.Candidates[0].FunctionCalls; len(calls) > 0 {
			span.SetAttributes(
				attribute.String(llms.AttrResponseFunctionCalls, t.serializeFunctionCalls(calls)),
				attribute.Int(llms.AttrResponseFunctionCallCount, len(calls)),
			)
		}
	}

	if usage := resp.UsageMetadata; usage != nil {
		if usage.PromptTokenCount != nil {
			span.SetAttributes(attribute.Int(llms.AttrUsagePromptTokens, *usage.PromptTokenCount))
		}
		if usage.CandidatesTokenCount != nil {
			span.SetAttributes(attribute.Int(llms.AttrUsageCompletionTokens, *usage.CandidatesTokenCount))
		}
		if usage.TotalTokenCount != nil {
			span.SetAttributes(attribute.Int(llms.AttrUsageTotalTokens, *usage.TotalTokenCount))
		}
	}
}

// functionCallRecord is the wire shape of one serialized function call.
// Arguments stays null when the call carried none.
type functionCallRecord struct {
	Name      string  `json:"name"`
	Arguments *string `json:"arguments"`
	Response  string  `json:"response,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func (t *tracedModel) serializeFunctionCalls(calls []FunctionCall) string {
	n := len(calls)
	if n > t.maxFunctionCalls {
		n = t.maxFunctionCalls
	}

	records := make([]functionCallRecord, 0, n)
	for _, call := range calls[:n] {
		rec := functionCallRecord{
			Name:     call.Name,
			Response: call.Response,
			Error:    call.Error,
		}
		if call.Arguments != nil {
			args := jsonOrString(call.Arguments)
			rec.Arguments = &args
		}
		records = append(records, rec)
	}
	return jsonOrString(records)
}

// stringifyContents renders request content for the span. Plain strings are
// recorded verbatim; everything else is serialized best-effort.
func stringifyContents(contents any) string {
	switch v := contents.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return jsonOrString(v)
	}
}

// jsonOrString serializes v to JSON, degrading to a generic string form
// when v is not JSON-serializable. Never fails.
func jsonOrString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
