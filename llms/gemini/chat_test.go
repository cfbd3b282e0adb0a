package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/agentbaylabs/agentbay-go/internal/telemetry"
	"github.com/agentbaylabs/agentbay-go/llms"
)

// fakeModel scripts one GenerateContent outcome and records what it saw.
type fakeModel struct {
	name string
	resp *Response
	err  error

	gotCtx context.Context
	gotReq Request
	calls  int
}

func (m *fakeModel) Name() string { return m.name }

func (m *fakeModel) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	m.calls++
	m.gotCtx = ctx
	m.gotReq = req
	return m.resp, m.err
}

func intp(v int) *int { return &v }

func wrapWith(tt *telemetry.TestTelemetry, m Model, opts ...Option) Model {
	opts = append([]Option{WithTracerProvider(tt.TracerProvider())}, opts...)
	return Wrap(m, opts...)
}

func TestGenerateContent_SuccessScenario(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{
		name: "gemini-pro",
		resp: &Response{
			Text: "hi",
			UsageMetadata: &UsageMetadata{
				PromptTokenCount:     intp(3),
				CandidatesTokenCount: intp(2),
				TotalTokenCount:      intp(5),
			},
		},
	}

	model := wrapWith(tt, inner)
	resp, err := model.GenerateContent(context.Background(), Request{Contents: "hello"})
	require.NoError(t, err)
	assert.Same(t, inner.resp, resp, "wrapper must return the original response value")

	spanName := "gemini.chat.generate_content gemini-pro"
	tt.AssertSpanExists(t, spanName)
	tt.AssertSpanAttribute(t, spanName, llms.AttrSystem, "gemini")
	tt.AssertSpanAttribute(t, spanName, llms.AttrRequestModel, "gemini-pro")
	tt.AssertSpanAttribute(t, spanName, llms.AttrRequestMessages, "hello")
	tt.AssertSpanAttribute(t, spanName, llms.AttrResponseContent, "hi")
	tt.AssertSpanAttribute(t, spanName, llms.AttrUsagePromptTokens, int64(3))
	tt.AssertSpanAttribute(t, spanName, llms.AttrUsageCompletionTokens, int64(2))
	tt.AssertSpanAttribute(t, spanName, llms.AttrUsageTotalTokens, int64(5))

	span := tt.SpanByName(spanName)
	assert.Equal(t, codes.Ok, span.Status().Code)
}

func TestGenerateContent_ErrorScenario(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	wantErr := errors.New("quota exceeded")
	inner := &fakeModel{name: "gemini-pro", err: wantErr}

	model := wrapWith(tt, inner)
	resp, err := model.GenerateContent(context.Background(), Request{Contents: "hello"})

	require.Error(t, err)
	assert.Same(t, wantErr, err, "wrapper must re-raise the identical error")
	assert.Nil(t, resp)

	span := tt.SpanByName("gemini.chat.generate_content gemini-pro")
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "quota exceeded", span.Status().Description)

	// The exception is recorded as a span event.
	var recorded bool
	for _, ev := range span.Events() {
		if ev.Name == "exception" {
			recorded = true
		}
	}
	assert.True(t, recorded, "expected an exception event on the span")
}

func TestGenerateContent_ForwardsArgumentsUnchanged(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{name: "gemini-pro", resp: &Response{}}
	model := wrapWith(tt, inner)

	req := Request{
		Contents: "multi part prompt",
		Tools:    []Tool{{Name: "lookup", Description: "find things"}},
	}
	_, err := model.GenerateContent(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, req, inner.gotReq, "request must reach the inner model unchanged")
	require.NotNil(t, inner.gotCtx)
}

func TestGenerateContent_UnknownModelSentinel(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{name: "", resp: &Response{}}

	_, err := wrapWith(tt, inner).GenerateContent(context.Background(), Request{Contents: "hello"})
	require.NoError(t, err)

	spanName := "gemini.chat.generate_content unknown"
	tt.AssertSpanExists(t, spanName)
	tt.AssertSpanAttribute(t, spanName, llms.AttrRequestModel, "unknown")
}

func TestGenerateContent_OptionalFieldsAbsent(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	// No text, no candidates, no usage: only request attributes expected.
	inner := &fakeModel{name: "gemini-pro", resp: &Response{}}

	_, err := wrapWith(tt, inner).GenerateContent(context.Background(), Request{Contents: "hello"})
	require.NoError(t, err)

	spanName := "gemini.chat.generate_content gemini-pro"
	tt.AssertSpanExists(t, spanName)
	tt.AssertNoSpanAttribute(t, spanName, llms.AttrResponseContent)
	tt.AssertNoSpanAttribute(t, spanName, llms.AttrResponseFunctionCalls)
	tt.AssertNoSpanAttribute(t, spanName, llms.AttrResponseFunctionCallCount)
	tt.AssertNoSpanAttribute(t, spanName, llms.AttrUsagePromptTokens)
	tt.AssertNoSpanAttribute(t, spanName, llms.AttrUsageCompletionTokens)
	tt.AssertNoSpanAttribute(t, spanName, llms.AttrUsageTotalTokens)
	tt.AssertNoSpanAttribute(t, spanName, llms.AttrRequestTools)
	tt.AssertNoSpanAttribute(t, spanName, llms.AttrRequestToolCount)

	span := tt.SpanByName(spanName)
	assert.Equal(t, codes.Ok, span.Status().Code)
}

func TestGenerateContent_NilResponseIsTolerated(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{name: "gemini-pro", resp: nil}

	resp, err := wrapWith(tt, inner).GenerateContent(context.Background(), Request{Contents: "hello"})
	require.NoError(t, err)
	assert.Nil(t, resp)

	span := tt.SpanByName("gemini.chat.generate_content gemini-pro")
	require.NotNil(t, span)
	assert.Equal(t, codes.Ok, span.Status().Code)
}

func TestGenerateContent_PartialUsage(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{
		name: "gemini-pro",
		resp: &Response{UsageMetadata: &UsageMetadata{TotalTokenCount: intp(7)}},
	}

	_, err := wrapWith(tt, inner).GenerateContent(context.Background(), Request{Contents: "hello"})
	require.NoError(t, err)

	spanName := "gemini.chat.generate_content gemini-pro"
	tt.AssertSpanAttribute(t, spanName, llms.AttrUsageTotalTokens, int64(7))
	tt.AssertNoSpanAttribute(t, spanName, llms.AttrUsagePromptTokens)
	tt.AssertNoSpanAttribute(t, spanName, llms.AttrUsageCompletionTokens)
}

func TestGenerateContent_ZeroUsageStillRecorded(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{
		name: "gemini-pro",
		resp: &Response{UsageMetadata: &UsageMetadata{PromptTokenCount: intp(0)}},
	}

	_, err := wrapWith(tt, inner).GenerateContent(context.Background(), Request{Contents: "hello"})
	require.NoError(t, err)

	// Present-but-zero is distinct from absent.
	tt.AssertSpanAttribute(t, "gemini.chat.generate_content gemini-pro", llms.AttrUsagePromptTokens, int64(0))
}

func TestGenerateContent_ToolAttributes(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{name: "gemini-pro", resp: &Response{}}

	tools := []Tool{
		{Name: "search", Description: "web search", Parameters: map[string]any{"q": "string"}},
		{Name: "calculator"},
	}
	_, err := wrapWith(tt, inner).GenerateContent(context.Background(), Request{Contents: "hello", Tools: tools})
	require.NoError(t, err)

	spanName := "gemini.chat.generate_content gemini-pro"
	tt.AssertSpanAttribute(t, spanName, llms.AttrRequestToolCount, int64(2))

	span := tt.SpanByName(spanName)
	var serialized string
	for _, attr := range span.Attributes() {
		if string(attr.Key) == llms.AttrRequestTools {
			serialized = attr.Value.AsString()
		}
	}
	require.NotEmpty(t, serialized)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(serialized), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "search", decoded[0]["name"])
}

func TestGenerateContent_UnserializableToolsFallBackToString(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{name: "gemini-pro", resp: &Response{}}

	// Channels are not JSON-serializable; the attribute must degrade to a
	// string form instead of being dropped or failing the call.
	tools := []Tool{{Name: "bad", Parameters: make(chan int)}}
	_, err := wrapWith(tt, inner).GenerateContent(context.Background(), Request{Contents: "hello", Tools: tools})
	require.NoError(t, err)

	spanName := "gemini.chat.generate_content gemini-pro"
	span := tt.SpanByName(spanName)
	require.NotNil(t, span)

	var found bool
	for _, attr := range span.Attributes() {
		if string(attr.Key) == llms.AttrRequestTools {
			found = true
			assert.NotEmpty(t, attr.Value.AsString())
		}
	}
	assert.True(t, found)
	tt.AssertSpanAttribute(t, spanName, llms.AttrRequestToolCount, int64(1))
}

func TestGenerateContent_ComplexContentsSerialized(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{name: "gemini-pro", resp: &Response{}}

	contents := []map[string]string{{"role": "user", "text": "hello"}}
	_, err := wrapWith(tt, inner).GenerateContent(context.Background(), Request{Contents: contents})
	require.NoError(t, err)

	tt.AssertSpanAttribute(t, "gemini.chat.generate_content gemini-pro",
		llms.AttrRequestMessages, `[{"role":"user","text":"hello"}]`)
}

func TestGenerateContent_FunctionCalls(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{
		name: "gemini-pro",
		resp: &Response{
			Candidates: []Candidate{{
				FunctionCalls: []FunctionCall{
					{Name: "search", Arguments: map[string]any{"q": "weather"}, Response: "sunny"},
					{Name: "calc"},
					{Name: "fail", Error: "tool crashed"},
				},
			}},
		},
	}

	_, err := wrapWith(tt, inner).GenerateContent(context.Background(), Request{Contents: "hello"})
	require.NoError(t, err)

	spanName := "gemini.chat.generate_content gemini-pro"
	tt.AssertSpanAttribute(t, spanName, llms.AttrResponseFunctionCallCount, int64(3))

	span := tt.SpanByName(spanName)
	var serialized string
	for _, attr := range span.Attributes() {
		if string(attr.Key) == llms.AttrResponseFunctionCalls {
			serialized = attr.Value.AsString()
		}
	}
	require.NotEmpty(t, serialized)

	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(serialized), &records))
	require.Len(t, records, 3)

	assert.Equal(t, "search", records[0]["name"])
	assert.JSONEq(t, `{"q":"weather"}`, records[0]["arguments"].(string))
	assert.Equal(t, "sunny", records[0]["response"])

	// Absent arguments serialize as null, not "".
	assert.Contains(t, records[1], "arguments")
	assert.Nil(t, records[1]["arguments"])

	assert.Equal(t, "tool crashed", records[2]["error"])
}

func TestGenerateContent_FunctionCallListIsBounded(t *testing.T) {
	tt := telemetry.NewTestTelemetry()

	calls := make([]FunctionCall, 5)
	for i := range calls {
		calls[i] = FunctionCall{Name: "tool"}
	}
	inner := &fakeModel{
		name: "gemini-pro",
		resp: &Response{Candidates: []Candidate{{FunctionCalls: calls}}},
	}

	_, err := wrapWith(tt, inner, WithMaxFunctionCalls(2)).
		GenerateContent(context.Background(), Request{Contents: "hello"})
	require.NoError(t, err)

	spanName := "gemini.chat.generate_content gemini-pro"
	// Count reflects the full list even when the serialized list is capped.
	tt.AssertSpanAttribute(t, spanName, llms.AttrResponseFunctionCallCount, int64(5))

	span := tt.SpanByName(spanName)
	for _, attr := range span.Attributes() {
		if string(attr.Key) == llms.AttrResponseFunctionCalls {
			var records []map[string]any
			require.NoError(t, json.Unmarshal([]byte(attr.Value.AsString()), &records))
			assert.Len(t, records, 2)
		}
	}
}

func TestWrap_Idempotent(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{name: "gemini-pro", resp: &Response{}}

	once := wrapWith(tt, inner)
	twice := Wrap(once)
	assert.Same(t, once, twice, "re-wrapping must not nest")

	_, err := twice.GenerateContent(context.Background(), Request{Contents: "hello"})
	require.NoError(t, err)
	assert.Len(t, tt.Spans(), 1, "one call must produce exactly one span")
}

func TestWrap_NilModel(t *testing.T) {
	assert.Nil(t, Wrap(nil))
}

func TestWrap_PreservesName(t *testing.T) {
	inner := &fakeModel{name: "gemini-pro"}
	assert.Equal(t, "gemini-pro", Wrap(inner).Name())
}

func TestGenerateContent_SpanPerCall(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{name: "gemini-pro", resp: &Response{Text: "hi"}}
	model := wrapWith(tt, inner)

	for i := 0; i < 3; i++ {
		_, err := model.GenerateContent(context.Background(), Request{Contents: "hello"})
		require.NoError(t, err)
	}
	assert.Len(t, tt.Spans(), 3)
}

func TestGenerateContent_SpanEndsOnEveryPath(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	inner := &fakeModel{name: "gemini-pro", err: errors.New("boom")}
	model := wrapWith(tt, inner)

	_, _ = model.GenerateContent(context.Background(), Request{Contents: "hello"})

	// SpanRecorder only reports ended spans.
	spans := tt.Spans()
	require.Len(t, spans, 1)
	var _ sdktrace.ReadOnlySpan = spans[0]
	assert.False(t, spans[0].EndTime().IsZero())
}
