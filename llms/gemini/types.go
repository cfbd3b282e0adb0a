package gemini

import "context"

// Model is the surface of a Gemini generative model the SDK instruments.
// Implementations are adapters over the real provider client; the SDK never
// calls the provider directly.
type Model interface {
	// Name returns the model identifier, e.g. "gemini-pro". May be empty.
	Name() string

	// GenerateContent performs one chat generation. The call may block;
	// cancellation flows through ctx.
	GenerateContent(ctx context.Context, req Request) (*Response, error)
}

// Request describes one generation call.
type Request struct {
	// Contents is the prompt content. A plain string is recorded verbatim;
	// anything else is serialized best-effort for the span.
	Contents any

	// Tools optionally declares functions the model may call.
	Tools []Tool
}

// Tool declares one function made available to the model.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// Response is the decoded provider response. Every field is optional:
// absence is expressed by the zero value (or nil pointer), and the span
// mapper simply omits the corresponding attribute.
type Response struct {
	// Text is the aggregated response text, if the provider produced any.
	Text string

	// Candidates holds the provider's response candidates. Function-call
	// records are extracted from the first candidate only.
	Candidates []Candidate

	// UsageMetadata carries token accounting when the provider reports it.
	UsageMetadata *UsageMetadata
}

// Candidate is one response candidate.
type Candidate struct {
	FunctionCalls []FunctionCall
}

// FunctionCall is one tool invocation requested or performed by the model.
type FunctionCall struct {
	Name string

	// Arguments is the structured argument payload; nil when absent.
	Arguments any

	// Response and Error hold the tool-side outcome, when known.
	Response string
	Error    string
}

// UsageMetadata reports token usage. Pointer fields distinguish "absent"
// from a legitimate zero count.
type UsageMetadata struct {
	PromptTokenCount     *int
	CandidatesTokenCount *int
	TotalTokenCount      *int
}
