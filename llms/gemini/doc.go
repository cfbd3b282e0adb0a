// Package gemini instruments Google Gemini chat calls with OpenTelemetry.
//
// Each GenerateContent call through a wrapped model produces one span named
// "gemini.chat.generate_content <model>" carrying the llm.* attribute
// vocabulary: request model and content, tool declarations, response text,
// function-call records, and token usage. The wrapper is transparent: the
// inner model receives the identical context and request, and the caller
// observes the identical response value or error.
//
// Wrap the model explicitly:
//
//	model := gemini.Wrap(client)
//	resp, err := model.GenerateContent(ctx, gemini.Request{Contents: "hello"})
//
// or route through the instrumentation registry after Instrument:
//
//	gemini.Instrument()
//	wrapped, _ := llms.Wrap(llms.Key{Provider: "gemini", Capability: "chat"}, client)
//
// Attribute extraction is defensive throughout: a missing optional field
// means the attribute is omitted, and a value that cannot be serialized to
// JSON degrades to its string form. A telemetry failure never becomes a
// functional failure.
package gemini
