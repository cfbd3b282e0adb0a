package gemini

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WrapHTTPClient returns a copy of c whose transport records a child span
// for every request the provider client sends, so the provider's network
// calls nest under the chat span. The original client is not modified.
// A nil client wraps http.DefaultTransport in a fresh client.
func WrapHTTPClient(c *http.Client) *http.Client {
	clone := http.Client{}
	if c != nil {
		clone = *c
	}

	base := clone.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	clone.Transport = otelhttp.NewTransport(base)
	return &clone
}
