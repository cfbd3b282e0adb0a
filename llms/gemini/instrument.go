package gemini

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/agentbaylabs/agentbay-go/llms"
)

// Registry keys for the gemini bindings.
const (
	Provider            = "gemini"
	CapabilityChat      = "chat"
	CapabilityTransport = "transport"
)

// Instrument registers the gemini wrappers in the default registry. Safe to
// call any number of times: a binding that already exists is left untouched,
// so models are never double-wrapped. Instrument never fails; a problem
// with the auxiliary transport binding is isolated from the chat binding
// and logged at most.
func Instrument(opts ...Option) {
	InstrumentRegistry(llms.Default, opts...)
}

// InstrumentRegistry is Instrument against an explicit registry.
func InstrumentRegistry(r *llms.Registry, opts ...Option) {
	log := zap.NewNop()
	for _, opt := range opts {
		probe := &tracedModel{log: log}
		opt(probe)
		log = probe.log
	}

	// Primary binding: chat generation.
	err := r.Register(llms.Key{Provider: Provider, Capability: CapabilityChat}, func(target any) (any, bool) {
		m, ok := target.(Model)
		if !ok {
			return nil, false
		}
		return Wrap(m, opts...), true
	})
	if err != nil && !errors.Is(err, llms.ErrAlreadyBound) {
		log.Warn("gemini chat instrumentation not installed", zap.Error(err))
	}

	// Auxiliary binding: transport-level spans for the provider's HTTP
	// client. A failure here must never prevent the chat binding above.
	err = r.Register(llms.Key{Provider: Provider, Capability: CapabilityTransport}, func(target any) (any, bool) {
		c, ok := target.(*http.Client)
		if !ok {
			return nil, false
		}
		return WrapHTTPClient(c), true
	})
	if err != nil && !errors.Is(err, llms.ErrAlreadyBound) {
		log.Debug("gemini transport instrumentation not installed", zap.Error(err))
	}
}
