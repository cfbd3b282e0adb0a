// Package llms hosts the provider instrumentation registry and the span
// attribute vocabulary shared by all provider wrappers.
//
// Go has no live patching of third-party types, so instrumentation is an
// explicit wrapping layer: each provider package registers a WrapperFunc
// under a (provider, capability) key, and integrators route their client
// through Wrap (or call the provider's Wrap directly). A key can be bound
// at most once; re-registering is a no-op so repeated Instrument calls
// never double-wrap.
package llms

import (
	"errors"
	"fmt"
	"sync"
)

// Span attribute names. The exact strings are a wire contract with the
// AgentBay dashboards; do not rename.
const (
	AttrSystem                    = "llm.system"
	AttrRequestModel              = "llm.request.model"
	AttrRequestMessages           = "llm.request.messages"
	AttrRequestTools              = "llm.request.tools"
	AttrRequestToolCount          = "llm.request.tool_count"
	AttrResponseContent           = "llm.response.content"
	AttrResponseFunctionCalls     = "llm.response.function_calls"
	AttrResponseFunctionCallCount = "llm.response.function_call_count"
	AttrUsagePromptTokens         = "llm.usage.prompt_tokens"
	AttrUsageCompletionTokens     = "llm.usage.completion_tokens"
	AttrUsageTotalTokens          = "llm.usage.total_tokens"
)

// ErrAlreadyBound is returned by Register when the key is taken. Callers
// that only care about idempotence can treat it as success.
var ErrAlreadyBound = errors.New("llms: wrapper already registered")

// Key identifies one instrumentation binding.
type Key struct {
	Provider   string // e.g. "gemini"
	Capability string // e.g. "chat"
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Provider, k.Capability)
}

// WrapperFunc adapts a target client into its traced form. It reports false
// when the target is not of the type this wrapper handles, in which case
// the target must be left untouched.
type WrapperFunc func(target any) (any, bool)

// Registry maps (provider, capability) keys to wrapper functions.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	wrappers map[Key]WrapperFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{wrappers: make(map[Key]WrapperFunc)}
}

// Register binds fn to key. First registration wins: a second Register for
// the same key leaves the existing binding untouched and returns
// ErrAlreadyBound.
func (r *Registry) Register(key Key, fn WrapperFunc) error {
	if fn == nil {
		return fmt.Errorf("llms: nil wrapper for %s", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wrappers[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, key)
	}
	r.wrappers[key] = fn
	return nil
}

// Bound reports whether key has an active binding.
func (r *Registry) Bound(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.wrappers[key]
	return ok
}

// Wrap routes target through the wrapper bound to key. When no wrapper is
// bound, or the bound wrapper does not handle target's type, the original
// target is returned with ok=false. Instrumentation is best-effort and
// never breaks the caller.
func (r *Registry) Wrap(key Key, target any) (any, bool) {
	r.mu.Lock()
	fn, ok := r.wrappers[key]
	r.mu.Unlock()
	if !ok {
		return target, false
	}

	wrapped, ok := fn(target)
	if !ok {
		return target, false
	}
	return wrapped, true
}

// Unregister removes the binding for key, if any. Intended for tests.
func (r *Registry) Unregister(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.wrappers, key)
}

// Default is the process-wide registry used by provider Instrument calls.
var Default = NewRegistry()

// Register binds fn to key in the default registry.
func Register(key Key, fn WrapperFunc) error {
	return Default.Register(key, fn)
}

// Wrap routes target through the default registry.
func Wrap(key Key, target any) (any, bool) {
	return Default.Wrap(key, target)
}

// Bound reports whether key is bound in the default registry.
func Bound(key Key) bool {
	return Default.Bound(key)
}
