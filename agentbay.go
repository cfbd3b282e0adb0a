// Package agentbay is the AgentBay observability SDK for Go.
//
// The SDK traces generative-AI calls and exports the spans to the AgentBay
// backend over OTLP (HTTP/protobuf). Initialize once at startup, wrap your
// provider client, and shut down on exit to flush buffered spans:
//
//	client, err := agentbay.Init(ctx, agentbay.WithAPIKey("sk-..."))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer agentbay.Shutdown(ctx)
//
//	gemini.Instrument()
//	model := gemini.Wrap(myModel)
//
// Configuration falls back to AGENTBAY_* environment variables
// (AGENTBAY_API_KEY, AGENTBAY_API_URL) when options are not given.
package agentbay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/agentbaylabs/agentbay-go/internal/config"
	"github.com/agentbaylabs/agentbay-go/internal/telemetry"
)

// Version is the SDK version reported in resource metadata.
const Version = "0.1.0"

var (
	// ErrNotInitialized is returned by Get before a successful Init.
	ErrNotInitialized = errors.New("agentbay: not initialized, call agentbay.Init first")

	// ErrAlreadyInitialized is returned by Init while a client is active.
	// Call Shutdown first to tear down the existing pipeline.
	ErrAlreadyInitialized = errors.New("agentbay: already initialized, call agentbay.Shutdown first")

	// ErrInvalidConfig wraps all configuration validation failures.
	ErrInvalidConfig = telemetry.ErrInvalidConfig
)

// Singleton state. Written only by Init and Shutdown; read from arbitrary
// call sites. After Init, tracer lookups go through the otel global and
// take no lock.
var (
	mu     sync.RWMutex
	global *Client
)

// Client owns the trace export pipeline for the process lifetime.
type Client struct {
	tel *telemetry.Telemetry
	log *zap.Logger
}

// Option configures Init.
type Option func(*options)

type options struct {
	apiKey      string
	apiURL      string
	serviceName string
	configFile  string
	logger      *zap.Logger
}

// WithAPIKey sets the API key, overriding AGENTBAY_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithAPIURL sets the backend base URL, overriding AGENTBAY_API_URL.
// Spans are exported to <url>/api/v1/traces.
func WithAPIURL(url string) Option {
	return func(o *options) { o.apiURL = url }
}

// WithServiceName overrides the service name reported in resource metadata.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// WithConfigFile loads settings from a YAML file before applying
// environment variables and options.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configFile = path }
}

// WithLogger sets a diagnostics logger. The SDK is silent by default.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Init builds and validates the configuration, constructs the trace export
// pipeline, installs it as the process-wide tracer source, and stores the
// client as the global singleton.
//
// Configuration precedence (highest to lowest): options, AGENTBAY_*
// environment variables, config file, defaults. Init fails closed with an
// error wrapping ErrInvalidConfig when api_key or api_url resolve to empty.
//
// A second Init without an intervening Shutdown returns
// ErrAlreadyInitialized.
func Init(ctx context.Context, opts ...Option) (*Client, error) {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		return nil, ErrAlreadyInitialized
	}

	var (
		cfg *telemetry.Config
		err error
	)
	if o.configFile == "" {
		cfg, err = telemetry.FromEnv()
	} else {
		cfg, err = telemetry.Load(o.configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("agentbay: loading configuration: %w", err)
	}
	if o.apiKey != "" {
		cfg.APIKey = config.Secret(o.apiKey)
	}
	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
	}
	if o.serviceName != "" {
		cfg.ServiceName = o.serviceName
	}
	cfg.ServiceVersion = Version

	tel, err := telemetry.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("agentbay: %w", err)
	}

	if health := tel.Health(); health.Degraded {
		o.logger.Warn("telemetry pipeline degraded, spans may be dropped",
			zap.String("cause", health.LastErr))
	}

	c := &Client{tel: tel, log: o.logger}
	global = c
	return c, nil
}

// Get returns the global client, or ErrNotInitialized before Init.
// It never returns a dummy client.
func Get() (*Client, error) {
	mu.RLock()
	defer mu.RUnlock()

	if global == nil {
		return nil, ErrNotInitialized
	}
	return global, nil
}

// Shutdown flushes all buffered spans, releases exporter resources, and
// clears the singleton so Init may be called again. The final flush is
// bounded by the configured shutdown timeout.
//
// Calling Shutdown when the SDK was never initialized is a no-op.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if global == nil {
		return nil
	}

	err := global.tel.Shutdown(ctx)
	global = nil
	return err
}

// ForceFlush immediately exports all pending spans on the global client.
func ForceFlush(ctx context.Context) error {
	c, err := Get()
	if err != nil {
		return err
	}
	return c.ForceFlush(ctx)
}

// Tracer returns a tracer for the given instrumentation scope.
func (c *Client) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	return c.tel.Tracer(name, opts...)
}

// ForceFlush immediately exports all pending spans.
func (c *Client) ForceFlush(ctx context.Context) error {
	return c.tel.ForceFlush(ctx)
}
