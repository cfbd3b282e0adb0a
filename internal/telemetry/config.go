package telemetry

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/agentbaylabs/agentbay-go/internal/config"
)

const (
	// DefaultAPIURL is the AgentBay ingest endpoint used when api_url is
	// not configured explicitly.
	DefaultAPIURL = "https://api.agentbay.dev"

	// tracesPath is appended to api_url to form the OTLP trace endpoint.
	tracesPath = "/api/v1/traces"

	// envPrefix namespaces all SDK environment variables
	// (AGENTBAY_API_KEY, AGENTBAY_API_URL, ...).
	envPrefix = "AGENTBAY_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// ErrInvalidConfig indicates missing or malformed connection parameters.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds validated connection parameters for the trace pipeline.
// Immutable once handed to New.
type Config struct {
	APIKey config.Secret `koanf:"api_key"`
	APIURL string        `koanf:"api_url"`

	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`

	// SamplingRate is the head-sampling ratio, 0.0-1.0.
	SamplingRate float64 `koanf:"sampling_rate"`

	// Batch processor bounds. Spans beyond MaxQueueSize are dropped;
	// telemetry loss is preferred over blocking the caller.
	BatchTimeout       config.Duration `koanf:"batch_timeout"`
	MaxQueueSize       int             `koanf:"max_queue_size"`
	MaxExportBatchSize int             `koanf:"max_export_batch_size"`

	// ShutdownTimeout bounds the final flush so process teardown
	// cannot hang on a dead collector.
	ShutdownTimeout config.Duration `koanf:"shutdown_timeout"`
}

// NewDefaultConfig returns production-ready defaults. The API key has no
// default; it must come from the environment, a config file, or an option.
func NewDefaultConfig() *Config {
	return &Config{
		APIURL:             DefaultAPIURL,
		ServiceName:        "agentbay-go-sdk",
		ServiceVersion:     "0.1.0",
		SamplingRate:       1.0,
		BatchTimeout:       config.Duration(5 * time.Second),
		MaxQueueSize:       2048,
		MaxExportBatchSize: 512,
		ShutdownTimeout:    config.Duration(5 * time.Second),
	}
}

// FromEnv builds a Config from defaults overridden by AGENTBAY_* environment
// variables. Env names map to flat koanf keys: AGENTBAY_API_KEY -> api_key.
func FromEnv() (*Config, error) {
	k := koanf.New(".")
	if err := loadEnv(k); err != nil {
		return nil, err
	}
	return unmarshal(k)
}

// Load builds a Config from defaults, an optional YAML file, then AGENTBAY_*
// environment variables. Precedence (highest to lowest): env, file, defaults.
// A missing file is not an error; a present but unreadable one is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}
	return unmarshal(k)
}

func loadEnv(k *koanf.Koanf) error {
	err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		// A variable exported but blank falls through to the file value
		// or default rather than clobbering it with "".
		if value == "" {
			return "", nil
		}
		// Flat key space: AGENTBAY_API_KEY -> api_key
		return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
	}), nil)
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// Validate checks the configuration and fails closed, naming the offending
// field. Called by New; callers that assemble a Config by hand should call
// it themselves before use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey.Value()) == "" {
		return fmt.Errorf("%w: api_key is required (set AGENTBAY_API_KEY)", ErrInvalidConfig)
	}

	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("%w: api_url is required (set AGENTBAY_API_URL)", ErrInvalidConfig)
	}
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("%w: api_url is not a valid URL: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: api_url must use http or https, got %q", ErrInvalidConfig, c.APIURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: api_url has no host: %q", ErrInvalidConfig, c.APIURL)
	}

	if c.ServiceName == "" {
		return fmt.Errorf("%w: service_name is required", ErrInvalidConfig)
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("%w: service_version is required", ErrInvalidConfig)
	}

	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("%w: sampling_rate must be between 0 and 1, got %f", ErrInvalidConfig, c.SamplingRate)
	}

	if c.BatchTimeout.Duration() <= 0 {
		return fmt.Errorf("%w: batch_timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("%w: max_queue_size must be positive", ErrInvalidConfig)
	}
	if c.MaxExportBatchSize <= 0 || c.MaxExportBatchSize > c.MaxQueueSize {
		return fmt.Errorf("%w: max_export_batch_size must be in (0, max_queue_size]", ErrInvalidConfig)
	}

	if c.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("%w: shutdown_timeout must be positive", ErrInvalidConfig)
	}

	return nil
}

// TracesEndpoint returns the full OTLP trace ingest URL for this config.
func (c *Config) TracesEndpoint() string {
	return strings.TrimRight(c.APIURL, "/") + tracesPath
}
