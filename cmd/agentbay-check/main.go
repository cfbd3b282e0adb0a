// Agentbay-check verifies AgentBay trace-export connectivity.
//
// It initializes the SDK, emits a single test span, and flushes it to the
// configured backend. A non-zero exit means the span could not be exported.
//
// Usage:
//
//	# Credentials from the environment
//	AGENTBAY_API_KEY=sk-... agentbay-check
//
//	# Or explicit flags
//	agentbay-check --api-key sk-... --api-url https://api.agentbay.dev
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	agentbay "github.com/agentbaylabs/agentbay-go"
	"github.com/agentbaylabs/agentbay-go/internal/logging"
)

var (
	apiKey     string
	apiURL     string
	configFile string
	timeout    time.Duration
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:          "agentbay-check",
		Short:        "Verify AgentBay trace export connectivity",
		RunE:         run,
		SilenceUsage: true,
	}

	root.Flags().StringVar(&apiKey, "api-key", "", "AgentBay API key (defaults to AGENTBAY_API_KEY)")
	root.Flags().StringVar(&apiURL, "api-url", "", "AgentBay backend URL (defaults to AGENTBAY_API_URL)")
	root.Flags().StringVar(&configFile, "config", "", "optional YAML config file")
	root.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall check timeout")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "log SDK diagnostics to stderr")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	opts := []agentbay.Option{agentbay.WithServiceName("agentbay-check")}
	if apiKey != "" {
		opts = append(opts, agentbay.WithAPIKey(apiKey))
	}
	if apiURL != "" {
		opts = append(opts, agentbay.WithAPIURL(apiURL))
	}
	if configFile != "" {
		opts = append(opts, agentbay.WithConfigFile(configFile))
	}
	if verbose {
		logCfg := logging.NewDefaultConfig()
		logCfg.Level = "debug"
		logCfg.Format = "console"
		logger, err := logging.New(logCfg)
		if err != nil {
			return err
		}
		opts = append(opts, agentbay.WithLogger(logger))
	}

	client, err := agentbay.Init(ctx, opts...)
	if err != nil {
		return err
	}

	tracer := client.Tracer("agentbay.check")
	_, span := tracer.Start(ctx, "agentbay.check")
	span.SetAttributes(
		attribute.String("check.source", "agentbay-check"),
		attribute.String("check.sdk_version", agentbay.Version),
	)
	span.End()

	if err := agentbay.Shutdown(ctx); err != nil {
		return fmt.Errorf("flushing test span: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "ok: test span exported")
	return nil
}
