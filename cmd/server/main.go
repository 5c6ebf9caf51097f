package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"logitrack/internal/config"
	"logitrack/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "logitrack",
	Short: "LogiTrack fleet dashboard backend",
	Long: `LogiTrack serves the fleet dashboard API: entity queries, derived KPIs
and websocket invalidation pushes that keep dashboards in sync with writes.

Configuration comes from the environment, optionally seeded from .env.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("logitrack %s (%s)\n", Version, Commit))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(kpisCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig reads and validates the environment and initialises logging.
// Report commands log to stderr so their stdout stays machine readable.
func loadConfig(stderr bool) (*config.Config, error) {
	cfg := config.Load()
	logCfg := log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON}
	if stderr {
		logCfg.Output = os.Stderr
	}
	log.Init(logCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
