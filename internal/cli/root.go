// Package cli wires the routerd commands: the long-running server and
// the one-off local execute.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loopfi/routerd/internal/config"
	"github.com/loopfi/routerd/internal/logging"
)

var (
	// Global flags
	configFile string
	debug      bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "routerd",
	Short: "routerd - atomic instruction router for lending venues",
	Long: `routerd executes ordered instruction batches against lending venues
and swap pools. A batch either commits in full or leaves no trace:
token pulls, venue calls, flash loans and pushes all stage against a
working copy of the state that only becomes visible on success.`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable normally suppressed debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output to console after startup")
}

// loadConfig merges the config file with the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Logging.Debug = true
	}
	if quiet {
		cfg.Logging.Quiet = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	return logging.New(logging.Options{
		Debug:   cfg.Logging.Debug,
		Quiet:   cfg.Logging.Quiet,
		LogFile: cfg.Logging.LogFile,
	})
}
