package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile      string
	logLevel     string
	outputFormat string

	// configPath is the file loadConfig read; empty for env-only configuration.
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "conduit",
	Short: "Conduit - streaming protocol-translation gateway",
	Long: `Conduit translates one chat request into the dialect of whichever upstream
serves the model and streams the answer back as uniform chunks.

It provides:
  - Streaming-capability detection with a TTL cache
  - Route selection between backend, vendor-direct and mock streams
  - Request and response translation for Anthropic, Google and generic APIs
  - Response and chunk validation with automatic repair
  - Fallback to a paced mock stream when a true stream fails`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json)")
}

// loadConfig loads the configuration and installs the process logger. When
// the default config file is absent the configuration comes from defaults
// and CONDUIT_* variables alone.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	if err := config.Initialize(path); err != nil {
		return nil, cli.WrapConfigError(err)
	}
	cfg := config.GetConfig()
	configPath = path

	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	if _, err := logging.Setup(logging.ConfigFrom(cfg.Telemetry.Logging)); err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return cfg, nil
}

func formatter() (cli.Formatter, cli.OutputFormat, error) {
	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return nil, "", err
	}
	return cli.NewFormatter(format), format, nil
}
