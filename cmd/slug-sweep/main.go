package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aa-dank/slug-sweep-deduper/sweep"
)

// Exit codes: 0 clean (including operator quit), 1 failure, 2 usage or
// config problem.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries an exit code out through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: exitUsage, err: err} }

var (
	flagConfig string
	flagDebug  bool
)

const defaultConfigFile = "slug-sweep.yaml"

var rootCmd = &cobra.Command{
	Use:           "slug-sweep",
	Short:         "Interactive duplicate file cleanup for the records file server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file (default: ./slug-sweep.yaml when present)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(initDBCmd)
	rootCmd.AddCommand(syncDBCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "slug-sweep v0.1.0")
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		code := exitFailure
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		os.Exit(code)
	}
}

// loadConfig merges the config file (explicit flag, else the default file
// when present), environment overrides, and global flags.
func loadConfig() (*sweep.Config, error) {
	path := flagConfig
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	cfg := &sweep.Config{}
	if path != "" {
		loaded, err := sweep.LoadConfig(path)
		if err != nil {
			return nil, usageError(fmt.Errorf("load config %s: %w", path, err))
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if flagDebug {
		cfg.Debug = true
	}
	if err := cfg.Normalize(); err != nil {
		return nil, usageError(err)
	}
	return cfg, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
