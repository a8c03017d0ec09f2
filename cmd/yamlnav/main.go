package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexcodex/yamlnav/internal/runtime"
)

var version = "dev"

var (
	flagConfig      string
	flagQuietPeriod time.Duration
	flagClassifier  string
	flagWorkers     int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "yamlnav",
		Short:         "Key path outline and navigation for YAML files",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaults := runtime.DefaultConfig()
	root.PersistentFlags().StringVar(&flagConfig, "config", envOrDefault("YAMLNAV_CONFIG", runtime.DefaultConfigFile), "Configuration file")
	root.PersistentFlags().DurationVar(&flagQuietPeriod, "quiet-period", defaults.QuietPeriod, "Delay after the last edit before a rescan")
	root.PersistentFlags().StringVar(&flagClassifier, "classifier", defaults.Classifier, "Key classifier (treesitter, yaml, lines)")
	root.PersistentFlags().IntVar(&flagWorkers, "workers", defaults.Workers, "Concurrent extraction passes")

	root.AddCommand(newServeCmd(), newOutlineCmd(), newPathCmd(), newBrowseCmd(), newConfigCmd())
	return root
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadConfig layers defaults, the config file, YAMLNAV_* variables and the
// flags the user set, in that order.
func loadConfig(cmd *cobra.Command) (runtime.Config, error) {
	cfg := runtime.DefaultConfig()
	explicit := cmd.Flags().Changed("config") || os.Getenv("YAMLNAV_CONFIG") != ""
	if err := cfg.LoadFile(flagConfig, !explicit); err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("quiet-period") {
		cfg.QuietPeriod = flagQuietPeriod
	}
	if flags.Changed("classifier") {
		cfg.Classifier = flagClassifier
	}
	if flags.Changed("workers") {
		cfg.Workers = flagWorkers
	}
	if err := cfg.Normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parsePosition reads "LINE" or "LINE:COL", both 1-based.
func parsePosition(s string) (line, col int, err error) {
	lineText, colText, hasCol := strings.Cut(s, ":")
	line, err = strconv.Atoi(lineText)
	if err != nil || line < 1 {
		return 0, 0, fmt.Errorf("invalid line %q", lineText)
	}
	col = 1
	if hasCol {
		col, err = strconv.Atoi(colText)
		if err != nil || col < 1 {
			return 0, 0, fmt.Errorf("invalid column %q", colText)
		}
	}
	return line, col, nil
}
