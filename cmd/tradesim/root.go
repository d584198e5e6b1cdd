package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/quantarc/tradesim/internal/config"
	"github.com/quantarc/tradesim/internal/observ"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "tradesim",
	Short: "Deterministic trading simulator with risk controls",
	Long: `tradesim replays market data through a simulated exchange with
realistic execution costs, a risk manager with circuit breakers, and
performance monitoring. State persists across runs so risk limits carry
over between sessions.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config (defaults apply when omitted)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(reportCmd)
}

// loadConfig resolves the --config flag, falling back to built-in
// defaults when no file is given.
func loadConfig() config.Root {
	if cfgPath == "" {
		return config.Default()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		observ.Log("config_error", map[string]any{"path": cfgPath, "error": err.Error()})
		os.Exit(1)
	}
	return cfg
}

// envOr prefers the config value, then the environment variable.
func envOr(cfgVal, envKey string) string {
	if cfgVal != "" {
		return cfgVal
	}
	return os.Getenv(envKey)
}
