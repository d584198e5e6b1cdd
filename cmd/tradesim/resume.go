package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantarc/tradesim/internal/observ"
	"github.com/quantarc/tradesim/internal/risk"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Clear a tripped circuit breaker and re-enable trading",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if cfg.Paths.RiskState == "" {
			return fmt.Errorf("no risk_state path configured")
		}

		rm := risk.NewManager(cfg.Risk)
		if err := rm.LoadState(cfg.Paths.RiskState); err != nil {
			return fmt.Errorf("load risk state: %w", err)
		}
		rm.ResumeTrading()
		if err := rm.SaveState(cfg.Paths.RiskState); err != nil {
			return fmt.Errorf("save risk state: %w", err)
		}

		observ.Log("trading_resumed", map[string]any{"state": cfg.Paths.RiskState})
		return nil
	},
}
