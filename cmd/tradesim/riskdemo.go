package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantarc/tradesim/internal/risk"
)

// riskDemoCmd walks a scripted day through the risk manager so the gate
// ordering and breaker behavior can be inspected without a data file.
var riskDemoCmd = &cobra.Command{
	Use:   "risk-demo",
	Short: "Walk a scripted scenario through the risk gates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		rm := risk.NewManager(cfg.Risk)
		now := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
		initial := cfg.Environment.InitialBalance

		fmt.Println("== Risk gate walkthrough ==")
		printGate(rm, initial, initial, now, "fresh session")

		qty := rm.PositionSize(0.5, initial, initial, 150, 0.01)
		fmt.Printf("sized half-strength order at $150: %d shares\n", qty)
		if err := rm.OpenPosition(cfg.Environment.Symbol, 150, qty, now); err != nil {
			return err
		}
		pos, _ := rm.Position(cfg.Environment.Symbol)
		fmt.Printf("opened %s: stop at %.2f\n", pos.Symbol, pos.StopLossPrice)

		rm.UpdateTrailingStop(cfg.Environment.Symbol, 160)
		pos, _ = rm.Position(cfg.Environment.Symbol)
		fmt.Printf("price ran to 160: stop trailed to %.2f\n", pos.StopLossPrice)

		if hit, reason := rm.CheckStopLoss(cfg.Environment.Symbol, pos.StopLossPrice-0.01); hit {
			fmt.Printf("stop triggered: %s\n", reason)
			if _, err := rm.ClosePosition(cfg.Environment.Symbol, pos.StopLossPrice-0.01, now); err != nil {
				return err
			}
		}

		fmt.Println("\n== Daily-loss circuit breaker ==")
		lossValue := initial * (1 - cfg.Risk.DailyLossLimit - 0.01)
		printGate(rm, lossValue, lossValue, now, "past daily loss limit")
		nextDay := now.Add(24 * time.Hour)
		printGate(rm, lossValue, lossValue, nextDay, "next day (auto-clears)")

		fmt.Println("\n== Emergency stop ==")
		rm.EmergencyStop("operator halt")
		printGate(rm, lossValue, lossValue, nextDay.Add(24*time.Hour), "after emergency stop")
		rm.ResumeTrading()
		printGate(rm, lossValue, lossValue, nextDay.Add(24*time.Hour), "after resume")

		b, _ := json.MarshalIndent(rm.Metrics(lossValue), "", "  ")
		fmt.Printf("\nrisk metrics:\n%s\n", b)
		return nil
	},
}

func printGate(rm *risk.Manager, value, cash float64, now time.Time, label string) {
	ok, reason := rm.CanTrade(value, cash, now)
	if ok {
		fmt.Printf("%-28s allow\n", label)
		return
	}
	fmt.Printf("%-28s block: %s\n", label, reason)
}

func init() {
	rootCmd.AddCommand(riskDemoCmd)
}
