package main

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantarc/tradesim/internal/alerts"
	"github.com/quantarc/tradesim/internal/config"
	"github.com/quantarc/tradesim/internal/env"
	"github.com/quantarc/tradesim/internal/journal"
	"github.com/quantarc/tradesim/internal/marketdata"
	"github.com/quantarc/tradesim/internal/monitor"
	"github.com/quantarc/tradesim/internal/observ"
	"github.com/quantarc/tradesim/internal/risk"
)

// momentumLookback is the window for the built-in demo policy. Real
// strategies drive the environment through the env package directly.
const momentumLookback = 10

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a data series through the environment and report episode stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEpisode(loadConfig())
	},
}

func runEpisode(cfg config.Root) error {
	bars, err := loadBars(cfg.Data)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	frames := marketdata.Frames(bars, cfg.Data.SpreadBps)
	observ.Log("data_loaded", map[string]any{"bars": len(bars), "frames": len(frames)})

	rm := risk.NewManager(cfg.Risk)
	if cfg.Paths.RiskState != "" {
		if err := rm.LoadState(cfg.Paths.RiskState); err != nil {
			return fmt.Errorf("load risk state: %w", err)
		}
	}

	e, err := env.New(frames, cfg.Environment, rm)
	if err != nil {
		return fmt.Errorf("build environment: %w", err)
	}

	if addr := cfg.Monitor.MetricsAddr; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observ.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				observ.Log("metrics_server_error", map[string]any{"error": err.Error()})
			}
		}()
	}

	am := buildAlerts(cfg.Alerts)
	health := monitor.NewHealth(cfg.Monitor.MaxLatencyMs, time.Duration(cfg.Monitor.StaleAfterSeconds)*time.Second)
	tracker := monitor.NewTracker(cfg.Environment.InitialBalance, health, am)

	jr, err := openJournal(cfg.Paths.JournalDB)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jr.Close()

	e.Reset()
	seenTrades := len(rm.History())

	for step := 0; !e.Terminated(); step++ {
		frame := e.CurrentFrame()
		started := time.Now()

		action := momentumAction(bars, step)
		if hit, reason := rm.CheckStopLoss(cfg.Environment.Symbol, frame.Price); hit {
			action = -1
			am.Alert("stop_loss", alerts.SeverityWarning, reason)
		}

		res := e.Step(action)
		value := e.PortfolioValue()

		tracker.UpdateEquity(value, frame.Time)
		if err := jr.RecordEquity(journal.EquitySnapshot{Time: frame.Time, Cash: e.Cash(), Value: value}); err != nil {
			observ.Log("journal_error", map[string]any{"error": err.Error()})
		}

		hist := rm.History()
		for _, tr := range hist[seenTrades:] {
			tracker.RecordTrade(tr)
			if err := jr.RecordTrade(tr); err != nil {
				observ.Log("journal_error", map[string]any{"error": err.Error()})
			}
		}
		seenTrades = len(hist)

		quote := marketdata.SyntheticQuote(bars[step], cfg.Data.Seed)
		tracker.CheckHealth(float64(time.Since(started).Microseconds())/1000, quote, frame.Time)

		if res.Stats != nil {
			printStats(*res.Stats, tracker, frame.Time)
		}
	}

	if cfg.Paths.RiskState != "" {
		if err := rm.SaveState(cfg.Paths.RiskState); err != nil {
			return fmt.Errorf("save risk state: %w", err)
		}
	}
	return nil
}

func loadBars(d config.Data) ([]marketdata.Bar, error) {
	if d.BarsCSV != "" {
		return marketdata.LoadBarsCSV(d.BarsCSV)
	}
	return marketdata.Synthetic(d.SyntheticBars, d.StartPrice, d.Seed), nil
}

func buildAlerts(a config.Alerts) *alerts.Manager {
	sinks := []alerts.Sink{alerts.LogSink{}}
	if a.WebhookURL != "" {
		sinks = append(sinks, alerts.NewWebhookSink(a.WebhookURL))
	}
	token := envOr(a.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	chatID := envOr(a.TelegramChatID, "TELEGRAM_CHAT_ID")
	if token != "" && chatID != "" {
		sinks = append(sinks, alerts.NewTelegramSink(token, chatID))
	}
	return alerts.NewManager(time.Duration(a.MinIntervalSeconds)*time.Second, sinks...)
}

func openJournal(path string) (journal.Journal, error) {
	if path == "" {
		return journal.Nop{}, nil
	}
	return journal.NewSQLite(path)
}

// momentumAction maps trailing return over the lookback window onto
// [-1, 1]. It is a stand-in policy so `run` exercises the full stack
// without an external agent.
func momentumAction(bars []marketdata.Bar, i int) float64 {
	if i < momentumLookback {
		return 0
	}
	prev := bars[i-momentumLookback].Close
	if prev <= 0 {
		return 0
	}
	mom := (bars[i].Close - prev) / prev
	return math.Max(-1, math.Min(1, mom*25))
}

func printStats(stats env.EpisodeStats, tracker *monitor.Tracker, now time.Time) {
	snap := tracker.Snapshot(now)
	out := map[string]any{
		"episode":     stats,
		"performance": snap.Performance,
		"health":      snap.Health,
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(os.Stdout, string(b))
}
