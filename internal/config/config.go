// Package config loads the per-session YAML configuration. Unknown
// algorithm or malformed files are fatal at startup; zero values fall
// back to safe defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quantarc/tradesim/internal/env"
	"github.com/quantarc/tradesim/internal/risk"
)

type Monitor struct {
	MaxLatencyMs      float64 `yaml:"max_latency_ms"`
	StaleAfterSeconds int     `yaml:"stale_after_seconds"`
	MetricsAddr       string  `yaml:"metrics_addr"` // empty disables the /metrics endpoint
}

type Alerts struct {
	MinIntervalSeconds int    `yaml:"min_interval_seconds"`
	WebhookURL         string `yaml:"webhook_url"`
	TelegramBotToken   string `yaml:"telegram_bot_token"`
	TelegramChatID     string `yaml:"telegram_chat_id"`
}

type Data struct {
	BarsCSV       string  `yaml:"bars_csv"`
	SyntheticBars int     `yaml:"synthetic_bars"`
	StartPrice    float64 `yaml:"start_price"`
	Seed          int64   `yaml:"seed"`
	SpreadBps     float64 `yaml:"spread_bps"`
}

type Paths struct {
	RiskState string `yaml:"risk_state"`
	JournalDB string `yaml:"journal_db"`
}

type Root struct {
	Environment env.Config  `yaml:"environment"`
	Risk        risk.Limits `yaml:"risk"`
	Monitor     Monitor     `yaml:"monitor"`
	Alerts      Alerts      `yaml:"alerts"`
	Data        Data        `yaml:"data"`
	Paths       Paths       `yaml:"paths"`
}

// Default returns the configuration used when no file is supplied.
func Default() Root {
	return Root{
		Environment: env.DefaultConfig(),
		Risk:        risk.DefaultLimits(),
		Monitor:     Monitor{MaxLatencyMs: 100, StaleAfterSeconds: 60},
		Alerts:      Alerts{MinIntervalSeconds: 300},
		Data:        Data{SyntheticBars: 252, StartPrice: 100, Seed: 1, SpreadBps: 4},
		Paths:       Paths{RiskState: "data/risk_state.json"},
	}
}

// Load reads path and fills any zero values with defaults.
func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	return c, nil
}

func applyDefaults(c *Root) {
	d := Default()
	if c.Environment.InitialBalance == 0 {
		c.Environment.InitialBalance = d.Environment.InitialBalance
	}
	if c.Environment.TransactionCost == 0 {
		c.Environment.TransactionCost = d.Environment.TransactionCost
	}
	if c.Environment.MaxPositionSize == 0 {
		c.Environment.MaxPositionSize = d.Environment.MaxPositionSize
	}
	if c.Environment.Symbol == "" {
		c.Environment.Symbol = d.Environment.Symbol
	}
	if c.Risk.MaxPositionSize == 0 {
		c.Risk.MaxPositionSize = d.Risk.MaxPositionSize
	}
	if c.Risk.StopLossPct == 0 {
		c.Risk.StopLossPct = d.Risk.StopLossPct
	}
	if c.Risk.DailyLossLimit == 0 {
		c.Risk.DailyLossLimit = d.Risk.DailyLossLimit
	}
	if c.Risk.MaxTradesPerDay == 0 {
		c.Risk.MaxTradesPerDay = d.Risk.MaxTradesPerDay
	}
	if c.Risk.MaxDrawdown == 0 {
		c.Risk.MaxDrawdown = d.Risk.MaxDrawdown
	}
	if c.Risk.VolatilityThreshold == 0 {
		c.Risk.VolatilityThreshold = d.Risk.VolatilityThreshold
	}
	if c.Risk.MaxPortfolioRisk == 0 {
		c.Risk.MaxPortfolioRisk = d.Risk.MaxPortfolioRisk
	}
	if c.Risk.MinBalance == 0 {
		c.Risk.MinBalance = d.Risk.MinBalance
	}
	if c.Monitor.MaxLatencyMs == 0 {
		c.Monitor.MaxLatencyMs = d.Monitor.MaxLatencyMs
	}
	if c.Monitor.StaleAfterSeconds == 0 {
		c.Monitor.StaleAfterSeconds = d.Monitor.StaleAfterSeconds
	}
	if c.Alerts.MinIntervalSeconds == 0 {
		c.Alerts.MinIntervalSeconds = d.Alerts.MinIntervalSeconds
	}
	if c.Data.SyntheticBars == 0 {
		c.Data.SyntheticBars = d.Data.SyntheticBars
	}
	if c.Data.StartPrice == 0 {
		c.Data.StartPrice = d.Data.StartPrice
	}
	if c.Data.Seed == 0 {
		c.Data.Seed = d.Data.Seed
	}
	if c.Data.SpreadBps == 0 {
		c.Data.SpreadBps = d.Data.SpreadBps
	}
	if c.Paths.RiskState == "" {
		c.Paths.RiskState = d.Paths.RiskState
	}
}
