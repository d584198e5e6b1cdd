package risk

// Limits holds the per-session risk configuration. Immutable once the
// manager is constructed.
type Limits struct {
	MaxPositionSize      float64 `yaml:"max_position_size" json:"max_position_size"`
	MaxPortfolioRisk     float64 `yaml:"max_portfolio_risk" json:"max_portfolio_risk"`
	StopLossPct          float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	DailyLossLimit       float64 `yaml:"daily_loss_limit" json:"daily_loss_limit"`
	MaxTradesPerDay      int     `yaml:"max_trades_per_day" json:"max_trades_per_day"`
	MaxDrawdown          float64 `yaml:"max_drawdown" json:"max_drawdown"`
	VolatilityThreshold  float64 `yaml:"volatility_threshold" json:"volatility_threshold"`
	MinBalance           float64 `yaml:"min_balance" json:"min_balance"`
	AutoResumeOnDrawdown bool    `yaml:"auto_resume_on_drawdown" json:"auto_resume_on_drawdown"`
}

// DefaultLimits returns a conservative baseline: 20% per position, 2%
// trailing stop, 5% daily loss limit, 15% max drawdown.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:     0.20,
		MaxPortfolioRisk:    1.0,
		StopLossPct:         0.02,
		DailyLossLimit:      0.05,
		MaxTradesPerDay:     50,
		MaxDrawdown:         0.15,
		VolatilityThreshold: 0.03,
		MinBalance:          10000.0,
	}
}
