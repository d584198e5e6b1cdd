package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quantarc/tradesim/internal/risk"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	quantity INTEGER NOT NULL,
	pnl REAL NOT NULL,
	pnl_pct REAL NOT NULL,
	entry_time DATETIME NOT NULL,
	exit_time DATETIME NOT NULL,
	stop_loss_hit INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	value REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`

// SQLite is the durable Journal implementation.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t risk.Trade) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, entry_price, exit_price, quantity, pnl, pnl_pct, entry_time, exit_time, stop_loss_hit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, t.EntryPrice, t.ExitPrice, t.Quantity,
		t.PnL, t.PnLPct, t.EntryTime, t.ExitTime, t.StopLossHit,
	)
	return err
}

func (j *SQLite) RecordEquity(s EquitySnapshot) error {
	_, err := j.db.Exec(`INSERT INTO equity (time, cash, value) VALUES (?, ?, ?)`,
		s.Time, s.Cash, s.Value)
	return err
}

// RecentTrades returns up to n trades, most recent exit first.
func (j *SQLite) RecentTrades(n int) ([]risk.Trade, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, symbol, entry_price, exit_price, quantity, pnl, pnl_pct, entry_time, exit_time, stop_loss_hit
		FROM trades ORDER BY exit_time DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []risk.Trade
	for rows.Next() {
		var t risk.Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.EntryPrice, &t.ExitPrice, &t.Quantity,
			&t.PnL, &t.PnLPct, &t.EntryTime, &t.ExitTime, &t.StopLossHit); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
