package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quantarc/tradesim/internal/journal"
)

var reportLimit int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the most recent closed trades from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if cfg.Paths.JournalDB == "" {
			return fmt.Errorf("no journal_db path configured")
		}

		jr, err := journal.NewSQLite(cfg.Paths.JournalDB)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jr.Close()

		trades, err := jr.RecentTrades(reportLimit)
		if err != nil {
			return fmt.Errorf("query trades: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EXIT TIME\tSYMBOL\tQTY\tENTRY\tEXIT\tPNL\tPNL%\tSTOP")
		for _, t := range trades {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f%%\t%v\n",
				t.ExitTime.Format("2006-01-02 15:04"), t.Symbol, t.Quantity,
				t.EntryPrice, t.ExitPrice, t.PnL, t.PnLPct*100, t.StopLossHit)
		}
		return w.Flush()
	},
}

func init() {
	reportCmd.Flags().IntVarP(&reportLimit, "limit", "n", 20, "number of trades to show")
}
