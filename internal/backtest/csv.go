package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"RSISentinel/internal/model"
)

// CSVHeader is the column order written by WriteCSV.
var CSVHeader = []string{
	"symbol", "timeframe", "entry_time", "entry_price", "direction",
	"exit_price", "exit_time", "outcome", "profit_pct", "bars_held", "strength",
}

const csvTimeLayout = "2006-01-02T15:04:05Z07:00"

// WriteCSV writes one row per simulated trade.
func WriteCSV(path string, trades []model.TradeResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range trades {
		exitTime := ""
		if !t.ExitTime.IsZero() {
			exitTime = t.ExitTime.Format(csvTimeLayout)
		}
		if err := w.Write([]string{
			t.Symbol, t.Timeframe, t.EntryTime.Format(csvTimeLayout), formatF(t.EntryPrice),
			string(t.Direction), formatF(t.ExitPrice), exitTime, string(t.Outcome),
			formatF(t.ProfitPct), strconv.Itoa(t.BarsHeld), formatF(t.Strength),
		}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
