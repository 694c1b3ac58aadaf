package utils

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"pairsniper/internal/domain"
)

// WriteTradesToCSV exports closed trades for offline analysis.
func WriteTradesToCSV(trades []*domain.ClosedTrade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"token", "symbol", "investment_bnb", "net_proceeds_bnb", "net_profit_bnb", "entry_time", "exit_time", "exit_reason", "sale_count", "win"})

	for _, t := range trades {
		writer.Write([]string{
			string(t.Token),
			t.Symbol,
			strconv.FormatFloat(t.Investment, 'f', -1, 64),
			strconv.FormatFloat(t.NetProceeds, 'f', -1, 64),
			strconv.FormatFloat(t.NetProfit, 'f', -1, 64),
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			string(t.ExitReason),
			strconv.Itoa(t.SaleCount),
			strconv.FormatBool(t.Win),
		})
	}
	return writer.Error()
}
