package main

// Dumps the most recent closed trades from the archive, optionally
// exporting them to CSV.

import (
	"context"
	"flag"
	"fmt"
	"log"

	"pairsniper/config"
	"pairsniper/internal/adapters/logger"
	"pairsniper/internal/adapters/sqlite"
	"pairsniper/internal/utils"
)

func main() {
	limit := flag.Int("limit", 50, "number of trades to show, newest first")
	csvPath := flag.String("csv", "", "also export the trades to this CSV file")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(logger.LevelWarn)

	archive, err := sqlite.NewArchive(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("failed to open trade archive: %v", err)
	}
	defer archive.Close()

	trades, err := archive.RecentCloses(context.Background(), *limit)
	if err != nil {
		log.Fatalf("failed to read trades: %v", err)
	}
	if len(trades) == 0 {
		fmt.Println("No closed trades recorded.")
		return
	}

	var netProfit float64
	wins := 0
	fmt.Printf("%-10s %-12s %12s %12s %12s  %s\n", "SYMBOL", "REASON", "INVESTED", "RETURNED", "P/L", "EXIT")
	for _, t := range trades {
		netProfit += t.NetProfit
		if t.Win {
			wins++
		}
		fmt.Printf("%-10s %-12s %12.4f %12.4f %+12.4f  %s\n",
			t.Symbol, t.ExitReason, t.Investment, t.NetProceeds, t.NetProfit,
			t.ExitTime.Format("2006-01-02 15:04"))
	}
	fmt.Printf("\n%d trades, %d wins, net %+.4f BNB\n", len(trades), wins, netProfit)

	if *csvPath != "" {
		if err := utils.WriteTradesToCSV(trades, *csvPath); err != nil {
			log.Fatalf("failed to write CSV: %v", err)
		}
		fmt.Printf("Exported to %s\n", *csvPath)
	}
}
