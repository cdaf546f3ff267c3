package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"tradereport/internal/adapters/logger"
	"tradereport/internal/adapters/sqlite"
)

// Lists the recent reconciliation runs for a symbol. With a run id argument,
// prints that run's trade sequence instead. Reads only DB_PATH, SYMBOL and
// LOG_LEVEL from the environment, so no exchange credentials are needed.
func main() {
	appLogger := logger.NewStdLogger(logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: os.Getenv("DB_PATH"), Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open database: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()

	if len(os.Args) > 1 {
		printRun(ctx, repo, os.Args[1])
		return
	}

	symbol := os.Getenv("SYMBOL")
	if symbol == "" {
		symbol = "ETHUSDT"
	}

	runs, err := repo.ListRuns(ctx, symbol, 20)
	if err != nil {
		log.Fatalf("Error listing runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Printf("No runs recorded for %s.\n", symbol)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Run\tCreated\tTrades\tClosed\tOpen\tP&L\tFees\tWinRate\tSkipped\tDropped\t")
	for _, run := range runs {
		s := run.Summary
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.2f\t%.2f\t%.1f%%\t%d\t%d\t\n",
			run.ID, run.CreatedAt.Format("2006-01-02 15:04"),
			s.TotalTrades, s.ClosedTrades, s.OpenTrades,
			s.TotalPnl, s.TotalFees, s.WinRate*100,
			s.SkippedTrades, s.DroppedRecords)
	}
	w.Flush()
}

func printRun(ctx context.Context, repo *sqlite.Repository, runID string) {
	run, err := repo.GetRun(ctx, runID)
	if err != nil {
		log.Fatalf("Error loading run %s: %v", runID, err)
	}
	trades, err := repo.GetTradesByRun(ctx, runID)
	if err != nil {
		log.Fatalf("Error loading trades of run %s: %v", runID, err)
	}

	fmt.Printf("Run %s (%s, %s)\n\n", run.ID, run.Symbol, run.CreatedAt.Format("2006-01-02 15:04:05"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Side\tEntry\tExit\tQty\tEntryPx\tExitPx\tP&L\tStatus\t")
	for i := range trades {
		t := &trades[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t\n",
			t.Side, t.EntryOrderID, t.ExitOrderID, t.Quantity,
			t.EntryPrice, t.ExitPrice, t.RealizedPnl, t.Status)
	}
	w.Flush()

	s := run.Summary
	fmt.Printf("\nTrades: %d (closed %d, open %d)  P&L: $%.2f  Fees: $%.2f  Win rate: %.1f%%\n",
		s.TotalTrades, s.ClosedTrades, s.OpenTrades, s.TotalPnl, s.TotalFees, s.WinRate*100)
	if s.UsedFallbackClassification {
		fmt.Println("NOTE: fallback classification was used for this run")
	}
}
