package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"tradereport/internal/adapters/logger"
	"tradereport/internal/reconcile"
	"tradereport/internal/utils"
)

// Reconciles a previously saved executions CSV offline, without touching the
// exchange or the database. Useful for re-running a report with different
// engine parameters. Only the engine knobs are read from the environment, so
// no exchange credentials are needed.
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <executions.csv>", os.Args[0])
	}
	inputFile := os.Args[1]

	appLogger := logger.NewStdLogger(logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	records, err := utils.ReadExecutionsFromCSV(inputFile)
	if err != nil {
		log.Fatalf("Error reading executions from %s: %v", inputFile, err)
	}
	appLogger.Info(context.Background(), "Loaded executions", map[string]interface{}{
		"filename": inputFile,
		"count":    len(records),
	})

	engine, err := reconcile.New(reconcile.Config{
		MatchWindow:      time.Duration(envInt("MATCH_WINDOW_HOURS", 0)) * time.Hour,
		BracketPolicy:    reconcile.ParseBracketPolicy(os.Getenv("BRACKET_POLICY")),
		BalanceTolerance: envInt("BALANCE_TOLERANCE", 0),
		Logger:           appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize reconciliation engine: %v", err)
	}

	result := engine.Reconcile(context.Background(), records)

	outputFile := strings.TrimSuffix(inputFile, ".csv") + "_trades.csv"
	if err := utils.WriteTradesToCSV(result.Trades, outputFile); err != nil {
		log.Fatalf("Error writing trade report: %v", err)
	}

	// Print the per-trade breakdown and the summary
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Side\tEntry\tExit\tQty\tEntryPx\tExitPx\tCashflow\tFees\tP&L\tStatus\t")
	for i := range result.Trades {
		t := &result.Trades[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t\n",
			t.Side, t.EntryOrderID, t.ExitOrderID, t.Quantity,
			t.EntryPrice, t.ExitPrice, t.Cashflow, t.Fees, t.RealizedPnl, t.Status)
	}
	w.Flush()

	s := result.Summary
	fmt.Printf("\nTrades: %d (closed %d, open %d)  P&L: $%.2f  Fees: $%.2f  Win rate: %.1f%%\n",
		s.TotalTrades, s.ClosedTrades, s.OpenTrades, s.TotalPnl, s.TotalFees, s.WinRate*100)
	if s.SkippedTrades > 0 || s.DroppedRecords > 0 {
		fmt.Printf("Skipped trades: %d  Dropped records: %d\n", s.SkippedTrades, s.DroppedRecords)
	}
	if s.UsedFallbackClassification {
		fmt.Println("NOTE: fallback classification was used")
	}
	fmt.Printf("Report written to %s\n", outputFile)
}

// envInt reads an integer env var, falling back to def when unset or
// unparseable. Zero values let the engine apply its own defaults.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return n
}
