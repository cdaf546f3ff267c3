package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"path/filepath"
	"time"

	"tradereport/config"
	"tradereport/internal/adapters/binanceclient"
	"tradereport/internal/adapters/logger"
	"tradereport/internal/adapters/sqlite"
	"tradereport/internal/ports"
	"tradereport/internal/reconcile"
	"tradereport/internal/utils"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	// 4. Initialize Exchange Client (Binance Adapter)
	source, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := source.Ping(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Exchange connectivity check failed")
		log.Fatalf("FATAL: Exchange connectivity check failed: %v", err)
	}

	// 5. Initialize Reconciliation Engine
	engine, err := reconcile.New(reconcile.Config{
		MatchWindow:      cfg.MatchWindow,
		BracketPolicy:    cfg.BracketPolicy,
		BalanceTolerance: cfg.BalanceTolerance,
		Logger:           appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize reconciliation engine")
		log.Fatalf("FATAL: Failed to initialize reconciliation engine: %v", err)
	}

	// 6. Fetch the execution feed and reconcile it
	end := time.Now()
	start := end.AddDate(0, 0, -cfg.LookbackDays)
	appLogger.Info(ctx, "Fetching execution feed", map[string]interface{}{
		"symbol": cfg.Symbol,
		"start":  start.Format(time.RFC3339),
		"end":    end.Format(time.RFC3339),
	})

	records, err := source.GetExecutions(ctx, cfg.Symbol, start, end)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to fetch executions")
		log.Fatalf("FATAL: Failed to fetch executions: %v", err)
	}

	result := engine.Reconcile(ctx, records)

	// 7. Persist the run and write the CSV reports
	run := &ports.ReconciliationRun{
		Symbol:  cfg.Symbol,
		Summary: result.Summary,
	}
	runID, err := repo.SaveRun(ctx, run, result.Trades)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to persist reconciliation run")
	} else {
		appLogger.Info(ctx, "Reconciliation run persisted", map[string]interface{}{"runID": runID})
	}

	if err := os.MkdirAll(cfg.ReportDir, 0755); err != nil {
		appLogger.Error(ctx, err, "Failed to create report directory")
		log.Fatalf("FATAL: Failed to create report directory: %v", err)
	}
	timestamped := filepath.Join(cfg.ReportDir, fmt.Sprintf("%s_trades_%s.csv", cfg.Symbol, end.Format("20060102_150405")))
	latest := filepath.Join(cfg.ReportDir, fmt.Sprintf("%s_trades_latest.csv", cfg.Symbol))
	for _, filename := range []string{timestamped, latest} {
		if err := utils.WriteTradesToCSV(result.Trades, filename); err != nil {
			appLogger.Error(ctx, err, "Failed to write trade report", map[string]interface{}{"filename": filename})
			log.Fatalf("FATAL: Failed to write trade report: %v", err)
		}
	}
	appLogger.Info(ctx, "Trade reports written", map[string]interface{}{
		"timestamped": timestamped,
		"latest":      latest,
	})

	// 8. Print the summary
	printSummary(cfg.Symbol, result)
}

func printSummary(symbol string, result *reconcile.Result) {
	s := result.Summary
	fmt.Printf("\n=== %s Trading Report ===\n", symbol)
	fmt.Printf("Total trades:    %d\n", s.TotalTrades)
	fmt.Printf("Closed trades:   %d\n", s.ClosedTrades)
	fmt.Printf("Open positions:  %d\n", s.OpenTrades)
	fmt.Printf("Total P&L:       $%.2f\n", s.TotalPnl)
	fmt.Printf("Total fees:      $%.2f\n", s.TotalFees)
	fmt.Printf("Win rate:        %.1f%%\n", s.WinRate*100)
	if s.SkippedTrades > 0 {
		fmt.Printf("Skipped trades:  %d (overlapping sequence)\n", s.SkippedTrades)
	}
	if s.DroppedRecords > 0 {
		fmt.Printf("Dropped records: %d (failed validation)\n", s.DroppedRecords)
	}
	if s.UsedFallbackClassification {
		fmt.Println("NOTE: fallback classification was used; treat this report as lower confidence")
	}
}
