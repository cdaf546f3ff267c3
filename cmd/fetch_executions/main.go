package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"tradereport/config"
	"tradereport/internal/adapters/binanceclient"
	"tradereport/internal/adapters/logger"
	"tradereport/internal/utils"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Exchange Client (Binance Adapter)
	source, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	end := time.Now()
	start := end.AddDate(0, 0, -cfg.LookbackDays)

	fmt.Printf("Fetching executions for %s from %s to %s...\n", cfg.Symbol, start, end)
	records, err := source.GetExecutions(context.Background(), cfg.Symbol, start, end)
	if err != nil {
		appLogger.Error(context.Background(), err, "Error fetching executions")
		log.Fatalf("Error fetching executions: %v", err)
	}
	appLogger.Info(context.Background(), "Fetched executions", map[string]interface{}{"count": len(records)})

	if err := os.MkdirAll(cfg.ReportDir, 0755); err != nil {
		log.Fatalf("Error creating report directory: %v", err)
	}
	filename := fmt.Sprintf("%s/%s_executions_%s_to_%s.csv", cfg.ReportDir, cfg.Symbol, start.Format("20060102"), end.Format("20060102"))
	if err := utils.WriteExecutionsToCSV(records, filename); err != nil {
		appLogger.Error(context.Background(), err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(context.Background(), "Saved to", map[string]interface{}{"filename": filename})
}
