package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradereport/internal/domain"
	"tradereport/internal/ports"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.ReportRepository interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trade_reports.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		total_trades INTEGER NOT NULL,
		closed_trades INTEGER NOT NULL,
		open_trades INTEGER NOT NULL,
		total_pnl REAL NOT NULL,
		total_fees REAL NOT NULL,
		win_rate REAL NOT NULL,
		skipped_trades INTEGER NOT NULL,
		dropped_records INTEGER NOT NULL,
		used_fallback INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_order_id TEXT NOT NULL,
		exit_order_id TEXT DEFAULT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP DEFAULT NULL,
		quantity REAL NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL DEFAULT NULL,
		cashflow REAL DEFAULT NULL,
		fees REAL NOT NULL,
		realized_pnl REAL DEFAULT NULL,
		status TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES reconciliation_runs (id)
	);
	-- Add indexes for common lookups
	CREATE INDEX IF NOT EXISTS idx_runs_symbol_created_at ON reconciliation_runs (symbol, created_at);
	CREATE INDEX IF NOT EXISTS idx_trades_run_id ON trades (run_id);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// SaveRun stores the run summary and its trade sequence in one transaction.
// Assigns the run a fresh UUID if it has none, and returns the ID.
func (r *Repository) SaveRun(ctx context.Context, run *ports.ReconciliationRun, trades []domain.Trade) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction for run %s: %w", run.ID, err)
	}
	defer tx.Rollback()

	const runQuery = `
	INSERT INTO reconciliation_runs (id, symbol, created_at, total_trades, closed_trades, open_trades,
		total_pnl, total_fees, win_rate, skipped_trades, dropped_records, used_fallback)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	s := run.Summary
	if _, err := tx.ExecContext(ctx, runQuery,
		run.ID, run.Symbol, run.CreatedAt, s.TotalTrades, s.ClosedTrades, s.OpenTrades,
		s.TotalPnl, s.TotalFees, s.WinRate, s.SkippedTrades, s.DroppedRecords, s.UsedFallbackClassification); err != nil {
		return "", fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	const tradeQuery = `
	INSERT INTO trades (run_id, side, entry_order_id, exit_order_id, entry_time, exit_time,
		quantity, entry_price, exit_price, cashflow, fees, realized_pnl, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, tradeQuery)
	if err != nil {
		return "", fmt.Errorf("failed to prepare trade insert for run %s: %w", run.ID, err)
	}
	defer stmt.Close()

	for i := range trades {
		t := &trades[i]

		var exitOrderID sql.NullString
		var exitTime sql.NullTime
		var exitPrice, cashflow, realizedPnl sql.NullFloat64
		if t.Status == domain.StatusClosed {
			exitOrderID = sql.NullString{String: t.ExitOrderID, Valid: true}
			exitTime = sql.NullTime{Time: t.ExitTime, Valid: true}
			exitPrice = sql.NullFloat64{Float64: t.ExitPrice, Valid: true}
			cashflow = sql.NullFloat64{Float64: t.Cashflow, Valid: true}
			realizedPnl = sql.NullFloat64{Float64: t.RealizedPnl, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			run.ID, t.Side, t.EntryOrderID, exitOrderID, t.EntryTime, exitTime,
			t.Quantity, t.EntryPrice, exitPrice, cashflow, t.Fees, realizedPnl, t.Status); err != nil {
			return "", fmt.Errorf("failed to insert trade %d of run %s: %w", i, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}

	r.logger.Debug(ctx, "Reconciliation run saved", map[string]interface{}{
		"runID":  run.ID,
		"symbol": run.Symbol,
		"trades": len(trades),
	})
	return run.ID, nil
}

// GetRun retrieves a run by its ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*ports.ReconciliationRun, error) {
	const query = `
	SELECT id, symbol, created_at, total_trades, closed_trades, open_trades,
	       total_pnl, total_fees, win_rate, skipped_trades, dropped_records, used_fallback
	FROM reconciliation_runs
	WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs for a symbol, newest first.
func (r *Repository) ListRuns(ctx context.Context, symbol string, limit int) ([]*ports.ReconciliationRun, error) {
	const query = `
	SELECT id, symbol, created_at, total_trades, closed_trades, open_trades,
	       total_pnl, total_fees, win_rate, skipped_trades, dropped_records, used_fallback
	FROM reconciliation_runs
	WHERE symbol = ?
	ORDER BY created_at DESC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs for symbol %s: %w", symbol, err)
	}
	defer rows.Close()

	var runs []*ports.ReconciliationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run for symbol %s: %w", symbol, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs for symbol %s: %w", symbol, err)
	}
	return runs, nil
}

// GetTradesByRun retrieves the ordered trade sequence of a run.
func (r *Repository) GetTradesByRun(ctx context.Context, runID string) ([]domain.Trade, error) {
	const query = `
	SELECT side, entry_order_id, exit_order_id, entry_time, exit_time,
	       quantity, entry_price, exit_price, cashflow, fees, realized_pnl, status
	FROM trades
	WHERE run_id = ?
	ORDER BY entry_time ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for run %s: %w", runID, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var exitOrderID sql.NullString
		var exitTime sql.NullTime
		var exitPrice, cashflow, realizedPnl sql.NullFloat64

		if err := rows.Scan(&t.Side, &t.EntryOrderID, &exitOrderID, &t.EntryTime, &exitTime,
			&t.Quantity, &t.EntryPrice, &exitPrice, &cashflow, &t.Fees, &realizedPnl, &t.Status); err != nil {
			return nil, fmt.Errorf("failed to scan trade for run %s: %w", runID, err)
		}
		if exitOrderID.Valid {
			t.ExitOrderID = exitOrderID.String
		}
		if exitTime.Valid {
			t.ExitTime = exitTime.Time
		}
		if exitPrice.Valid {
			t.ExitPrice = exitPrice.Float64
		}
		if cashflow.Valid {
			t.Cashflow = cashflow.Float64
		}
		if realizedPnl.Valid {
			t.RealizedPnl = realizedPnl.Float64
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades for run %s: %w", runID, err)
	}
	return trades, nil
}

// rowScanner abstracts sql.Row and sql.Rows for the scan helper.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*ports.ReconciliationRun, error) {
	var run ports.ReconciliationRun
	var usedFallback int
	if err := row.Scan(&run.ID, &run.Symbol, &run.CreatedAt,
		&run.Summary.TotalTrades, &run.Summary.ClosedTrades, &run.Summary.OpenTrades,
		&run.Summary.TotalPnl, &run.Summary.TotalFees, &run.Summary.WinRate,
		&run.Summary.SkippedTrades, &run.Summary.DroppedRecords, &usedFallback); err != nil {
		return nil, err
	}
	run.Summary.UsedFallbackClassification = usedFallback != 0
	return &run, nil
}
