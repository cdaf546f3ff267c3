package ports

import (
	"context"
	"time"

	"tradereport/internal/domain"
)

// ReconciliationRun records one full engine run over a symbol's execution feed.
type ReconciliationRun struct {
	ID        string         // Run identifier, assigned on save if empty
	Symbol    string         // Symbol the feed was fetched for
	CreatedAt time.Time      // When the run was persisted
	Summary   domain.Summary // Aggregate statistics for the run
}

// ReportRepository persists reconciled trades together with their run summaries.
type ReportRepository interface {
	// SaveRun stores the run and its trade sequence atomically and returns
	// the assigned run ID.
	SaveRun(ctx context.Context, run *ReconciliationRun, trades []domain.Trade) (string, error)

	// GetRun retrieves a run by its ID. Returns ErrNotFound if absent.
	GetRun(ctx context.Context, id string) (*ReconciliationRun, error)

	// ListRuns retrieves the most recent runs for a symbol, newest first.
	ListRuns(ctx context.Context, symbol string, limit int) ([]*ReconciliationRun, error)

	// GetTradesByRun retrieves the ordered trade sequence of a run.
	GetTradesByRun(ctx context.Context, runID string) ([]domain.Trade, error)

	// Close releases the underlying storage resources.
	Close() error
}
