package ports

import (
	"context"
	"time"

	"tradereport/internal/domain"
)

// ExecutionSource supplies the raw execution feed for a symbol and time range.
// This abstraction decouples the reconciliation engine from any specific
// exchange implementation.
//
// Implementations page through the exchange's history endpoints, deduplicate
// records by execution id across pages, and tolerate transient server errors
// by returning the partial batch fetched so far rather than failing the
// whole fetch.
type ExecutionSource interface {
	// GetExecutions retrieves all executions for the symbol between start and end.
	GetExecutions(ctx context.Context, symbol string, start, end time.Time) ([]domain.ExecutionRecord, error)

	// Ping checks connectivity to the upstream feed.
	Ping(ctx context.Context) error
}
