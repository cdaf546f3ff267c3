package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradereport/internal/domain"
	"tradereport/internal/ports"
)

// BracketPolicy controls how bracket-order legs are classified when no
// stronger signal (reduce-only flag, reported P&L, an explicit stop or
// take-profit order type) applies. The exchange feed is genuinely ambiguous
// here, so the choice is a policy parameter rather than a hard-coded
// assumption.
type BracketPolicy string

const (
	// BracketAsClosing treats bracket legs as closing executions (default).
	BracketAsClosing BracketPolicy = "closing"
	// BracketAsOpening treats bracket legs as opening executions.
	BracketAsOpening BracketPolicy = "opening"
)

// ParseBracketPolicy converts a string to a BracketPolicy.
// Unknown values default to BracketAsClosing.
func ParseBracketPolicy(s string) BracketPolicy {
	if strings.EqualFold(s, string(BracketAsOpening)) {
		return BracketAsOpening
	}
	return BracketAsClosing
}

const (
	defaultMatchWindow      = 24 * time.Hour
	defaultBalanceTolerance = 100
)

// defaultClosingOrderTypes are the order type tags that mark an execution as
// closing when neither a reduce-only flag nor a reported P&L is present.
var defaultClosingOrderTypes = []string{"stop", "stop_market", "take_profit", "take_profit_market"}

// Config holds the tunable parameters of the reconciliation engine.
// Zero values mean "use the default", so a zero MatchWindow or
// BalanceTolerance is not representable; the smallest configurable values
// are one nanosecond and one.
type Config struct {
	// MatchWindow bounds how far after an opening execution a closing
	// execution may occur and still be paired with it. Defaults to 24h.
	MatchWindow time.Duration

	// BracketPolicy decides the role of bracket legs. Defaults to closing.
	BracketPolicy BracketPolicy

	// BalanceTolerance is the maximum difference between buy and sell counts
	// at which the fallback classifier still uses a midpoint split rather
	// than a whole-side split. Defaults to 100.
	BalanceTolerance int

	// ClosingOrderTypes overrides the order type tags treated as closing.
	ClosingOrderTypes []string

	Logger ports.Logger
}

// ClassifiedRecord pairs an execution with its derived role.
type ClassifiedRecord struct {
	Record domain.ExecutionRecord
	Role   domain.Role
}

// Result is the output of one reconciliation run.
type Result struct {
	Trades  []domain.Trade // Finalized trades ordered by entry time
	Summary domain.Summary // Aggregate statistics, including drop/skip counts
}

// Engine reconstructs round-trip trades from a raw execution batch.
//
// The engine is a pure batch computation: every Reconcile call is
// independent, keeps no state between runs, and may be invoked concurrently
// from separate call sites. Given the same input batch in any permutation it
// produces identical output; the pipeline sorts before matching and before
// finalizing.
type Engine struct {
	window           time.Duration
	bracketPolicy    BracketPolicy
	balanceTolerance int
	closingTypes     map[string]struct{}
	logger           ports.Logger
}

// New creates a reconciliation engine, applying defaults for unset parameters.
func New(cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the reconciliation engine")
	}
	if cfg.MatchWindow < 0 {
		return nil, fmt.Errorf("match window cannot be negative: %v", cfg.MatchWindow)
	}
	if cfg.BalanceTolerance < 0 {
		return nil, fmt.Errorf("balance tolerance cannot be negative: %d", cfg.BalanceTolerance)
	}

	window := cfg.MatchWindow
	if window == 0 {
		window = defaultMatchWindow
	}
	tolerance := cfg.BalanceTolerance
	if tolerance == 0 {
		tolerance = defaultBalanceTolerance
	}
	policy := cfg.BracketPolicy
	switch policy {
	case "":
		policy = BracketAsClosing
	case BracketAsClosing, BracketAsOpening:
	default:
		return nil, fmt.Errorf("unknown bracket policy: %q", cfg.BracketPolicy)
	}
	closingTypes := cfg.ClosingOrderTypes
	if closingTypes == nil {
		closingTypes = defaultClosingOrderTypes
	}
	typeSet := make(map[string]struct{}, len(closingTypes))
	for _, t := range closingTypes {
		typeSet[strings.ToLower(t)] = struct{}{}
	}

	return &Engine{
		window:           window,
		bracketPolicy:    policy,
		balanceTolerance: tolerance,
		closingTypes:     typeSet,
		logger:           cfg.Logger,
	}, nil
}

// Reconcile runs the full pipeline over the input batch: validation and role
// classification, greedy pair matching, trade finalization and aggregation.
// The input slice is not mutated. An empty or wholly invalid batch yields an
// empty result rather than an error.
func (e *Engine) Reconcile(ctx context.Context, records []domain.ExecutionRecord) *Result {
	classified, dropped, usedFallback := e.classify(ctx, records)
	pairs, unmatchedOpens := e.match(ctx, classified)
	trades, skipped := e.finalize(ctx, pairs, unmatchedOpens)

	summary := Summarize(trades)
	summary.DroppedRecords = dropped
	summary.SkippedTrades = skipped
	summary.UsedFallbackClassification = usedFallback

	e.logger.Info(ctx, "Reconciliation complete", map[string]interface{}{
		"totalTrades":  summary.TotalTrades,
		"closedTrades": summary.ClosedTrades,
		"openTrades":   summary.OpenTrades,
		"skipped":      summary.SkippedTrades,
		"dropped":      summary.DroppedRecords,
		"usedFallback": summary.UsedFallbackClassification,
	})

	return &Result{Trades: trades, Summary: summary}
}
