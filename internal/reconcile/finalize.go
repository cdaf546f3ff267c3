package reconcile

import (
	"context"
	"math"
	"sort"
	"time"

	"tradereport/internal/domain"
)

// finalize computes the economics of every provisional pair, converts
// unmatched opening records into open positions, orders the combined
// sequence by entry time and enforces the global non-overlap invariant.
// Returns the retained trades and the count dropped for overlapping.
func (e *Engine) finalize(ctx context.Context, pairs []pairedTrade, unmatchedOpens []ClassifiedRecord) ([]domain.Trade, int) {
	trades := make([]domain.Trade, 0, len(pairs)+len(unmatchedOpens))

	for _, p := range pairs {
		if trade, ok := e.buildClosedTrade(ctx, p); ok {
			trades = append(trades, trade)
		}
	}
	for _, open := range unmatchedOpens {
		if trade, ok := e.buildOpenTrade(ctx, open); ok {
			trades = append(trades, trade)
		}
	}

	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].EntryTime.Equal(trades[j].EntryTime) {
			return trades[i].EntryOrderID < trades[j].EntryOrderID
		}
		return trades[i].EntryTime.Before(trades[j].EntryTime)
	})

	// Walk the ordered sequence with a running cursor. A trade whose entry
	// does not fall strictly after the previous trade's effective end would
	// overlap it in time and is dropped.
	final := make([]domain.Trade, 0, len(trades))
	skipped := 0
	var lastEnd time.Time
	for _, tr := range trades {
		if len(final) > 0 && !tr.EntryTime.After(lastEnd) {
			skipped++
			e.logger.Warn(ctx, "Skipping trade overlapping the running sequence", map[string]interface{}{
				"entryOrderID": tr.EntryOrderID,
				"entryTime":    tr.EntryTime,
				"lastEnd":      lastEnd,
			})
			continue
		}
		final = append(final, tr)
		lastEnd = tr.EffectiveEnd()
	}

	return final, skipped
}

// buildClosedTrade derives quantity, prices, cashflow, fees and P&L for a
// matched pair. The matched quantity is the smaller leg; notional value and
// fees of each leg are scaled proportionally to the share of the leg that
// the trade consumes.
func (e *Engine) buildClosedTrade(ctx context.Context, p pairedTrade) (domain.Trade, bool) {
	entry, exit := p.entry.Record, p.exit.Record

	if !exit.Timestamp.After(entry.Timestamp) {
		e.logger.Warn(ctx, "Skipping pair with non-increasing leg times", map[string]interface{}{
			"entryOrderID": entry.ID,
			"exitOrderID":  exit.ID,
		})
		return domain.Trade{}, false
	}

	qty := math.Min(entry.Quantity, exit.Quantity)
	if qty <= 0 {
		e.logger.Warn(ctx, "Skipping trade with non-positive quantity", map[string]interface{}{
			"entryOrderID": entry.ID,
			"exitOrderID":  exit.ID,
		})
		return domain.Trade{}, false
	}

	entryCash := entry.NotionalValue * (qty / entry.Quantity)
	exitCash := exit.NotionalValue * (qty / exit.Quantity)
	entryFees := entry.FeesPaid * (qty / entry.Quantity)
	exitFees := exit.FeesPaid * (qty / exit.Quantity)

	entryPrice := entryCash / qty
	exitPrice := exitCash / qty
	if entryPrice <= 0 || exitPrice <= 0 {
		e.logger.Warn(ctx, "Skipping trade with non-positive derived price", map[string]interface{}{
			"entryOrderID": entry.ID,
			"exitOrderID":  exit.ID,
			"entryPrice":   entryPrice,
			"exitPrice":    exitPrice,
		})
		return domain.Trade{}, false
	}

	cashflow := exitCash - entryCash
	if p.side == domain.Short {
		cashflow = entryCash - exitCash
	}
	fees := entryFees + exitFees

	return domain.Trade{
		Side:         p.side,
		EntryOrderID: entry.ID,
		ExitOrderID:  exit.ID,
		EntryTime:    entry.Timestamp,
		ExitTime:     exit.Timestamp,
		Quantity:     qty,
		EntryPrice:   entryPrice,
		ExitPrice:    exitPrice,
		Cashflow:     cashflow,
		Fees:         fees,
		RealizedPnl:  cashflow - fees,
		Status:       domain.StatusClosed,
	}, true
}

// buildOpenTrade converts an unmatched opening execution into an open
// position. Only the entry-side fee is carried; cashflow and P&L stay unset
// until a closing leg exists.
func (e *Engine) buildOpenTrade(ctx context.Context, open ClassifiedRecord) (domain.Trade, bool) {
	rec := open.Record

	price := rec.Price()
	if rec.Quantity <= 0 || price <= 0 {
		e.logger.Warn(ctx, "Skipping open position with invalid data", map[string]interface{}{
			"entryOrderID": rec.ID,
			"quantity":     rec.Quantity,
			"price":        price,
		})
		return domain.Trade{}, false
	}

	side := domain.Long
	if open.Role == domain.RoleOpenShort {
		side = domain.Short
	}

	return domain.Trade{
		Side:         side,
		EntryOrderID: rec.ID,
		EntryTime:    rec.Timestamp,
		Quantity:     rec.Quantity,
		EntryPrice:   price,
		Fees:         rec.FeesPaid,
		Status:       domain.StatusOpen,
	}, true
}
