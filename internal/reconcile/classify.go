package reconcile

import (
	"context"
	"sort"
	"strings"

	"tradereport/internal/domain"
)

// classify validates the batch and assigns every surviving record a role.
// Returns the classified records, the number of records dropped during
// validation, and whether the fallback classifier ran.
func (e *Engine) classify(ctx context.Context, records []domain.ExecutionRecord) ([]ClassifiedRecord, int, bool) {
	classified := make([]ClassifiedRecord, 0, len(records))
	dropped := 0
	for _, rec := range records {
		if !rec.IsValid() {
			dropped++
			e.logger.Debug(ctx, "Discarding invalid execution record", map[string]interface{}{
				"id":       rec.ID,
				"side":     rec.Side,
				"quantity": rec.Quantity,
				"notional": rec.NotionalValue,
			})
			continue
		}
		classified = append(classified, ClassifiedRecord{Record: rec, Role: e.assignRole(rec)})
	}
	if dropped > 0 {
		e.logger.Warn(ctx, "Dropped invalid execution records", map[string]interface{}{"count": dropped})
	}

	usedFallback := false
	if isDegenerateSplit(classified) {
		e.logger.Warn(ctx, "Primary classification produced a degenerate entry/exit split, applying population-balance fallback")
		e.reclassifyByPopulationBalance(ctx, classified)
		usedFallback = true
	}

	return classified, dropped, usedFallback
}

// assignRole applies the layered role heuristic. The first matching rule
// wins: reduce-only flag, reported P&L, closing order types, bracket policy,
// then the side default (plain executions open positions).
func (e *Engine) assignRole(rec domain.ExecutionRecord) domain.Role {
	if rec.ReduceOnly {
		return domain.ClosingRole(rec.Side)
	}
	if rec.MetadataPnl != nil {
		return domain.ClosingRole(rec.Side)
	}
	if _, ok := e.closingTypes[strings.ToLower(rec.OrderType)]; ok {
		return domain.ClosingRole(rec.Side)
	}
	if rec.IsBracketLeg {
		if e.bracketPolicy == BracketAsOpening {
			return domain.OpeningRole(rec.Side)
		}
		return domain.ClosingRole(rec.Side)
	}
	return domain.OpeningRole(rec.Side)
}

// isDegenerateSplit reports whether the batch has closing records but no
// opening ones. Closes without any opens can never pair, which almost always
// means the upstream flags were unreliable for this batch. The reverse split
// (only opens) is a normal state: entries that simply have not closed yet.
func isDegenerateSplit(classified []ClassifiedRecord) bool {
	opens, closes := 0, 0
	for _, cr := range classified {
		if cr.Role.IsOpening() {
			opens++
		} else {
			closes++
		}
	}
	return opens == 0 && closes > 0
}

// reclassifyByPopulationBalance rebuilds the role assignment from the time
// ordering of the batch. When buy and sell counts differ by no more than the
// configured tolerance, the first half of the time-sorted sequence is
// labeled opening and the second half closing. Otherwise the side with fewer
// executions is labeled entirely opening and the other entirely closing.
// Output classified this way is lower confidence by construction.
func (e *Engine) reclassifyByPopulationBalance(ctx context.Context, classified []ClassifiedRecord) {
	sortByTimeThenID(classified)

	buys, sells := 0, 0
	for _, cr := range classified {
		if cr.Record.Side == domain.Buy {
			buys++
		} else {
			sells++
		}
	}

	diff := buys - sells
	if diff < 0 {
		diff = -diff
	}

	if diff <= e.balanceTolerance {
		mid := len(classified) / 2
		for i := range classified {
			if i < mid {
				classified[i].Role = domain.OpeningRole(classified[i].Record.Side)
			} else {
				classified[i].Role = domain.ClosingRole(classified[i].Record.Side)
			}
		}
		e.logger.Info(ctx, "Fallback classification: midpoint split", map[string]interface{}{
			"buys":     buys,
			"sells":    sells,
			"midpoint": mid,
		})
		return
	}

	// Heavily unbalanced batch: the minority side opens, the majority closes.
	openingSide := domain.Buy
	if sells < buys {
		openingSide = domain.Sell
	}
	for i := range classified {
		if classified[i].Record.Side == openingSide {
			classified[i].Role = domain.OpeningRole(classified[i].Record.Side)
		} else {
			classified[i].Role = domain.ClosingRole(classified[i].Record.Side)
		}
	}
	e.logger.Info(ctx, "Fallback classification: minority side opens", map[string]interface{}{
		"buys":        buys,
		"sells":       sells,
		"openingSide": openingSide,
	})
}

// sortByTimeThenID orders classified records ascending by timestamp, with
// the execution id as a deterministic tie-break.
func sortByTimeThenID(records []ClassifiedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Record, records[j].Record
		if a.Timestamp.Equal(b.Timestamp) {
			return a.ID < b.ID
		}
		return a.Timestamp.Before(b.Timestamp)
	})
}
