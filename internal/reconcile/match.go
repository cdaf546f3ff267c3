package reconcile

import (
	"context"
	"time"

	"tradereport/internal/domain"
)

// pairedTrade is a provisional trade: matched opening and closing legs
// before any price or fee computation.
type pairedTrade struct {
	side  domain.PositionSide
	entry ClassifiedRecord
	exit  ClassifiedRecord
}

// match pairs opening executions with the nearest qualifying closing
// execution of the complementary role, run independently for the long and
// short pools. Returns the provisional pairs and the opening records left
// unmatched, which later become open positions.
func (e *Engine) match(ctx context.Context, classified []ClassifiedRecord) ([]pairedTrade, []ClassifiedRecord) {
	var (
		openLongs, closeLongs   []ClassifiedRecord
		openShorts, closeShorts []ClassifiedRecord
	)
	for _, cr := range classified {
		switch cr.Role {
		case domain.RoleOpenLong:
			openLongs = append(openLongs, cr)
		case domain.RoleCloseLong:
			closeLongs = append(closeLongs, cr)
		case domain.RoleOpenShort:
			openShorts = append(openShorts, cr)
		case domain.RoleCloseShort:
			closeShorts = append(closeShorts, cr)
		}
	}

	e.logger.Debug(ctx, "Matching pools", map[string]interface{}{
		"openLongs":   len(openLongs),
		"closeLongs":  len(closeLongs),
		"openShorts":  len(openShorts),
		"closeShorts": len(closeShorts),
	})

	pairs, unmatched := e.matchPool(domain.Long, openLongs, closeLongs)
	shortPairs, shortUnmatched := e.matchPool(domain.Short, openShorts, closeShorts)
	pairs = append(pairs, shortPairs...)
	unmatched = append(unmatched, shortUnmatched...)
	return pairs, unmatched
}

// matchPool walks the opening records in ascending time order and greedily
// pairs each with the unconsumed closing record closest in time that falls
// strictly after it and inside the match window. Ties are broken by earliest
// timestamp, then lowest execution id, which keeps the pairing stable for
// any permutation of the input.
//
// Quantity mismatches between the two legs are resolved at finalization by
// taking the smaller leg; the surplus on the larger leg is not carried
// forward into a follow-on trade.
func (e *Engine) matchPool(side domain.PositionSide, opens, closes []ClassifiedRecord) ([]pairedTrade, []ClassifiedRecord) {
	sortByTimeThenID(opens)
	sortByTimeThenID(closes)

	consumed := make([]bool, len(closes))
	var pairs []pairedTrade
	var unmatched []ClassifiedRecord

	for _, open := range opens {
		best := -1
		var bestDiff time.Duration
		for i := range closes {
			if consumed[i] {
				continue
			}
			if !closes[i].Record.Timestamp.After(open.Record.Timestamp) {
				continue
			}
			diff := closes[i].Record.Timestamp.Sub(open.Record.Timestamp)
			if diff > e.window {
				// closes are time-sorted, nothing further can qualify
				break
			}
			if best == -1 || diff < bestDiff {
				best = i
				bestDiff = diff
			}
		}
		if best == -1 {
			unmatched = append(unmatched, open)
			continue
		}
		consumed[best] = true
		pairs = append(pairs, pairedTrade{side: side, entry: open, exit: closes[best]})
	}

	return pairs, unmatched
}
