package reconcile

import "tradereport/internal/domain"

// Summarize aggregates a finalized trade sequence into a Summary.
// Pure aggregation: the input is never mutated. P&L, fees and the win rate
// are computed over closed trades only.
func Summarize(trades []domain.Trade) domain.Summary {
	var s domain.Summary
	winners := 0
	for i := range trades {
		t := &trades[i]
		s.TotalTrades++
		if t.Status == domain.StatusClosed {
			s.ClosedTrades++
			s.TotalPnl += t.RealizedPnl
			s.TotalFees += t.Fees
			if t.RealizedPnl > 0 {
				winners++
			}
		} else {
			s.OpenTrades++
		}
	}
	if s.ClosedTrades > 0 {
		s.WinRate = float64(winners) / float64(s.ClosedTrades)
	}
	return s
}
