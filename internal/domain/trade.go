package domain

import "time"

// Trade represents one reconciled round-trip trade (entry plus exit), or a
// still-open position when no exit leg was matched within the window.
type Trade struct {
	Side         PositionSide // LONG or SHORT
	EntryOrderID string       // Identifier of the entry execution
	ExitOrderID  string       // Identifier of the exit execution (empty while open)
	EntryTime    time.Time    // Timestamp of the entry execution
	ExitTime     time.Time    // Timestamp of the exit execution (zero value while open)
	Quantity     float64      // Matched quantity (min of the two legs' quantities)
	EntryPrice   float64      // Proportionally scaled average entry price
	ExitPrice    float64      // Proportionally scaled average exit price (0 while open)
	Cashflow     float64      // Net notional cash movement before fees (0 while open)
	Fees         float64      // Scaled entry plus exit fees
	RealizedPnl  float64      // Cashflow minus fees (0 while open)
	Status       TradeStatus  // open or closed
}

// IsOpen checks if the trade is still an open position.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// EffectiveEnd is the time at which the trade stops occupying the sequence:
// the exit time for closed trades, the entry time for open positions.
func (t *Trade) EffectiveEnd() time.Time {
	if t.Status == StatusClosed {
		return t.ExitTime
	}
	return t.EntryTime
}

// Duration returns the holding time of a closed trade, zero for open trades.
func (t *Trade) Duration() time.Duration {
	if t.Status != StatusClosed {
		return 0
	}
	return t.ExitTime.Sub(t.EntryTime)
}
