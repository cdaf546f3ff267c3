package domain

import "time"

// ExecutionRecord represents one reported fill or order from the exchange feed.
type ExecutionRecord struct {
	ID            string    // Exchange execution/order identifier, unique within a feed
	Side          OrderSide // BUY or SELL
	Quantity      float64   // Filled quantity
	NotionalValue float64   // Cash value of the fill as reported (price * quantity)
	FeesPaid      float64   // Fees paid in quote currency
	Timestamp     time.Time // Execution time
	OrderType     string    // Exchange order type tag (market, limit, stop_market, ...)
	ReduceOnly    bool      // True if the exchange marked this execution as position-reducing
	IsBracketLeg  bool      // True if part of a stop-loss/take-profit bracket group
	MetadataPnl   *float64  // Realized P&L reported by the exchange, if any
}

// Price derives the average fill price from the reported notional value.
// Returns 0 for records with no usable quantity.
func (e *ExecutionRecord) Price() float64 {
	if e.Quantity <= 0 {
		return 0
	}
	return e.NotionalValue / e.Quantity
}

// IsValid reports whether the record represents an actual fill.
// Cancelled and unfilled orders carry no quantity or notional value and are
// discarded before classification.
func (e *ExecutionRecord) IsValid() bool {
	if e.Side != Buy && e.Side != Sell {
		return false
	}
	return e.Quantity > 0 && e.NotionalValue > 0
}
