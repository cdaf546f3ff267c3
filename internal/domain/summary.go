package domain

// Summary aggregates a reconciled trade sequence into headline statistics.
type Summary struct {
	TotalTrades    int     // Closed trades plus open positions
	ClosedTrades   int     // Fully matched entry/exit pairs
	OpenTrades     int     // Entries with no matched exit
	TotalPnl       float64 // Sum of realized P&L over closed trades
	TotalFees      float64 // Sum of fees over closed trades
	WinRate        float64 // Closed trades with positive P&L / closed trades (0 when none)
	SkippedTrades  int     // Trades dropped for violating the non-overlap ordering
	DroppedRecords int     // Input records discarded during validation

	// UsedFallbackClassification is true when the primary role heuristics
	// produced a degenerate split and the population-balance fallback ran.
	// Callers should treat such output as lower confidence.
	UsedFallbackClassification bool
}
