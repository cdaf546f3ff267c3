package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradereport/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func TestAssignRole(t *testing.T) {
	e := newTestEngine(t, Config{})

	tests := []struct {
		name   string
		record domain.ExecutionRecord
		want   domain.Role
	}{
		{
			name:   "plain buy opens long",
			record: buyRecord("1", 1, 100, 0, baseTime),
			want:   domain.RoleOpenLong,
		},
		{
			name:   "plain sell opens short",
			record: domain.ExecutionRecord{ID: "2", Side: domain.Sell, Quantity: 1, NotionalValue: 100, Timestamp: baseTime, OrderType: "limit"},
			want:   domain.RoleOpenShort,
		},
		{
			name:   "reduce only sell closes long",
			record: sellRecord("3", 1, 100, 0, baseTime, true),
			want:   domain.RoleCloseLong,
		},
		{
			name: "reduce only buy closes short",
			record: domain.ExecutionRecord{ID: "4", Side: domain.Buy, Quantity: 1, NotionalValue: 100,
				Timestamp: baseTime, OrderType: "market", ReduceOnly: true},
			want: domain.RoleCloseShort,
		},
		{
			name: "realized pnl metadata closes",
			record: domain.ExecutionRecord{ID: "5", Side: domain.Buy, Quantity: 1, NotionalValue: 100,
				Timestamp: baseTime, OrderType: "market", MetadataPnl: floatPtr(12.5)},
			want: domain.RoleCloseShort,
		},
		{
			name: "zero realized pnl still closes",
			record: domain.ExecutionRecord{ID: "6", Side: domain.Sell, Quantity: 1, NotionalValue: 100,
				Timestamp: baseTime, OrderType: "market", MetadataPnl: floatPtr(0)},
			want: domain.RoleCloseLong,
		},
		{
			name: "stop market order type closes",
			record: domain.ExecutionRecord{ID: "7", Side: domain.Sell, Quantity: 1, NotionalValue: 100,
				Timestamp: baseTime, OrderType: "stop_market"},
			want: domain.RoleCloseLong,
		},
		{
			name: "take profit order type closes regardless of case",
			record: domain.ExecutionRecord{ID: "8", Side: domain.Buy, Quantity: 1, NotionalValue: 100,
				Timestamp: baseTime, OrderType: "TAKE_PROFIT"},
			want: domain.RoleCloseShort,
		},
		{
			name: "bracket leg closes by default",
			record: domain.ExecutionRecord{ID: "9", Side: domain.Sell, Quantity: 1, NotionalValue: 100,
				Timestamp: baseTime, OrderType: "limit", IsBracketLeg: true},
			want: domain.RoleCloseLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.assignRole(tt.record))
		})
	}
}

func TestAssignRolePrecedence(t *testing.T) {
	e := newTestEngine(t, Config{})

	// Reduce-only wins even when every other signal is present.
	record := domain.ExecutionRecord{
		ID: "1", Side: domain.Sell, Quantity: 1, NotionalValue: 100, Timestamp: baseTime,
		OrderType: "stop_market", ReduceOnly: true, IsBracketLeg: true, MetadataPnl: floatPtr(5),
	}
	assert.Equal(t, domain.RoleCloseLong, e.assignRole(record))

	// Pnl metadata outranks the bracket policy: even with brackets treated
	// as opening, a pnl-carrying bracket leg closes.
	opening := newTestEngine(t, Config{BracketPolicy: BracketAsOpening})
	record = domain.ExecutionRecord{
		ID: "2", Side: domain.Buy, Quantity: 1, NotionalValue: 100, Timestamp: baseTime,
		OrderType: "market", IsBracketLeg: true, MetadataPnl: floatPtr(-3),
	}
	assert.Equal(t, domain.RoleCloseShort, opening.assignRole(record))

	// Without the pnl signal the opening policy applies to bracket legs.
	record.MetadataPnl = nil
	assert.Equal(t, domain.RoleOpenShort, opening.assignRole(record))
}

func TestAssignRoleCustomClosingTypes(t *testing.T) {
	e := newTestEngine(t, Config{ClosingOrderTypes: []string{"liquidation"}})

	record := domain.ExecutionRecord{ID: "1", Side: domain.Sell, Quantity: 1, NotionalValue: 100,
		Timestamp: baseTime, OrderType: "liquidation"}
	assert.Equal(t, domain.RoleCloseLong, e.assignRole(record))

	// The custom list replaces the defaults.
	record.OrderType = "stop_market"
	assert.Equal(t, domain.RoleOpenShort, e.assignRole(record))
}

// When every record looks like a close, population balance repairs the split:
// near-balanced sides are split at the chronological midpoint.
func TestClassifyFallbackMidpointSplit(t *testing.T) {
	e := newTestEngine(t, Config{})

	records := []domain.ExecutionRecord{
		sellRecord("1", 1, 100, 0, baseTime, true),
		{ID: "2", Side: domain.Buy, Quantity: 1, NotionalValue: 100, Timestamp: baseTime.Add(time.Hour),
			OrderType: "market", ReduceOnly: true},
		sellRecord("3", 1, 100, 0, baseTime.Add(2*time.Hour), true),
		{ID: "4", Side: domain.Buy, Quantity: 1, NotionalValue: 100, Timestamp: baseTime.Add(3 * time.Hour),
			OrderType: "market", ReduceOnly: true},
	}

	classified, dropped, usedFallback := e.classify(context.Background(), records)
	require.Len(t, classified, 4)
	assert.Zero(t, dropped)
	assert.True(t, usedFallback)

	roles := map[string]domain.Role{}
	for _, c := range classified {
		roles[c.Record.ID] = c.Role
	}
	assert.Equal(t, domain.RoleOpenShort, roles["1"])
	assert.Equal(t, domain.RoleOpenLong, roles["2"])
	assert.Equal(t, domain.RoleCloseLong, roles["3"])
	assert.Equal(t, domain.RoleCloseShort, roles["4"])
}

// With a strong side imbalance the minority side becomes the entries.
func TestClassifyFallbackMinoritySide(t *testing.T) {
	e := newTestEngine(t, Config{BalanceTolerance: 1})

	records := []domain.ExecutionRecord{
		{ID: "1", Side: domain.Buy, Quantity: 1, NotionalValue: 100, Timestamp: baseTime,
			OrderType: "market", ReduceOnly: true},
	}
	for i := 0; i < 5; i++ {
		records = append(records, sellRecord(string(rune('a'+i)), 1, 100, 0,
			baseTime.Add(time.Duration(i+1)*time.Hour), true))
	}

	classified, _, usedFallback := e.classify(context.Background(), records)
	require.Len(t, classified, 6)
	assert.True(t, usedFallback)

	for _, c := range classified {
		if c.Record.Side == domain.Buy {
			assert.Equal(t, domain.RoleOpenLong, c.Role)
		} else {
			assert.Equal(t, domain.RoleCloseLong, c.Role)
		}
	}
}

// A mix of opens and closes never triggers the fallback.
func TestClassifyFallbackNotTriggeredWhenSplitIsSane(t *testing.T) {
	e := newTestEngine(t, Config{})

	records := []domain.ExecutionRecord{
		buyRecord("1", 1, 100, 0, baseTime),
		sellRecord("2", 1, 100, 0, baseTime.Add(time.Hour), true),
	}

	classified, _, usedFallback := e.classify(context.Background(), records)
	require.Len(t, classified, 2)
	assert.False(t, usedFallback)
}

// A batch of only opening executions is a normal state (positions that have
// not closed yet) and must keep its roles: the fallback repairs closes
// without opens, never the reverse.
func TestClassifyAllOpensIsNotDegenerate(t *testing.T) {
	e := newTestEngine(t, Config{})

	records := []domain.ExecutionRecord{
		buyRecord("1", 1, 100, 0, baseTime),
		buyRecord("2", 1, 100, 0, baseTime.Add(time.Hour)),
		{ID: "3", Side: domain.Sell, Quantity: 1, NotionalValue: 100,
			Timestamp: baseTime.Add(2 * time.Hour), OrderType: "limit"},
	}

	classified, _, usedFallback := e.classify(context.Background(), records)
	require.Len(t, classified, 3)
	assert.False(t, usedFallback)
	for _, c := range classified {
		assert.True(t, c.Role.IsOpening(), "record %s was reclassified to %s", c.Record.ID, c.Role)
	}
}
