package binanceclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradereport/internal/domain"
	"tradereport/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestNew(t *testing.T) {
	t.Run("requires logger", func(t *testing.T) {
		_, err := New(Config{APIKey: "k", SecretKey: "s"})
		assert.Error(t, err)
	})

	t.Run("selects testnet base URL", func(t *testing.T) {
		c, err := New(Config{APIKey: "k", SecretKey: "s", UseTestnet: true, Logger: &mockLogger{}})
		require.NoError(t, err)
		assert.Equal(t, baseURLTestnet, c.futuresClient.BaseURL)
	})

	t.Run("selects production base URL", func(t *testing.T) {
		c, err := New(Config{APIKey: "k", SecretKey: "s", Logger: &mockLogger{}})
		require.NoError(t, err)
		assert.Equal(t, baseURLProduction, c.futuresClient.BaseURL)
	})
}

func TestHandleError(t *testing.T) {
	c, err := New(Config{APIKey: "k", SecretKey: "s", Logger: &mockLogger{}})
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil passes through", nil, nil},
		{"server busy", &common.APIError{Code: -1008, Message: "busy"}, ports.ErrExchangeUnavailable},
		{"rate limited", &common.APIError{Code: -1003, Message: "too many requests"}, ports.ErrRateLimited},
		{"backend timeout", &common.APIError{Code: -1007, Message: "timeout"}, ports.ErrTimeout},
		{"recv window", &common.APIError{Code: -1021, Message: "timestamp outside recvWindow"}, ports.ErrTimeout},
		{"bad signature", &common.APIError{Code: -1022, Message: "invalid signature"}, ports.ErrAuthenticationFailed},
		{"bad parameter", &common.APIError{Code: -1102, Message: "mandatory parameter missing"}, ports.ErrInvalidRequest},
		{"bad api key", &common.APIError{Code: -2015, Message: "invalid api key"}, ports.ErrInvalidAPIKeys},
		{"unmapped code", &common.APIError{Code: -9999, Message: "whatever"}, ports.ErrUnknown},
		{"context canceled", context.Canceled, ports.ErrContextCanceled},
		{"plain network error", errors.New("connection refused"), ports.ErrConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.handleError(ctx, tt.in, "TestOp")
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.True(t, errors.Is(got, tt.want), "got %v, want wrapped %v", got, tt.want)
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(ports.ErrExchangeUnavailable))
	assert.True(t, isTransient(ports.ErrRateLimited))
	assert.True(t, isTransient(ports.ErrTimeout))
	assert.False(t, isTransient(ports.ErrInvalidRequest))
	assert.False(t, isTransient(ports.ErrConnectionFailed))
}

func TestAggregateFills(t *testing.T) {
	fills := []*futures.AccountTrade{
		{OrderID: 1, Commission: "0.5", RealizedPnl: "0"},
		{OrderID: 1, Commission: "0.25", RealizedPnl: "0"},
		{OrderID: 2, Commission: "0.1", RealizedPnl: "12.5"},
		{OrderID: 2, Commission: "0.1", RealizedPnl: "-2.5"},
	}

	agg := aggregateFills(fills)

	require.Contains(t, agg, int64(1))
	assert.InDelta(t, 0.75, agg[1].commission, 1e-9)
	assert.False(t, agg[1].hasPnl, "all-zero realized pnl must not mark the order as closing")

	require.Contains(t, agg, int64(2))
	assert.InDelta(t, 0.2, agg[2].commission, 1e-9)
	assert.True(t, agg[2].hasPnl)
	assert.InDelta(t, 10.0, agg[2].realizedPnl, 1e-9)
}

func TestTranslateOrder(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("filled order with pnl", func(t *testing.T) {
		order := &futures.Order{
			OrderID:          12345,
			Side:             futures.SideTypeSell,
			Type:             futures.OrderTypeTakeProfitMarket,
			ExecutedQuantity: "10",
			CumQuote:         "1100.50",
			AvgPrice:         "110.05",
			ReduceOnly:       true,
			ClosePosition:    true,
			Time:             at.UnixMilli(),
		}

		rec, err := translateOrder(order, orderFills{commission: 1.1, realizedPnl: 42, hasPnl: true})
		require.NoError(t, err)

		assert.Equal(t, "12345", rec.ID)
		assert.Equal(t, domain.Sell, rec.Side)
		assert.InDelta(t, 10.0, rec.Quantity, 1e-9)
		assert.InDelta(t, 1100.50, rec.NotionalValue, 1e-9)
		assert.InDelta(t, 1.1, rec.FeesPaid, 1e-9)
		assert.True(t, rec.Timestamp.Equal(at))
		assert.Equal(t, "take_profit_market", rec.OrderType)
		assert.True(t, rec.ReduceOnly)
		assert.True(t, rec.IsBracketLeg)
		require.NotNil(t, rec.MetadataPnl)
		assert.InDelta(t, 42.0, *rec.MetadataPnl, 1e-9)
	})

	t.Run("missing cum quote falls back to avg price", func(t *testing.T) {
		order := &futures.Order{
			OrderID:          1,
			Side:             futures.SideTypeBuy,
			Type:             futures.OrderTypeMarket,
			ExecutedQuantity: "4",
			CumQuote:         "0",
			AvgPrice:         "25.5",
			Time:             at.UnixMilli(),
		}

		rec, err := translateOrder(order, orderFills{})
		require.NoError(t, err)
		assert.InDelta(t, 102.0, rec.NotionalValue, 1e-9)
		assert.Nil(t, rec.MetadataPnl)
	})

	t.Run("unparseable quantity", func(t *testing.T) {
		order := &futures.Order{OrderID: 1, ExecutedQuantity: "n/a", CumQuote: "0"}
		_, err := translateOrder(order, orderFills{})
		assert.Error(t, err)
	})

	t.Run("unfilled order is invalid for the engine", func(t *testing.T) {
		order := &futures.Order{
			OrderID:          7,
			Side:             futures.SideTypeBuy,
			Type:             futures.OrderTypeLimit,
			ExecutedQuantity: "0",
			CumQuote:         "0",
			AvgPrice:         "0",
			Time:             at.UnixMilli(),
		}
		rec, err := translateOrder(order, orderFills{})
		require.NoError(t, err)
		assert.False(t, rec.IsValid())
	})
}
