package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tradereport/internal/domain"
	"tradereport/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// pageLimit is the maximum page size of the futures history endpoints.
	pageLimit = 1000
)

// Client implements the ports.ExecutionSource interface using the go-binance
// library. It fetches closed orders and the account trades that filled them,
// joining the two into domain ExecutionRecords.
type Client struct {
	futuresClient *futures.Client
	logger        ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance execution source adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. History endpoints require authentication.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using the global futures.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	return &Client{
		futuresClient: client,
		logger:        cfg.Logger,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1000, -1001, -1008: // Internal error / disconnected / server busy
			mappedErr = ports.ErrExchangeUnavailable
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1007: // Timeout waiting for backend response
			mappedErr = ports.ErrTimeout
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022: // Invalid signature
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130:
			mappedErr = ports.ErrInvalidRequest
		case -2014: // API-key format invalid
			mappedErr = ports.ErrInvalidAPIKeys
		case -2015: // Invalid API-key, IP, or permissions for action
			mappedErr = ports.ErrInvalidAPIKeys
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, mappedErr, "Binance API error", fields)
		return fmt.Errorf("%s failed: %w (binance code %d: %s)", operation, mappedErr, apiErr.Code, apiErr.Message)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn(ctx, "Binance request canceled", fields)
		return fmt.Errorf("%s canceled: %w", operation, ports.ErrContextCanceled)
	}

	c.logger.Error(ctx, err, "Binance request failed", fields)
	return fmt.Errorf("%s failed: %w: %v", operation, ports.ErrConnectionFailed, err)
}

// isTransient reports whether an already-mapped error represents a transient
// server-side condition. Pagination is truncated on these, returning the
// partial batch fetched so far instead of failing the whole fetch.
func isTransient(err error) bool {
	return errors.Is(err, ports.ErrExchangeUnavailable) ||
		errors.Is(err, ports.ErrRateLimited) ||
		errors.Is(err, ports.ErrTimeout)
}

// Ping checks connectivity to the Binance API.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, "Ping")
	}
	return nil
}

// GetServerTime retrieves the current server time from the exchange.
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	ts, err := c.futuresClient.NewServerTimeService().Do(ctx)
	if err != nil {
		return time.Time{}, c.handleError(ctx, err, "GetServerTime")
	}
	return time.UnixMilli(ts), nil
}

// GetExecutions fetches all filled orders for the symbol between start and
// end and joins each with the commissions and realized P&L of the account
// trades that filled it. Records are deduplicated by order id across pages.
func (c *Client) GetExecutions(ctx context.Context, symbol string, start, end time.Time) ([]domain.ExecutionRecord, error) {
	orders, err := c.fetchOrders(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	fills, err := c.fetchAccountTrades(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	fillsByOrder := aggregateFills(fills)

	records := make([]domain.ExecutionRecord, 0, len(orders))
	for _, o := range orders {
		rec, err := translateOrder(o, fillsByOrder[o.OrderID])
		if err != nil {
			c.logger.Warn(ctx, "Skipping untranslatable order", map[string]interface{}{
				"orderID": o.OrderID,
				"error":   err.Error(),
			})
			continue
		}
		records = append(records, rec)
	}

	c.logger.Info(ctx, "Fetched executions", map[string]interface{}{
		"symbol": symbol,
		"orders": len(orders),
		"fills":  len(fills),
		"count":  len(records),
	})
	return records, nil
}

// fetchOrders pages through the order history for the time range. On a
// transient server error the pagination stops early and the partial batch is
// returned; orders seen on more than one page are deduplicated by id.
func (c *Client) fetchOrders(ctx context.Context, symbol string, start, end time.Time) ([]*futures.Order, error) {
	op := "fetchOrders"
	var all []*futures.Order
	seen := make(map[int64]struct{})
	from := start

	for {
		orders, err := c.futuresClient.NewListOrdersService().
			Symbol(symbol).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(pageLimit).
			Do(ctx)
		if err != nil {
			mapped := c.handleError(ctx, err, op)
			if isTransient(mapped) {
				c.logger.Warn(ctx, "Transient server error, truncating order pagination", map[string]interface{}{
					"fetchedSoFar": len(all),
				})
				break
			}
			return nil, mapped
		}
		if len(orders) == 0 {
			break
		}
		for _, o := range orders {
			if _, ok := seen[o.OrderID]; ok {
				continue
			}
			seen[o.OrderID] = struct{}{}
			all = append(all, o)
		}
		last := orders[len(orders)-1]
		from = time.UnixMilli(last.Time)
		if from.After(end) || len(orders) < pageLimit {
			break
		}
	}

	return all, nil
}

// fetchAccountTrades pages through the account trade history. The first page
// is bounded by the time range; subsequent pages use the trade id cursor,
// which the endpoint does not allow combining with a time range.
func (c *Client) fetchAccountTrades(ctx context.Context, symbol string, start, end time.Time) ([]*futures.AccountTrade, error) {
	op := "fetchAccountTrades"
	var all []*futures.AccountTrade
	seen := make(map[int64]struct{})
	fromID := int64(-1)

	for {
		svc := c.futuresClient.NewListAccountTradeService().
			Symbol(symbol).
			Limit(pageLimit)
		if fromID >= 0 {
			svc = svc.FromID(fromID)
		} else {
			svc = svc.StartTime(start.UnixMilli()).EndTime(end.UnixMilli())
		}

		fills, err := svc.Do(ctx)
		if err != nil {
			mapped := c.handleError(ctx, err, op)
			if isTransient(mapped) {
				c.logger.Warn(ctx, "Transient server error, truncating trade pagination", map[string]interface{}{
					"fetchedSoFar": len(all),
				})
				break
			}
			return nil, mapped
		}
		if len(fills) == 0 {
			break
		}

		done := false
		for _, f := range fills {
			if f.Time > end.UnixMilli() {
				done = true
				break
			}
			if _, ok := seen[f.ID]; ok {
				continue
			}
			seen[f.ID] = struct{}{}
			all = append(all, f)
		}
		if done || len(fills) < pageLimit {
			break
		}
		fromID = fills[len(fills)-1].ID + 1
	}

	return all, nil
}

// orderFills is the per-order aggregation of account trades.
type orderFills struct {
	commission  float64
	realizedPnl float64
	hasPnl      bool
}

// aggregateFills sums commissions and realized P&L per order id.
func aggregateFills(fills []*futures.AccountTrade) map[int64]orderFills {
	agg := make(map[int64]orderFills, len(fills))
	for _, f := range fills {
		entry := agg[f.OrderID]
		if v, err := strconv.ParseFloat(f.Commission, 64); err == nil {
			entry.commission += v
		}
		if v, err := strconv.ParseFloat(f.RealizedPnl, 64); err == nil && v != 0 {
			entry.realizedPnl += v
			entry.hasPnl = true
		}
		agg[f.OrderID] = entry
	}
	return agg
}

// translateOrder maps a Binance order plus its aggregated fills onto a
// domain ExecutionRecord. Orders with no executed quantity (cancelled or
// unfilled) translate to records the engine later discards as invalid.
func translateOrder(o *futures.Order, fills orderFills) (domain.ExecutionRecord, error) {
	qty, err := strconv.ParseFloat(o.ExecutedQuantity, 64)
	if err != nil {
		return domain.ExecutionRecord{}, fmt.Errorf("parsing executed quantity %q: %w", o.ExecutedQuantity, err)
	}
	notional, err := strconv.ParseFloat(o.CumQuote, 64)
	if err != nil {
		return domain.ExecutionRecord{}, fmt.Errorf("parsing cumulative quote %q: %w", o.CumQuote, err)
	}
	if notional == 0 && qty > 0 {
		// Some order states report no cumulative quote; fall back to the
		// average fill price.
		if avg, err := strconv.ParseFloat(o.AvgPrice, 64); err == nil {
			notional = avg * qty
		}
	}

	rec := domain.ExecutionRecord{
		ID:            strconv.FormatInt(o.OrderID, 10),
		Side:          translateSide(o.Side),
		Quantity:      qty,
		NotionalValue: notional,
		FeesPaid:      fills.commission,
		Timestamp:     time.UnixMilli(o.Time),
		OrderType:     strings.ToLower(string(o.Type)),
		ReduceOnly:    o.ReduceOnly,
		IsBracketLeg:  o.ClosePosition,
	}
	if fills.hasPnl {
		pnl := fills.realizedPnl
		rec.MetadataPnl = &pnl
	}
	return rec, nil
}

func translateSide(side futures.SideType) domain.OrderSide {
	if side == futures.SideTypeSell {
		return domain.Sell
	}
	return domain.Buy
}
