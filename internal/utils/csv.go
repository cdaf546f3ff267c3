package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"tradereport/internal/domain"
)

var executionHeader = []string{
	"id", "side", "quantity", "notional_value", "fees_paid",
	"timestamp", "order_type", "reduce_only", "is_bracket_leg", "metadata_pnl",
}

var tradeHeader = []string{
	"side", "entry_order_id", "exit_order_id", "entry_time", "exit_time",
	"quantity", "entry_price", "exit_price", "cashflow", "fees", "realized_pnl", "status",
}

// WriteExecutionsToCSV saves a raw execution batch for offline reconciliation.
func WriteExecutionsToCSV(records []domain.ExecutionRecord, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write(executionHeader)

	for i := range records {
		r := &records[i]
		pnl := ""
		if r.MetadataPnl != nil {
			pnl = strconv.FormatFloat(*r.MetadataPnl, 'f', -1, 64)
		}
		writer.Write([]string{
			r.ID,
			string(r.Side),
			strconv.FormatFloat(r.Quantity, 'f', -1, 64),
			strconv.FormatFloat(r.NotionalValue, 'f', -1, 64),
			strconv.FormatFloat(r.FeesPaid, 'f', -1, 64),
			r.Timestamp.Format(time.RFC3339Nano),
			r.OrderType,
			strconv.FormatBool(r.ReduceOnly),
			strconv.FormatBool(r.IsBracketLeg),
			pnl,
		})
	}
	return writer.Error()
}

// ReadExecutionsFromCSV loads an execution batch previously saved with
// WriteExecutionsToCSV.
func ReadExecutionsFromCSV(filename string) ([]domain.ExecutionRecord, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]domain.ExecutionRecord, 0, len(rows)-1)
	for i, row := range rows[1:] { // skip header
		if len(row) != len(executionHeader) {
			return nil, fmt.Errorf("row %d of %s has %d columns, want %d", i+2, filename, len(row), len(executionHeader))
		}
		rec, err := parseExecutionRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d of %s: %w", i+2, filename, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseExecutionRow(row []string) (domain.ExecutionRecord, error) {
	var rec domain.ExecutionRecord
	var err error

	rec.ID = row[0]
	rec.Side = domain.OrderSide(row[1])
	if rec.Quantity, err = strconv.ParseFloat(row[2], 64); err != nil {
		return rec, fmt.Errorf("parsing quantity %q: %w", row[2], err)
	}
	if rec.NotionalValue, err = strconv.ParseFloat(row[3], 64); err != nil {
		return rec, fmt.Errorf("parsing notional value %q: %w", row[3], err)
	}
	if rec.FeesPaid, err = strconv.ParseFloat(row[4], 64); err != nil {
		return rec, fmt.Errorf("parsing fees %q: %w", row[4], err)
	}
	if rec.Timestamp, err = time.Parse(time.RFC3339Nano, row[5]); err != nil {
		return rec, fmt.Errorf("parsing timestamp %q: %w", row[5], err)
	}
	rec.OrderType = row[6]
	if rec.ReduceOnly, err = strconv.ParseBool(row[7]); err != nil {
		return rec, fmt.Errorf("parsing reduce_only %q: %w", row[7], err)
	}
	if rec.IsBracketLeg, err = strconv.ParseBool(row[8]); err != nil {
		return rec, fmt.Errorf("parsing is_bracket_leg %q: %w", row[8], err)
	}
	if row[9] != "" {
		pnl, err := strconv.ParseFloat(row[9], 64)
		if err != nil {
			return rec, fmt.Errorf("parsing metadata_pnl %q: %w", row[9], err)
		}
		rec.MetadataPnl = &pnl
	}
	return rec, nil
}

// WriteTradesToCSV saves a finalized trade sequence as a report.
// Exit-side columns are left blank for open positions, matching how the
// reports are consumed downstream.
func WriteTradesToCSV(trades []domain.Trade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write(tradeHeader)

	for i := range trades {
		t := &trades[i]
		row := []string{
			string(t.Side),
			t.EntryOrderID,
			"", // exit_order_id
			t.EntryTime.Format(time.RFC3339Nano),
			"", // exit_time
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			"", // exit_price
			"", // cashflow
			strconv.FormatFloat(t.Fees, 'f', -1, 64),
			"", // realized_pnl
			string(t.Status),
		}
		if t.Status == domain.StatusClosed {
			row[2] = t.ExitOrderID
			row[4] = t.ExitTime.Format(time.RFC3339Nano)
			row[7] = strconv.FormatFloat(t.ExitPrice, 'f', -1, 64)
			row[8] = strconv.FormatFloat(t.Cashflow, 'f', -1, 64)
			row[10] = strconv.FormatFloat(t.RealizedPnl, 'f', -1, 64)
		}
		writer.Write(row)
	}
	return writer.Error()
}

// ReadTradesFromCSV loads a trade report previously saved with WriteTradesToCSV.
func ReadTradesFromCSV(filename string) ([]domain.Trade, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	trades := make([]domain.Trade, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(tradeHeader) {
			return nil, fmt.Errorf("row %d of %s has %d columns, want %d", i+2, filename, len(row), len(tradeHeader))
		}
		t, err := parseTradeRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d of %s: %w", i+2, filename, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func parseTradeRow(row []string) (domain.Trade, error) {
	var t domain.Trade
	var err error

	t.Side = domain.PositionSide(row[0])
	t.EntryOrderID = row[1]
	t.ExitOrderID = row[2]
	if t.EntryTime, err = time.Parse(time.RFC3339Nano, row[3]); err != nil {
		return t, fmt.Errorf("parsing entry_time %q: %w", row[3], err)
	}
	if t.Quantity, err = strconv.ParseFloat(row[5], 64); err != nil {
		return t, fmt.Errorf("parsing quantity %q: %w", row[5], err)
	}
	if t.EntryPrice, err = strconv.ParseFloat(row[6], 64); err != nil {
		return t, fmt.Errorf("parsing entry_price %q: %w", row[6], err)
	}
	if t.Fees, err = strconv.ParseFloat(row[9], 64); err != nil {
		return t, fmt.Errorf("parsing fees %q: %w", row[9], err)
	}
	t.Status = domain.TradeStatus(row[11])

	if t.Status == domain.StatusClosed {
		if t.ExitTime, err = time.Parse(time.RFC3339Nano, row[4]); err != nil {
			return t, fmt.Errorf("parsing exit_time %q: %w", row[4], err)
		}
		if t.ExitPrice, err = strconv.ParseFloat(row[7], 64); err != nil {
			return t, fmt.Errorf("parsing exit_price %q: %w", row[7], err)
		}
		if t.Cashflow, err = strconv.ParseFloat(row[8], 64); err != nil {
			return t, fmt.Errorf("parsing cashflow %q: %w", row[8], err)
		}
		if t.RealizedPnl, err = strconv.ParseFloat(row[10], 64); err != nil {
			return t, fmt.Errorf("parsing realized_pnl %q: %w", row[10], err)
		}
	}
	return t, nil
}
