package kite

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Instrument is one row of the instruments dump.
type Instrument struct {
	Token          int64
	TradingSymbol  string
	Name           string
	Exchange       string
	Segment        string
	InstrumentType string
	TickSize       float64
	LotSize        int
}

// Instruments returns the instruments of exchange keyed by trading symbol.
// The dump is downloaded once per exchange.
func (c *Client) Instruments(ctx context.Context, exchange string) (map[string]Instrument, error) {
	return c.instruments.GetOrLoad(ctx, exchange, func(ctx context.Context) (map[string]Instrument, error) {
		req := c.authorized(ctx)
		resp, err := c.rest.Do(ctx, http.MethodGet, "/instruments/"+exchange, req)
		if err != nil {
			return nil, fmt.Errorf("fetch instruments %s: %w", exchange, err)
		}
		instruments, err := ParseInstruments(bytes.NewReader(resp.Body()))
		if err != nil {
			return nil, err
		}
		c.logger.Info("Loaded instruments", zap.String("exchange", exchange), zap.Int("count", len(instruments)))
		return instruments, nil
	})
}

// Symbols returns the tradable symbols of the configured exchange.
func (c *Client) Symbols(ctx context.Context) (map[string]struct{}, error) {
	instruments, err := c.Instruments(ctx, c.exchange)
	if err != nil {
		return nil, err
	}
	symbols := make(map[string]struct{}, len(instruments))
	for sym := range instruments {
		symbols[sym] = struct{}{}
	}
	return symbols, nil
}

// Token returns the instrument token of symbol on the configured exchange.
func (c *Client) Token(ctx context.Context, symbol string) (int64, bool, error) {
	instruments, err := c.Instruments(ctx, c.exchange)
	if err != nil {
		return 0, false, err
	}
	inst, ok := instruments[symbol]
	return inst.Token, ok, nil
}

// ParseInstruments reads the CSV instruments dump. Columns are located by header name.
func ParseInstruments(r io.Reader) (map[string]Instrument, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read instruments header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"instrument_token", "tradingsymbol"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("instruments dump has no %s column", required)
		}
	}
	field := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	out := make(map[string]Instrument)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read instruments: %w", err)
		}
		token, err := strconv.ParseInt(field(row, "instrument_token"), 10, 64)
		if err != nil {
			continue
		}
		tick, _ := strconv.ParseFloat(field(row, "tick_size"), 64)
		lot, _ := strconv.Atoi(field(row, "lot_size"))
		inst := Instrument{
			Token:          token,
			TradingSymbol:  field(row, "tradingsymbol"),
			Name:           field(row, "name"),
			Exchange:       field(row, "exchange"),
			Segment:        field(row, "segment"),
			InstrumentType: field(row, "instrument_type"),
			TickSize:       tick,
			LotSize:        lot,
		}
		if inst.TradingSymbol == "" {
			continue
		}
		out[inst.TradingSymbol] = inst
	}
	return out, nil
}
