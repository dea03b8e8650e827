package marketdata

import (
	"context"
	"fmt"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"forwardtester/src/connectors"
	"forwardtester/src/model"
)

// CandleCount is how much history every strategy evaluation receives.
const CandleCount = 500

// CandleSource is the slice of the broker client the gateway consumes.
type CandleSource interface {
	GetCandles(ctx context.Context, instrument, granularity string, count int) (*connectors.CandlesResponse, error)
}

// DataFetchError marks a tick's market data as unusable. The scheduler
// records it and skips the session for this tick; it never aborts the
// whole tick.
type DataFetchError struct {
	Instrument string
	Reason     string
	Err        error
}

func (e *DataFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("market data fetch failed for %s: %s: %v", e.Instrument, e.Reason, e.Err)
	}
	return fmt.Sprintf("market data fetch failed for %s: %s", e.Instrument, e.Reason)
}

func (e *DataFetchError) Unwrap() error {
	return e.Err
}

// Gateway fetches candle history and normalizes the venue's
// string-encoded prices into numeric series.
type Gateway struct {
	count int
}

func NewGateway() *Gateway {
	return &Gateway{count: CandleCount}
}

// Fetch returns a numeric candle series for the session's symbol and
// timeframe. Incomplete candles are dropped so strategies only ever see
// closed bars.
func (g *Gateway) Fetch(ctx context.Context, source CandleSource, session *model.TradingSession) (*model.CandleSeries, error) {
	resp, err := source.GetCandles(ctx, session.Symbol, session.Timeframe, g.count)
	if err != nil {
		return nil, &DataFetchError{Instrument: session.Symbol, Reason: "broker request failed", Err: err}
	}
	if resp == nil || len(resp.Candles) == 0 {
		return nil, &DataFetchError{Instrument: session.Symbol, Reason: "empty candle response"}
	}

	series := &model.CandleSeries{Instrument: session.Symbol}

	for i, candle := range resp.Candles {
		if !candle.Complete {
			continue
		}

		open, err := parsePrice(candle.Mid.O)
		if err != nil {
			return nil, malformed(session.Symbol, "open", i, err)
		}
		high, err := parsePrice(candle.Mid.H)
		if err != nil {
			return nil, malformed(session.Symbol, "high", i, err)
		}
		low, err := parsePrice(candle.Mid.L)
		if err != nil {
			return nil, malformed(session.Symbol, "low", i, err)
		}
		closePrice, err := parsePrice(candle.Mid.C)
		if err != nil {
			return nil, malformed(session.Symbol, "close", i, err)
		}

		series.Time = append(series.Time, candle.Time)
		series.Open = append(series.Open, open)
		series.High = append(series.High, high)
		series.Low = append(series.Low, low)
		series.Close = append(series.Close, closePrice)
		series.Volume = append(series.Volume, float64(candle.Volume))
	}

	if series.Len() == 0 {
		return nil, &DataFetchError{Instrument: session.Symbol, Reason: "no complete candles in response"}
	}

	logger.WithFields(map[string]interface{}{
		"instrument":  session.Symbol,
		"granularity": session.Timeframe,
		"candles":     series.Len(),
	}).Debug("Candle history normalized")

	return series, nil
}

func parsePrice(raw string) (float64, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("non-positive price %q", raw)
	}
	return value, nil
}

func malformed(instrument, field string, index int, err error) *DataFetchError {
	return &DataFetchError{
		Instrument: instrument,
		Reason:     fmt.Sprintf("malformed %s price at candle %d", field, index),
		Err:        err,
	}
}
