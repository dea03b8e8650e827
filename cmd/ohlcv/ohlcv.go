// Package ohlcv backfills the candle cache table used by the
// workbench's offline tooling.
package ohlcv

import (
	"context"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"

	"forwardtester/src/model"
	"forwardtester/src/repository"
)

const (
	Duration1m = "1m"
	Duration1h = "1h"
)

type Backfill struct {
	Log      *logger.Entry
	Repo     *repository.CandleRepository
	Config   *Config
	exchange goex.API
}

func (b *Backfill) Start() error {
	b.Config = GetConfig()
	b.exchange = newBinanceInstance()

	ctx := context.Background()

	if b.Config.AutoMode {
		if err := b.determineStartPoint(ctx); err != nil {
			return err
		}
	}

	return b.aggregateAndSave(ctx)
}

func newBinanceInstance() *binance.Binance {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return binance.NewWithConfig(apiConfig)
}

func (b *Backfill) pairSymbol() string {
	return b.Config.Symbol + "_" + b.Config.Quote
}

func (b *Backfill) aggregateAndSave(ctx context.Context) error {
	klines, err := b.fetchSeries()
	if err != nil {
		return err
	}

	for i := range klines {
		k := klines[i]
		candle := &model.OHLCVCandle{
			Symbol:   k.Pair.String(),
			Datetime: time.Unix(k.Timestamp, 0).UTC(),
			Open:     decimal.NewFromFloat(k.Open),
			High:     decimal.NewFromFloat(k.High),
			Low:      decimal.NewFromFloat(k.Low),
			Close:    decimal.NewFromFloat(k.Close),
			Volume:   decimal.NewFromFloat(k.Vol),
		}

		if err := b.Repo.Upsert(ctx, candle); err != nil {
			b.Log.WithError(err).Error("aggregateAndSave, Upsert")
			return err
		}
	}

	b.Log.WithFields(logger.Fields{
		"symbol":  b.pairSymbol(),
		"candles": len(klines),
	}).Info("OHLCV data inserted or updated in database")

	return nil
}

// determineStartPoint resumes from the newest stored candle, stepping
// one interval back so the possibly-partial last candle is refreshed.
func (b *Backfill) determineStartPoint(ctx context.Context) error {
	b.Config.StartDt = b.Config.StartDt.Add(-b.parseDuration())
	b.Config.EndDt = time.Now()

	latest, err := b.Repo.LatestDatetime(ctx, b.pairSymbol())
	if err != nil {
		b.Log.WithError(err).Error("Failed to query latest datetime")
		return err
	}

	if latest.IsZero() {
		b.Log.
			WithField("StartDt", b.Config.StartDt.String()).
			WithField("EndDt", b.Config.EndDt.String()).
			Warn("no existing candles, starting from the configured StartDt")
		return nil
	}

	b.Config.StartDt = latest.Add(-b.parseDuration())
	b.Log.
		WithField("StartDt", b.Config.StartDt.String()).
		WithField("EndDt", b.Config.EndDt.String()).
		Info("determineStartPoint valid date found")

	return nil
}

func (b *Backfill) fetchSeries() ([]goex.Kline, error) {
	targetSymbol := goex.NewCurrencyPair(
		goex.Currency{Symbol: b.Config.Symbol},
		goex.Currency{Symbol: b.Config.Quote},
	)

	const millis = 1000
	klines, err := b.exchange.GetKlineRecords(
		targetSymbol,
		b.parseDurationToGoex(),
		b.Config.Limit,
		goex.OptionalParameter{}.
			Optional("startTime", b.Config.StartDt.Unix()*millis).
			Optional("endTime", b.Config.EndDt.Unix()*millis),
	)
	if err != nil {
		return nil, err
	}

	return klines, nil
}

func (b *Backfill) parseDuration() time.Duration {
	switch b.Config.DurationStr {
	case Duration1m:
		return time.Minute
	case Duration1h:
		return time.Hour
	default:
		panic("invalid DURATION env var")
	}
}

func (b *Backfill) parseDurationToGoex() goex.KlinePeriod {
	switch b.Config.DurationStr {
	case Duration1m:
		return goex.KLINE_PERIOD_1MIN
	case Duration1h:
		return goex.KLINE_PERIOD_1H
	default:
		panic("invalid DURATION env var")
	}
}
