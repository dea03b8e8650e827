package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forwardtester/src/indicators"
	"forwardtester/src/model"
)

const crossoverStrategy = `
function strategyLogic(data) {
	var fast = ta.ema(data.close, 3);
	var slow = ta.ema(data.close, 10);
	var n = data.close.length;

	var entry = [], exit = [], direction = [];
	for (var i = 0; i < n; i++) {
		var crossUp = i > 0 && fast[i] > slow[i] && fast[i-1] <= slow[i-1];
		var crossDown = i > 0 && fast[i] < slow[i] && fast[i-1] >= slow[i-1];
		entry.push(crossUp || crossDown);
		exit.push(false);
		direction.push(crossUp ? "BUY" : (crossDown ? "SELL" : null));
	}
	return { entry: entry, exit: exit, direction: direction };
}
`

// fractalScalperStrategy mirrors the flagship product strategy: trade
// fractal breaks in the direction of a stacked triple EMA.
const fractalScalperStrategy = `
function strategyLogic(data) {
	var emaFast = ta.ema(data.close, 21);
	var emaMid = ta.ema(data.close, 50);
	var emaSlow = ta.ema(data.close, 100);
	var fr = ta.fractals(data.high, data.low, 2);
	var n = data.close.length;

	var entry = [], exit = [], direction = [];
	for (var i = 0; i < n; i++) {
		var bullish = emaFast[i] > emaMid[i] && emaMid[i] > emaSlow[i];
		var bearish = emaFast[i] < emaMid[i] && emaMid[i] < emaSlow[i];
		var longEntry = bullish && fr.down[i];
		var shortEntry = bearish && fr.up[i];
		entry.push(longEntry || shortEntry);
		exit.push(false);
		direction.push(longEntry ? "BUY" : (shortEntry ? "SELL" : null));
	}
	return { entry: entry, exit: exit, direction: direction };
}
`

func testCandles(closes []float64) *model.CandleSeries {
	series := &model.CandleSeries{Instrument: "EUR_USD"}
	base := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	for i, c := range closes {
		series.Time = append(series.Time, base.Add(time.Duration(i)*5*time.Minute))
		series.Open = append(series.Open, c)
		series.High = append(series.High, c+0.0005)
		series.Low = append(series.Low, c-0.0005)
		series.Close = append(series.Close, c)
		series.Volume = append(series.Volume, 100)
	}
	return series
}

func trendingCloses(n int) []float64 {
	closes := make([]float64, n)
	price := 1.1000
	for i := range closes {
		if i < n/2 {
			price -= 0.0004
		} else {
			price += 0.0008
		}
		closes[i] = price
	}
	return closes
}

func TestEvaluateCrossoverStrategy(t *testing.T) {
	candles := testCandles(trendingCloses(40))
	sb := NewSandboxWithTimeout(2 * time.Second)

	series, err := sb.Evaluate(context.Background(), crossoverStrategy, candles)
	require.NoError(t, err)
	require.Equal(t, candles.Len(), series.Len())
	require.Empty(t, series.Err)

	// The script must agree with the native indicator library bar for bar.
	fast := indicators.EMA(candles.Close, 3)
	slow := indicators.EMA(candles.Close, 10)
	sawEntry := false
	for i := 1; i < candles.Len(); i++ {
		crossUp := fast[i] > slow[i] && fast[i-1] <= slow[i-1]
		crossDown := fast[i] < slow[i] && fast[i-1] >= slow[i-1]
		assert.Equal(t, crossUp || crossDown, series.Entry[i], "entry mismatch at bar %d", i)
		if crossUp {
			assert.Equal(t, model.DirectionBuy, series.Direction[i], "direction mismatch at bar %d", i)
		}
		sawEntry = sawEntry || series.Entry[i]
	}
	assert.True(t, sawEntry, "trending series should produce at least one crossover")
}

func TestEvaluateFractalScalperStrategy(t *testing.T) {
	candles := testCandles(trendingCloses(160))
	sb := NewSandboxWithTimeout(2 * time.Second)

	series, err := sb.Evaluate(context.Background(), fractalScalperStrategy, candles)
	require.NoError(t, err)

	assert.Equal(t, candles.Len(), series.Len())
	assert.Empty(t, series.Err)
	for i := range series.Entry {
		if series.Entry[i] {
			assert.NotEqual(t, model.Direction(""), series.Direction[i], "entry at bar %d has no direction", i)
		}
	}
}

func TestEvaluateMissingEntrypoint(t *testing.T) {
	candles := testCandles(trendingCloses(10))
	sb := NewSandboxWithTimeout(time.Second)

	series, err := sb.Evaluate(context.Background(), `var x = 1;`, candles)
	require.Error(t, err)

	var runtimeErr *RuntimeError
	require.True(t, errors.As(err, &runtimeErr))

	require.Equal(t, candles.Len(), series.Len())
	assert.NotEmpty(t, series.Err)
	for i := range series.Entry {
		assert.False(t, series.Entry[i])
		assert.Equal(t, model.Direction(""), series.Direction[i])
	}
}

func TestEvaluateWrongShape(t *testing.T) {
	candles := testCandles(trendingCloses(10))
	sb := NewSandboxWithTimeout(time.Second)

	source := `
function strategyLogic(data) {
	return { entry: [true], exit: [false], direction: ["BUY"] };
}
`
	series, err := sb.Evaluate(context.Background(), source, candles)
	require.Error(t, err)

	var runtimeErr *RuntimeError
	require.True(t, errors.As(err, &runtimeErr))
	assert.Contains(t, runtimeErr.Message, "entry")
	assert.Equal(t, candles.Len(), series.Len())
}

func TestEvaluateThrownException(t *testing.T) {
	candles := testCandles(trendingCloses(10))
	sb := NewSandboxWithTimeout(time.Second)

	series, err := sb.Evaluate(context.Background(), `
function strategyLogic(data) {
	throw new Error("bad math");
}
`, candles)
	require.Error(t, err)

	var runtimeErr *RuntimeError
	require.True(t, errors.As(err, &runtimeErr))
	assert.Contains(t, runtimeErr.Message, "bad math")
	assert.Equal(t, candles.Len(), series.Len())
}

func TestEvaluateInvalidDirectionValue(t *testing.T) {
	candles := testCandles(trendingCloses(2))
	sb := NewSandboxWithTimeout(time.Second)

	source := `
function strategyLogic(data) {
	return { entry: [false, true], exit: [false, false], direction: [null, "HOLD"] };
}
`
	_, err := sb.Evaluate(context.Background(), source, candles)
	require.Error(t, err)

	var runtimeErr *RuntimeError
	require.True(t, errors.As(err, &runtimeErr))
	assert.Contains(t, runtimeErr.Message, "direction")
}

func TestEvaluateTimeout(t *testing.T) {
	candles := testCandles(trendingCloses(10))
	sb := NewSandboxWithTimeout(50 * time.Millisecond)

	start := time.Now()
	series, err := sb.Evaluate(context.Background(), `
function strategyLogic(data) {
	while (true) {}
}
`, candles)
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, candles.Len(), series.Len())
	assert.NotEmpty(t, series.Err)
}

func TestEvaluateContextCancellation(t *testing.T) {
	candles := testCandles(trendingCloses(10))
	sb := NewSandboxWithTimeout(10 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	series, err := sb.Evaluate(ctx, `
function strategyLogic(data) {
	while (true) {}
}
`, candles)
	require.Error(t, err)

	// The sandbox deadline never fired here, so the error must not be
	// pinned on the strategy.
	var timeoutErr *TimeoutError
	assert.False(t, errors.As(err, &timeoutErr), "caller cancellation misreported as a strategy timeout")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "cancelled")
	assert.Equal(t, candles.Len(), series.Len())
	assert.NotEmpty(t, series.Err)
}

func TestEvaluateScriptCannotMutateHostCandles(t *testing.T) {
	candles := testCandles(trendingCloses(5))
	wantClose := append([]float64(nil), candles.Close...)
	wantHigh := append([]float64(nil), candles.High...)
	sb := NewSandboxWithTimeout(time.Second)

	source := `
function strategyLogic(data) {
	data.close[0] = 42.0;
	data.high[1] = 99.0;
	var n = data.close.length;
	var entry = [], exit = [], direction = [];
	for (var i = 0; i < n; i++) {
		entry.push(false);
		exit.push(false);
		direction.push(null);
	}
	return { entry: entry, exit: exit, direction: direction };
}
`
	_, err := sb.Evaluate(context.Background(), source, candles)
	require.NoError(t, err)

	assert.Equal(t, wantClose, candles.Close, "script writes must not reach the host close series")
	assert.Equal(t, wantHigh, candles.High, "script writes must not reach the host high series")
}

func TestNoHostCapabilitiesExposed(t *testing.T) {
	candles := testCandles(trendingCloses(3))
	sb := NewSandboxWithTimeout(time.Second)

	source := `
function strategyLogic(data) {
	var leaked = (typeof require !== "undefined") ||
		(typeof process !== "undefined") ||
		(typeof fetch !== "undefined");
	var n = data.close.length;
	var entry = [], exit = [], direction = [];
	for (var i = 0; i < n; i++) {
		entry.push(leaked);
		exit.push(false);
		direction.push(null);
	}
	return { entry: entry, exit: exit, direction: direction };
}
`
	series, err := sb.Evaluate(context.Background(), source, candles)
	require.NoError(t, err)
	for i := range series.Entry {
		assert.False(t, series.Entry[i], "host capability visible to script")
	}
}
