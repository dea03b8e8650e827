// Package indicators holds the fixed technical-analysis helper library
// exposed to sandboxed strategies. Everything here operates on raw
// float64 slices; warmup positions are NaN, never zero.
package indicators

import "math"

// EMA computes an exponential moving average with multiplier 2/(period+1),
// seeded at the first sample. The output has the same length as values.
func EMA(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	if len(values) == 0 || period <= 0 {
		for i := range result {
			result[i] = math.NaN()
		}
		return result
	}

	multiplier := 2.0 / float64(period+1)
	result[0] = values[0]
	for i := 1; i < len(values); i++ {
		result[i] = (values[i]-result[i-1])*multiplier + result[i-1]
	}
	return result
}

// SMA computes a simple moving average. Positions before the first full
// window are NaN.
func SMA(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	for i := range result {
		result[i] = math.NaN()
	}
	if period <= 0 || len(values) < period {
		return result
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			result[i] = sum / float64(period)
		}
	}
	return result
}

// RSI computes the relative strength index using Wilder's smoothing.
// The first period positions are NaN.
func RSI(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	for i := range result {
		result[i] = math.NaN()
	}
	if period <= 0 || len(values) <= period {
		return result
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	result[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		result[i] = rsiValue(avgGain, avgLoss)
	}
	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR computes the average true range using Wilder's smoothing, seeded
// with the SMA of the first period true ranges. Warmup positions are NaN.
func ATR(high, low, closes []float64, period int) []float64 {
	n := len(closes)
	result := make([]float64, n)
	for i := range result {
		result[i] = math.NaN()
	}
	if period <= 0 || n <= period || len(high) != n || len(low) != n {
		return result
	}

	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - closes[i-1])
		lc := math.Abs(low[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	atr := 0.0
	for i := 1; i <= period; i++ {
		atr += tr[i]
	}
	atr /= float64(period)
	result[period] = atr

	for i := period + 1; i < n; i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		result[i] = atr
	}
	return result
}

// Fractals detects Williams fractal highs and lows: a bar whose high
// (low) is strictly the most extreme within period bars on both sides.
// Edge bars without a full window on both sides are always false.
func Fractals(high, low []float64, period int) (fractalHigh, fractalLow []bool) {
	n := len(high)
	fractalHigh = make([]bool, n)
	fractalLow = make([]bool, n)
	if period <= 0 || len(low) != n {
		return fractalHigh, fractalLow
	}

	for i := period; i < n-period; i++ {
		isHigh, isLow := true, true
		for j := i - period; j <= i+period; j++ {
			if j == i {
				continue
			}
			if high[j] >= high[i] {
				isHigh = false
			}
			if low[j] <= low[i] {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		fractalHigh[i] = isHigh
		fractalLow[i] = isLow
	}
	return fractalHigh, fractalLow
}
