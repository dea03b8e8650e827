package model

import "time"

// Candle is a single immutable OHLCV sample.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// CandleSeries holds aligned OHLCV arrays in chronological order. Gaps
// are preserved as-is; the series is never reordered or deduplicated.
type CandleSeries struct {
	Instrument string      `json:"instrument"`
	Time       []time.Time `json:"time"`
	Open       []float64   `json:"open"`
	High       []float64   `json:"high"`
	Low        []float64   `json:"low"`
	Close      []float64   `json:"close"`
	Volume     []float64   `json:"volume"`
}

func (s *CandleSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Close)
}

// Last returns the most recent candle. Callers must check Len() > 0 first.
func (s *CandleSeries) Last() Candle {
	i := s.Len() - 1
	return Candle{
		Time:   s.Time[i],
		Open:   s.Open[i],
		High:   s.High[i],
		Low:    s.Low[i],
		Close:  s.Close[i],
		Volume: s.Volume[i],
	}
}
