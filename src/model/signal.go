package model

// Direction of a trade signal. Empty string means no direction.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Reverse swaps BUY and SELL; other values pass through unchanged.
func (d Direction) Reverse() Direction {
	switch d {
	case DirectionBuy:
		return DirectionSell
	case DirectionSell:
		return DirectionBuy
	default:
		return d
	}
}

// SignalSeries is the per-bar output of a strategy evaluation. All three
// arrays have the same length as the candle series that produced them.
// Err is set when the sandbox had to substitute a safe all-false series.
type SignalSeries struct {
	Entry     []bool      `json:"entry"`
	Exit      []bool      `json:"exit"`
	Direction []Direction `json:"direction"`
	Err       string      `json:"error,omitempty"`
}

func (s *SignalSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entry)
}

// EmptySignalSeries returns an all-false, no-direction series of length n
// with the given error marker.
func EmptySignalSeries(n int, errMsg string) *SignalSeries {
	return &SignalSeries{
		Entry:     make([]bool, n),
		Exit:      make([]bool, n),
		Direction: make([]Direction, n),
		Err:       errMsg,
	}
}

// ActionableSignal is the final-bar signal that survived interpretation
// and gating. Only one (or none) is produced per session per tick.
type ActionableSignal struct {
	SessionID uint
	Symbol    string
	Direction Direction
}
