// Package sizing converts an actionable signal plus session risk
// parameters into a broker-ready market order. All pip/price conversion
// lives here; nothing else in the engine may do pip arithmetic.
package sizing

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"forwardtester/src/model"
)

const timeInForceFOK = "FOK"

var (
	pipSizeDefault = decimal.NewFromFloat(0.0001)
	pipSizeJPY     = decimal.NewFromFloat(0.01)
	hundred        = decimal.NewFromInt(100)
)

// pipSize returns the price value of one pip. Five-decimal quoted pairs
// use 0.0001; three-decimal JPY quotes use 0.01.
func pipSize(instrument string) decimal.Decimal {
	if strings.HasSuffix(instrument, "_JPY") || strings.HasSuffix(instrument, "JPY") {
		return pipSizeJPY
	}
	return pipSizeDefault
}

// PipsToPrice converts a pip count to a price distance for the
// instrument's quoting convention.
func PipsToPrice(instrument string, pips float64) float64 {
	price, _ := decimal.NewFromFloat(pips).Mul(pipSize(instrument)).Float64()
	return price
}

// PriceToPips is the inverse of PipsToPrice.
func PriceToPips(instrument string, price float64) float64 {
	pips, _ := decimal.NewFromFloat(price).Div(pipSize(instrument)).Float64()
	return pips
}

// Sizer builds orders from signals.
type Sizer struct {
	notional     decimal.Decimal
	defaultUnits int
}

func NewSizer() *Sizer {
	config := GetConfig()
	return &Sizer{
		notional:     decimal.NewFromFloat(config.Notional),
		defaultUnits: config.DefaultUnits,
	}
}

func NewSizerWith(notional float64, defaultUnits int) *Sizer {
	return &Sizer{
		notional:     decimal.NewFromFloat(notional),
		defaultUnits: defaultUnits,
	}
}

// Size computes signed units from the session's risk percentage of the
// configured notional divided by the stop distance, capped by the
// session's maximum position size. SELL is encoded as negative units.
func (s *Sizer) Size(signal *model.ActionableSignal, session *model.TradingSession) model.Order {
	stopDistance := decimal.NewFromFloat(session.StopLossPips).Mul(pipSize(session.Symbol))

	units := s.defaultUnits
	if stopDistance.IsPositive() && session.RiskPercent > 0 {
		riskAmount := s.notional.
			Mul(decimal.NewFromFloat(session.RiskPercent)).
			Div(hundred)
		computed := int(riskAmount.Div(stopDistance).IntPart())
		if computed > 0 {
			units = computed
		} else {
			logger.WithFields(map[string]interface{}{
				"session_id": session.ID,
				"symbol":     session.Symbol,
			}).Warn("Risk-derived size is zero, falling back to default units")
		}
	}

	if session.MaxPositionSize > 0 && units > session.MaxPositionSize {
		units = session.MaxPositionSize
	}
	if signal.Direction == model.DirectionSell {
		units = -units
	}

	stopPrice, _ := stopDistance.Float64()

	return model.Order{
		Instrument:         session.Symbol,
		Units:              units,
		StopLossDistance:   stopPrice,
		TakeProfitDistance: PipsToPrice(session.Symbol, session.TakeProfitPips),
		TimeInForce:        timeInForceFOK,
		ClientID:           "ft-" + uuid.NewString(),
	}
}
