// Package interpreter turns a per-bar signal series into at most one
// actionable signal for the current tick.
package interpreter

import (
	logger "github.com/sirupsen/logrus"

	"forwardtester/src/model"
)

// Interpret inspects only the final bar of the series. Historical bars
// exist for the strategy's own lookback; acting on them would replay
// old trades. Returns nil when there is nothing to do.
//
// The low-volume gate runs before signal extraction: when the session
// avoids low volume and the regime is low, the outcome is no-action no
// matter what the strategy produced.
func Interpret(series *model.SignalSeries, session *model.TradingSession, regime model.VolumeRegime) *model.ActionableSignal {
	if session.AvoidLowVolume && regime == model.VolumeLow {
		logger.WithFields(map[string]interface{}{
			"session_id": session.ID,
			"symbol":     session.Symbol,
		}).Debug("Low-volume regime, signal suppressed")
		return nil
	}

	last := series.Len() - 1
	if last < 0 {
		return nil
	}
	if !series.Entry[last] {
		return nil
	}

	direction := series.Direction[last]
	if direction != model.DirectionBuy && direction != model.DirectionSell {
		return nil
	}

	if session.ReverseSignals {
		direction = direction.Reverse()
	}

	return &model.ActionableSignal{
		SessionID: session.ID,
		Symbol:    session.Symbol,
		Direction: direction,
	}
}
