// Package marketclock computes venue open/closed state and the current
// liquidity regime from calendar rules alone. No network I/O; Status is
// a pure function of the supplied time.
package marketclock

import (
	"time"

	"forwardtester/src/model"
)

// FX venue hours: closed from Friday 22:00 UTC until Sunday 22:00 UTC.
const closeHourUTC = 22

// Status reports whether the venue is open at now, the volume regime of
// the current UTC hour and the next open/close transition.
func Status(now time.Time) model.MarketStatus {
	utc := now.UTC()
	open := isOpen(utc)

	return model.MarketStatus{
		IsOpen:         open,
		VolumeRegime:   regimeForHour(utc.Hour()),
		NextTransition: nextTransition(utc, open),
	}
}

func isOpen(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday:
		return false
	case time.Friday:
		return t.Hour() < closeHourUTC
	case time.Sunday:
		return t.Hour() >= closeHourUTC
	default:
		return true
	}
}

// regimeForHour maps UTC hour bands to liquidity. Session overlaps are
// high, major single sessions medium, everything else low.
func regimeForHour(hour int) model.VolumeRegime {
	switch {
	case hour >= 12 && hour < 16:
		// London/New York overlap.
		return model.VolumeHigh
	case hour >= 7 && hour < 9:
		// Tokyo/London overlap.
		return model.VolumeHigh
	case hour < 7:
		// Tokyo.
		return model.VolumeMedium
	case hour >= 9 && hour < 12:
		// London only.
		return model.VolumeMedium
	case hour >= 16 && hour < 21:
		// New York only.
		return model.VolumeMedium
	default:
		return model.VolumeLow
	}
}

func nextTransition(t time.Time, open bool) time.Time {
	if open {
		// Next close: upcoming Friday 22:00 UTC.
		next := time.Date(t.Year(), t.Month(), t.Day(), closeHourUTC, 0, 0, 0, time.UTC)
		for next.Weekday() != time.Friday || !next.After(t) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}

	// Next open: upcoming Sunday 22:00 UTC.
	next := time.Date(t.Year(), t.Month(), t.Day(), closeHourUTC, 0, 0, 0, time.UTC)
	for next.Weekday() != time.Sunday || !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
