package model

import "time"

// VolumeRegime labels the expected liquidity of the current UTC hour.
type VolumeRegime string

const (
	VolumeLow    VolumeRegime = "low"
	VolumeMedium VolumeRegime = "medium"
	VolumeHigh   VolumeRegime = "high"
)

// MarketStatus is the venue state computed once per tick and shared by
// every session in that tick.
type MarketStatus struct {
	IsOpen         bool         `json:"is_open"`
	VolumeRegime   VolumeRegime `json:"volume_regime"`
	NextTransition time.Time    `json:"next_transition"`
}
