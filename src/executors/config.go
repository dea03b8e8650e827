package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Interval between ticks.
	Interval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"5m"`
	// MaxConcurrent bounds how many sessions run at once within a tick.
	MaxConcurrent int `envconfig:"SCHEDULER_MAX_CONCURRENT" default:"4"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
