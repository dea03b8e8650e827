package sizing

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Notional the risk percentage is applied against, in quote
	// currency units.
	Notional float64 `envconfig:"SIZING_NOTIONAL" default:"100000"`
	// DefaultUnits is the fallback magnitude when risk-derived sizing
	// is zero or invalid.
	DefaultUnits int `envconfig:"SIZING_DEFAULT_UNITS" default:"1000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
