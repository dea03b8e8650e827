package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	PracticeBaseURL string        `envconfig:"OANDA_PRACTICE_BASE_URL" default:"https://api-fxpractice.oanda.com"`
	LiveBaseURL     string        `envconfig:"OANDA_LIVE_BASE_URL" default:"https://api-fxtrade.oanda.com"`
	RequestTimeout  time.Duration `envconfig:"OANDA_REQUEST_TIMEOUT" default:"15s"`
	RetryCount      int           `envconfig:"OANDA_RETRY_COUNT" default:"3"`
	RetryBaseDelay  time.Duration `envconfig:"OANDA_RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay   time.Duration `envconfig:"OANDA_RETRY_MAX_DELAY" default:"8s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
