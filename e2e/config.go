package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_RELAY_URL is the websocket endpoint of a running relay; suites skip when empty
	RelayURL string `envconfig:"E2E_RELAY_URL"`
	// E2E_HEALTH_ADDR is the gRPC health endpoint of the same relay
	HealthAddr string `envconfig:"E2E_HEALTH_ADDR" default:"localhost:9002"`
	// E2E_DEBUG_JSON allows dumping every raw frame received
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
