package client

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	URL    string `envconfig:"RELAY_URL" default:"ws://localhost:9001/ws"`
	UserID string `envconfig:"RELAY_USER_ID"`

	// RELAY_COLOURS enables colorized output for better readability
	Colours      bool          `envconfig:"RELAY_COLOURS" default:"true"`
	MaxRetries   uint64        `envconfig:"RELAY_MAX_RETRIES" default:"5"`
	DialTimeout  time.Duration `envconfig:"RELAY_DIAL_TIMEOUT" default:"5s"`
	JournalPath  string        `envconfig:"JOURNAL_FILEPATH"`
	JournalLimit int           `envconfig:"RELAY_JOURNAL_LIMIT" default:"50"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
