package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0" validate:"required"`
	Port                 int           `env:"PORT,default=9001" validate:"min=1,max=65535"`
	HealthPort           int           `env:"HEALTH_PORT,default=9002" validate:"min=1,max=65535,nefield=Port"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081" validate:"min=1,max=65535"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	MaxContentBytes      int           `env:"MAX_CONTENT_BYTES,default=4096" validate:"min=1"`
	MaxSessions          int           `env:"MAX_SESSIONS,default=10000" validate:"min=0"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=5s" validate:"gt=0"`
	HandshakeTimeout     time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s" validate:"gt=0"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=25s" validate:"gt=0,ltfield=PongTimeout"`
	PongTimeout          time.Duration `env:"PONG_TIMEOUT,default=60s" validate:"gt=0"`
	SubscriberBufferSize int           `env:"SUBSCRIBER_BUFFER_SIZE,default=256" validate:"min=1"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	MonitorInterval      time.Duration `env:"MONITOR_INTERVAL,default=15s" validate:"gt=0"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	JournalFilepath      string        `env:"JOURNAL_FILEPATH"`
	CensoredWords        string        `env:"CENSORED_WORDS"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

// Validate checks cross-field constraints once the environment is loaded.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

// ReadLimit is the largest websocket frame accepted before the connection is dropped.
// It leaves room for the JSON envelope so oversized content is rejected by validation.
func (c Config) ReadLimit() int64 {
	return int64(max(4*c.MaxContentBytes, 64*1024))
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
