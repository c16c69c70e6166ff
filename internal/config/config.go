// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
)

// Config aggregates every tunable of the service. All knobs default to values
// that work for local development.
type Config struct {
	Port int `env:"PORT,default=8080"`

	// SendQueueSize bounds each connection's outbound queue. A peer whose
	// queue overflows is disconnected.
	SendQueueSize  int           `env:"SEND_QUEUE_SIZE,default=64"`
	ReadLimitBytes int64         `env:"WS_READ_LIMIT_BYTES,default=65536"`
	PingInterval   time.Duration `env:"PING_INTERVAL,default=30s"`
	PongTimeout    time.Duration `env:"PONG_TIMEOUT,default=60s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT,default=10s"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.SendQueueSize < 1 {
		return Config{}, fmt.Errorf("SEND_QUEUE_SIZE must be positive, got %d", cfg.SendQueueSize)
	}
	if cfg.PingInterval >= cfg.PongTimeout {
		return Config{}, fmt.Errorf("PING_INTERVAL (%s) must be shorter than PONG_TIMEOUT (%s)", cfg.PingInterval, cfg.PongTimeout)
	}
	return cfg, nil
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
