// Package config loads connection parameters from the environment, with
// CLI flags (wired in cmd/rdt) taking precedence over whatever env vars
// supply.
package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// Config holds everything needed to stand up one side of a connection.
type Config struct {
	ListenAddr  string `env:"RDT_LISTEN,default=0.0.0.0:9000"`
	PeerAddr    string `env:"RDT_PEER,default=127.0.0.1:9000"`
	MetricsAddr string `env:"RDT_METRICS_ADDR,default="`
	LogLevel    string `env:"RDT_LOG_LEVEL,default=info"`
}

// Load reads Config from the process environment, applying the defaults
// above wherever a variable is unset.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
