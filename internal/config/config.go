package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          int    `envconfig:"TRUSTHUB_PORT" default:"8760"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	NatsURL       string `envconfig:"NATS_URL" default:"nats://nats:4222"`
	NatsToken     string `envconfig:"NATS_TOKEN"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	APIToken      string `envconfig:"TRUSTHUB_API_TOKEN"`
	DecaySchedule string `envconfig:"TRUSTHUB_DECAY_CRON" default:"0 4 * * 1"`
	SweepSchedule string `envconfig:"TRUSTHUB_SWEEP_CRON" default:"*/15 * * * *"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
