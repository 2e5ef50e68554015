package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides holds the deployment settings that may come from the
// environment. Unset variables leave the file values untouched.
type envOverrides struct {
	Workers      *int     `env:"VETO_WORKERS"`
	DBPath       *string  `env:"VETO_DB_PATH"`
	OutputDir    *string  `env:"VETO_OUTPUT_DIR"`
	KafkaBrokers []string `env:"VETO_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   *string  `env:"VETO_KAFKA_TOPIC"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ApplyEnv overlays VETO_* environment variables onto c and revalidates.
func (c *RunConfig) ApplyEnv() error {
	var o envOverrides
	if err := ParseEnv(&o); err != nil {
		return err
	}
	if o.Workers != nil {
		c.Workers = o.Workers
	}
	if o.DBPath != nil {
		c.DBPath = o.DBPath
	}
	if o.OutputDir != nil {
		c.OutputDir = o.OutputDir
	}
	if len(o.KafkaBrokers) > 0 {
		c.KafkaBrokers = o.KafkaBrokers
	}
	if o.KafkaTopic != nil {
		c.KafkaTopic = o.KafkaTopic
	}
	return c.Validate()
}
