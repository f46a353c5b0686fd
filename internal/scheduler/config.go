package scheduler

import "time"

// Config controls the overdue sweep loop.
type Config struct {
	Enabled      bool
	BatchSize    int
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		BatchSize:    100,
		PollInterval: time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	return c
}
