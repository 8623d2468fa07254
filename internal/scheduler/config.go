package scheduler

import "time"

// Config controls the expired-bill sweep interval and batch size.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	ExpiryDays  int
	JobTimeout  time.Duration
	LockTTL     time.Duration
	DryRun      bool
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		BatchSize:   100,
		ExpiryDays:  7,
		JobTimeout:  30 * time.Second,
		LockTTL:     5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.ExpiryDays <= 0 {
		c.ExpiryDays = defaults.ExpiryDays
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
