package scheduler

import (
	"time"
)

// Config controls the run loop cadence and per-job limits. Each job
// carries its own interval; RunInterval only sets how often the loop
// checks which jobs are due.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	BatchSize   int

	// EnabledJobs restricts which jobs run. Empty means all jobs.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		JobTimeout:  30 * time.Second,
		BatchSize:   50,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}
