package scheduler

import (
	"time"

	"github.com/servifield/servifield/internal/config"
)

// Config controls scheduler cadence, per-job timeouts and the enabled set.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	BatchSize   int
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 24 * time.Hour,
		JobTimeout:  5 * time.Minute,
		BatchSize:   100,
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

// ProvideConfig maps application configuration onto the scheduler.
func ProvideConfig(appCfg config.Config) Config {
	return Config{
		RunInterval: appCfg.SchedulerRunInterval,
		BatchSize:   appCfg.SchedulerBatchSize,
		EnabledJobs: appCfg.SchedulerEnabledJobs,
	}.withDefaults()
}
