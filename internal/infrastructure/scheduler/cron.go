package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"NewsHarvester/internal/domain"
	"NewsHarvester/internal/ports"
)

// CronScheduler drives pipeline runs on per-frequency cron expressions.
type CronScheduler struct {
	schedules map[domain.Frequency]string
	location  *time.Location
	cron      *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler from frequency→expression mappings.
func NewCronScheduler(schedules map[domain.Frequency]string, location *time.Location) *CronScheduler {
	if location == nil {
		location = time.UTC
	}
	return &CronScheduler{schedules: schedules, location: location}
}

// Start registers one cron entry per frequency and begins ticking.
func (c *CronScheduler) Start(ctx context.Context, job func(domain.Frequency)) error {
	if job == nil || c.cron != nil {
		return nil
	}

	runner := cron.New(cron.WithLocation(c.location))
	for frequency, expr := range c.schedules {
		frequency := frequency
		if _, err := runner.AddFunc(expr, func() {
			if ctx.Err() != nil {
				return
			}
			job(frequency)
		}); err != nil {
			return fmt.Errorf("register %s schedule %q: %w", frequency, expr, err)
		}
	}

	c.cron = runner
	c.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running job, bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	if c.cron == nil {
		return nil
	}

	done := c.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	c.cron = nil
	return nil
}
