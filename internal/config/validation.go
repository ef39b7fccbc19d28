package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate performs fail-fast validation of the full configuration.
// All violations use the package sentinel errors so callers can match
// with errors.Is().
func (c *Config) Validate() error {
	if u, err := url.Parse(c.InfolegBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.InfolegBaseURL)
	}

	if c.BatchWidth < 1 || c.BatchWidth > 100 {
		return fmt.Errorf("%w: %d (must be 1-100)", ErrInvalidBatchWidth, c.BatchWidth)
	}

	if c.BatchDelayMS < 0 {
		return fmt.Errorf("%w: %dms", ErrInvalidBatchDelay, c.BatchDelayMS)
	}

	if c.DailyScrapeCap < 1 || c.DailyScrapeCap > 10000 {
		return fmt.Errorf("%w: %d (must be 1-10000)", ErrInvalidDailyCap, c.DailyScrapeCap)
	}

	if _, err := time.Parse("2006-01-02", c.StartDate); err != nil {
		return fmt.Errorf("%w: %q (expected YYYY-MM-DD)", ErrInvalidStartDate, c.StartDate)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, c.Timezone)
	}

	if _, err := time.Parse("15:04", c.ScheduleAt); err != nil {
		return fmt.Errorf("%w: %q (expected HH:MM)", ErrInvalidScheduleAt, c.ScheduleAt)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.EmbedderDimension < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}

	return nil
}

// Location returns the schedule timezone. Validate must have passed.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		// Validate rejects unloadable zones, so this is unreachable in a
		// validated config.
		return time.UTC
	}
	return loc
}

// PartitionStart returns the configured start date at midnight in the
// schedule timezone. Validate must have passed.
func (c *Config) PartitionStart() time.Time {
	t, err := time.ParseInLocation("2006-01-02", c.StartDate, c.Location())
	if err != nil {
		return time.Time{}
	}
	return t
}

// BatchDelay returns the inter-batch pacing delay as a duration.
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMS) * time.Millisecond
}

// FetchTimeout returns the per-request HTTP timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}
