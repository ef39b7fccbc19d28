package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/koopa0/ragboletin/internal/log"
	"github.com/koopa0/ragboletin/internal/pipeline"
)

// Scheduler triggers the pipeline every weekday at a fixed local time,
// shortly after the day's bulletin is published.
type Scheduler struct {
	pipe   *pipeline.Pipeline
	at     string // "15:04" local time of day
	loc    *time.Location
	logger log.Logger

	// now is swappable in tests.
	now func() time.Time
}

func NewScheduler(pipe *pipeline.Pipeline, at string, loc *time.Location, logger log.Logger) (*Scheduler, error) {
	if _, err := time.Parse("15:04", at); err != nil {
		return nil, fmt.Errorf("invalid schedule time %q: %w", at, err)
	}
	return &Scheduler{
		pipe:   pipe,
		at:     at,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Start blocks, running the pipeline for each weekday's date at the
// configured time until ctx is canceled. A failed run is logged and the
// scheduler moves on to the next day; missed dates are recovered with a
// backfill.
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		next := s.Next(s.now())
		s.logger.Info("next scheduled run", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		if report, err := s.pipe.Run(ctx, midnight(next)); err != nil {
			s.logger.Error("scheduled run failed",
				"date", next.Format("2006-01-02"), "error", err)
		} else {
			s.logger.Info("scheduled run completed",
				"date", next.Format("2006-01-02"), "scraped", report.Scraped)
		}
	}
}

// Next returns the first weekday instant at the configured local time
// strictly after from.
func (s *Scheduler) Next(from time.Time) time.Time {
	at, _ := time.Parse("15:04", s.at)
	local := from.In(s.loc)

	candidate := time.Date(local.Year(), local.Month(), local.Day(),
		at.Hour(), at.Minute(), 0, 0, s.loc)
	for !candidate.After(local) || candidate.Weekday() == time.Saturday || candidate.Weekday() == time.Sunday {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
