// Package schedule decides when the pipeline runs: the weekday partitions
// for backfills and the daily trigger for continuous operation. The Boletín
// Oficial only publishes Monday through Friday, so weekends never produce a
// partition.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/koopa0/ragboletin/internal/log"
	"github.com/koopa0/ragboletin/internal/pipeline"
)

// Partitions lists every weekday from start through the day before now, in
// chronological order. The current day is excluded; its bulletin may not be
// fully published yet and the daily trigger picks it up instead.
func Partitions(start, now time.Time, loc *time.Location) []time.Time {
	day := midnight(start.In(loc))
	today := midnight(now.In(loc))

	var dates []time.Time
	for day.Before(today) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return dates
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Runner executes the pipeline for an ordered list of dates.
type Runner struct {
	pipe   *pipeline.Pipeline
	logger log.Logger
}

func NewRunner(pipe *pipeline.Pipeline, logger log.Logger) *Runner {
	return &Runner{pipe: pipe, logger: logger}
}

// RunAll processes the dates in order and stops at the first failure, so a
// backfill never leaves gaps in the middle of the series.
func (r *Runner) RunAll(ctx context.Context, dates []time.Time) error {
	for i, date := range dates {
		r.logger.Info("backfill partition starting",
			"date", date.Format("2006-01-02"), "position", i+1, "total", len(dates))
		if _, err := r.pipe.Run(ctx, date); err != nil {
			return fmt.Errorf("partition %s: %w", date.Format("2006-01-02"), err)
		}
	}
	return nil
}
