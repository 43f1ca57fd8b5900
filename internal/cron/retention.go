package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// Day is the unit retention settings are configured in.
const Day = 24 * time.Hour

// Purger deletes rows that fell out of retention before cutoff.
type Purger func(ctx context.Context, cutoff time.Time) (int64, error)

type RetentionJobParams struct {
	Name   string
	Logger *logger.Logger
	Keep   time.Duration
	Purge  Purger
	Clock  func() time.Time
}

// NewRetentionJob prunes a table on every cycle. Outbox rows and read
// notifications both go through it with their own windows.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	switch {
	case params.Name == "":
		return nil, errors.New("retention job name required")
	case params.Purge == nil:
		return nil, fmt.Errorf("%s: purge func required", params.Name)
	case params.Keep <= 0:
		return nil, fmt.Errorf("%s: retention window must be positive", params.Name)
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &retentionJob{
		name:  params.Name,
		logg:  params.Logger,
		keep:  params.Keep,
		purge: params.Purge,
		clock: clock,
	}, nil
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	keep      time.Duration
	purge     Purger
	clock     func() time.Time
	processed int
}

func (j *retentionJob) Name() string   { return j.name }
func (j *retentionJob) Processed() int { return j.processed }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.clock().UTC().Add(-j.keep)
	deleted, err := j.purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.processed = int(deleted)
	if deleted > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"job":     j.name,
			"cutoff":  cutoff,
			"deleted": deleted,
		}), "retention purge")
	}
	return nil
}
