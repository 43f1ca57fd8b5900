package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const preferenceExpiryBatch = 200

// PreferenceExpiryJobParams configure the unpaid checkout sweeper. Checkout
// deactivates the processor link before cancelling the order.
type PreferenceExpiryJobParams struct {
	Logger    *logger.Logger
	Checkout  preferenceExpirer
	BatchSize int
}

// NewPreferenceExpiryJob cancels pending orders whose checkout preference
// lapsed before any payment started. A link that cannot be deactivated fails
// the run and is retried on the next tick.
func NewPreferenceExpiryJob(params PreferenceExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Checkout == nil {
		return nil, fmt.Errorf("checkout service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = preferenceExpiryBatch
	}
	return &preferenceExpiryJob{logg: params.Logger, checkout: params.Checkout, batch: batch}, nil
}

type preferenceExpiryJob struct {
	logg      *logger.Logger
	checkout  preferenceExpirer
	batch     int
	processed int
}

func (j *preferenceExpiryJob) Name() string   { return "preference-expiry" }
func (j *preferenceExpiryJob) Processed() int { return j.processed }

func (j *preferenceExpiryJob) Run(ctx context.Context) error {
	j.processed = 0
	ids, err := j.checkout.ListExpiredPreferences(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list expired preferences: %w", err)
	}

	var errs error
	skipped := 0
	for _, id := range ids {
		_, err := j.checkout.ExpirePreference(ctx, id)
		switch {
		case err == nil:
			j.processed++
		case pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			// a payment started between the query and the update
			skipped++
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", id, err))
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(ids),
		"expired":    j.processed,
		"skipped":    skipped,
	}), "preference expiry sweep complete")
	return errs
}
