package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const payoutBatch = 100

type PayoutJobParams struct {
	Logger    *logger.Logger
	Payouts   payoutSweeper
	BatchSize int
}

func (p PayoutJobParams) validate() (int, error) {
	if p.Logger == nil {
		return 0, fmt.Errorf("logger required")
	}
	if p.Payouts == nil {
		return 0, fmt.Errorf("payouts service required")
	}
	if p.BatchSize <= 0 {
		return payoutBatch, nil
	}
	return p.BatchSize, nil
}

// NewPayoutRetryJob retries failed payouts whose backoff elapsed.
func NewPayoutRetryJob(params PayoutJobParams) (Job, error) {
	batch, err := params.validate()
	if err != nil {
		return nil, err
	}
	return &payoutRetryJob{logg: params.Logger, payouts: params.Payouts, batch: batch}, nil
}

type payoutRetryJob struct {
	logg      *logger.Logger
	payouts   payoutSweeper
	batch     int
	processed int
}

func (j *payoutRetryJob) Name() string   { return "payout-retry" }
func (j *payoutRetryJob) Processed() int { return j.processed }

func (j *payoutRetryJob) Run(ctx context.Context) error {
	report, err := j.payouts.RetryDue(ctx, j.batch)
	j.processed = report.Retried + report.Exhausted
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"scanned":   report.Scanned,
		"retried":   report.Retried,
		"paid":      report.Paid,
		"exhausted": report.Exhausted,
	}), "payout retry sweep complete")
	return err
}

// NewPayoutSettlementJob groups completed, unclaimed orders into payouts.
func NewPayoutSettlementJob(params PayoutJobParams) (Job, error) {
	batch, err := params.validate()
	if err != nil {
		return nil, err
	}
	return &payoutSettlementJob{logg: params.Logger, payouts: params.Payouts, batch: batch * 5}, nil
}

type payoutSettlementJob struct {
	logg      *logger.Logger
	payouts   payoutSweeper
	batch     int
	processed int
}

func (j *payoutSettlementJob) Name() string   { return "payout-settlement" }
func (j *payoutSettlementJob) Processed() int { return j.processed }

func (j *payoutSettlementJob) Run(ctx context.Context) error {
	report, err := j.payouts.Settle(ctx, j.batch)
	j.processed = report.Created
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"suppliers": report.Suppliers,
		"created":   report.Created,
		"skipped":   report.Skipped,
	}), "payout settlement sweep complete")
	return err
}
