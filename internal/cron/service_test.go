package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type toggleLock struct {
	held       bool
	acquireErr error
	releases   int
}

func (l *toggleLock) Acquire(context.Context) (bool, error) {
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *toggleLock) Release(context.Context) error {
	l.held = false
	l.releases++
	return nil
}

type scriptedJob struct {
	name        string
	err         error
	panicWith   any
	processed   int
	runs        int
	sawDeadline bool
}

func (j *scriptedJob) Name() string { return j.name }

func (j *scriptedJob) Run(ctx context.Context) error {
	j.runs++
	_, j.sawDeadline = ctx.Deadline()
	if j.panicWith != nil {
		panic(j.panicWith)
	}
	return j.err
}

func (j *scriptedJob) Processed() int { return j.processed }

type recordedRun struct {
	job       string
	processed int
	failed    bool
}

type captureRecorder struct {
	runs    []recordedRun
	skipped int
}

func (c *captureRecorder) JobFinished(job string, _ time.Duration, processed int, err error) {
	c.runs = append(c.runs, recordedRun{job: job, processed: processed, failed: err != nil})
}

func (c *captureRecorder) CycleSkipped() { c.skipped++ }

func newTestService(t *testing.T, lock Lock, rec Recorder, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Logger:     logger.Nop(),
		Registry:   registry,
		Lock:       lock,
		Metrics:    rec,
		JobTimeout: time.Minute,
	})
	require.NoError(t, err)
	return svc
}

func TestRunOnceRunsEveryJobDespiteFailures(t *testing.T) {
	ok := &scriptedJob{name: "preference-expiry", processed: 4}
	failing := &scriptedJob{name: "payout-retry", err: errors.New("db down"), processed: 9}
	panicky := &scriptedJob{name: "outbox-retention", panicWith: "nil map"}
	last := &scriptedJob{name: "notification-cleanup"}
	lock := &toggleLock{}
	rec := &captureRecorder{}

	report, err := newTestService(t, lock, rec, ok, failing, panicky, last).RunOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Skipped)
	assert.Len(t, report.Results, 4)
	assert.Equal(t, []string{"payout-retry", "outbox-retention"}, report.Failed())
	assert.Equal(t, 1, last.runs, "jobs after a panic still run")
	assert.True(t, ok.sawDeadline, "job timeout applies")
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)

	require.Len(t, rec.runs, 4)
	assert.Equal(t, recordedRun{job: "preference-expiry", processed: 4}, rec.runs[0])
	assert.Equal(t, recordedRun{job: "payout-retry", failed: true}, rec.runs[1], "failed runs report no rows")
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &scriptedJob{name: "payout-retry"}
	rec := &captureRecorder{}

	report, err := newTestService(t, &toggleLock{held: true}, rec, job).RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Zero(t, job.runs)
	assert.Equal(t, 1, rec.skipped)
}

func TestRunOnceSurfacesLockErrors(t *testing.T) {
	job := &scriptedJob{name: "payout-retry"}
	_, err := newTestService(t, &toggleLock{acquireErr: errors.New("redis unreachable")}, nil, job).RunOnce(context.Background())
	assert.ErrorContains(t, err, "redis unreachable")
	assert.Zero(t, job.runs)
}

func TestRunStopsWithContext(t *testing.T) {
	job := &scriptedJob{name: "payout-retry"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestService(t, &toggleLock{}, nil, job).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, job.runs, "a canceled cycle starts no jobs")
}

func TestNewServiceRequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
