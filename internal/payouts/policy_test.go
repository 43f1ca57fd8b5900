package payouts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

func TestBackoffDoublesUntilCap(t *testing.T) {
	p := RetryPolicy{Base: 5 * time.Minute, MaxBackoff: time.Hour, MaxAttempts: 10}
	assert.Equal(t, time.Duration(0), p.Backoff(0))
	assert.Equal(t, 5*time.Minute, p.Backoff(1))
	assert.Equal(t, 10*time.Minute, p.Backoff(2))
	assert.Equal(t, 40*time.Minute, p.Backoff(4))
	assert.Equal(t, time.Hour, p.Backoff(5))
	assert.Equal(t, time.Hour, p.Backoff(64))
}

func TestDue(t *testing.T) {
	p := RetryPolicy{Base: time.Minute, MaxBackoff: time.Hour, MaxAttempts: 3}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tried := now.Add(-2 * time.Minute)

	failed := &models.Payout{Status: enums.PayoutStatusFailed, Attempts: 2, LastTriedAt: &tried}
	assert.True(t, p.Due(failed, now))

	failed.Attempts = 1
	recent := now.Add(-30 * time.Second)
	failed.LastTriedAt = &recent
	assert.False(t, p.Due(failed, now))

	failed.Attempts = 3
	failed.LastTriedAt = &tried
	assert.False(t, p.Due(failed, now), "exhausted payouts are not retried")
	assert.True(t, p.Exhausted(3))

	assert.False(t, p.Due(&models.Payout{Status: enums.PayoutStatusPending}, now))
}

func TestPolicyDefaults(t *testing.T) {
	p := RetryPolicy{}.normalized()
	assert.Equal(t, DefaultRetryPolicy(), p)
}
