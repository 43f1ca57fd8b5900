package payouts

import (
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// RetryPolicy spaces failed transfer attempts with capped exponential backoff.
type RetryPolicy struct {
	Base        time.Duration
	MaxBackoff  time.Duration
	MaxAttempts int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: 5 * time.Minute, MaxBackoff: 6 * time.Hour, MaxAttempts: 5}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.Base <= 0 {
		p.Base = def.Base
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.MaxBackoff < p.Base {
		p.MaxBackoff = p.Base
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	return p
}

// Backoff is min(base * 2^(attempts-1), max). Zero attempts need no wait.
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	p = p.normalized()
	if attempts <= 0 {
		return 0
	}
	delay := p.Base
	for i := 1; i < attempts; i++ {
		if delay >= p.MaxBackoff/2 {
			return p.MaxBackoff
		}
		delay *= 2
	}
	if delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

// Exhausted reports whether no automatic attempt remains.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.normalized().MaxAttempts
}

// Due reports whether a failed payout may be attempted again at now.
func (p RetryPolicy) Due(payout *models.Payout, now time.Time) bool {
	if payout == nil || payout.Status != enums.PayoutStatusFailed || p.Exhausted(payout.Attempts) {
		return false
	}
	if payout.LastTriedAt == nil {
		return true
	}
	return !payout.LastTriedAt.Add(p.Backoff(payout.Attempts)).After(now)
}
