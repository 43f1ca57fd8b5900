package main

import (
	"fmt"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/registry"
)

type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDeadLetter
)

func (v verdict) String() string {
	switch v {
	case verdictPublished:
		return "published"
	case verdictRetry:
		return "retried"
	default:
		return "dead_lettered"
	}
}

// decision is what the publisher does with one row after trying it.
type decision struct {
	verdict verdict
	reason  enums.OutboxDLQErrorReason
	err     error
	attempt int
}

// decide maps a publish (or resolve) error onto the row's next state.
// Non-retryable errors dead-letter immediately; anything else is retried until
// the attempt that would reach maxAttempts.
func decide(event models.OutboxEvent, err error, maxAttempts int) decision {
	attempt := event.AttemptCount + 1
	if err == nil {
		return decision{verdict: verdictPublished, attempt: attempt}
	}
	if registry.IsNonRetryable(err) {
		return decision{verdict: verdictDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, err: err, attempt: attempt}
	}
	if attempt >= maxAttempts {
		return decision{
			verdict: verdictDeadLetter,
			reason:  enums.OutboxDLQReasonMaxAttempts,
			err:     fmt.Errorf("gave up after %d attempts: %w", attempt, err),
			attempt: attempt,
		}
	}
	return decision{verdict: verdictRetry, err: err, attempt: attempt}
}
