package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/registry"
)

const (
	fallbackBatch    = 50
	fallbackPoll     = 500 * time.Millisecond
	fallbackAttempts = 10
	sendTimeout      = 15 * time.Second
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// eventStore is the slice of outbox.Repository the publisher drives.
type eventStore interface {
	Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	Published(tx *gorm.DB, id uuid.UUID, at time.Time) error
	Failed(tx *gorm.DB, id uuid.UUID, cause error) error
	Park(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error
}

type deadLetterSink interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publishMetrics interface {
	Event(eventType, result string)
	PublishLatency(transport string, d time.Duration)
	DeliveryLag(d time.Duration)
}

type ServiceParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          txRunner
	Transport   transport
	Store       eventStore
	Registry    resolver
	DeadLetters deadLetterSink
	Metrics     publishMetrics
	Clock       func() time.Time
}

func (p ServiceParams) check() error {
	missing := map[string]bool{
		"config":       p.Config == nil,
		"logger":       p.Logger == nil,
		"db":           p.DB == nil,
		"transport":    p.Transport == nil,
		"store":        p.Store == nil,
		"registry":     p.Registry == nil,
		"dead letters": p.DeadLetters == nil,
	}
	var errs []error
	for name, absent := range missing {
		if absent {
			errs = append(errs, fmt.Errorf("outbox publisher: %s is required", name))
		}
	}
	return errors.Join(errs...)
}

// Service moves committed outbox rows onto the broker. Each batch is claimed
// and settled inside one transaction, so replicas can run concurrently.
type Service struct {
	logg      *logger.Logger
	db        txRunner
	store     eventStore
	transport transport
	resolver  resolver
	dlq       deadLetterSink
	metrics   publishMetrics
	clock     func() time.Time
	batch     int
	ceiling   int
	backoff   *pollBackoff
}

func NewService(p ServiceParams) (*Service, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	cfg := p.Config.Outbox
	poll := time.Duration(cfg.PollIntervalMS) * time.Millisecond
	if poll <= 0 {
		poll = fallbackPoll
	}
	s := &Service{
		logg:      p.Logger,
		db:        p.DB,
		store:     p.Store,
		transport: p.Transport,
		resolver:  p.Registry,
		dlq:       p.DeadLetters,
		metrics:   p.Metrics,
		clock:     p.Clock,
		batch:     cmpOr(cfg.BatchSize, fallbackBatch),
		ceiling:   cmpOr(cfg.MaxAttempts, fallbackAttempts),
		backoff:   newPollBackoff(poll, maxIdleBackoff),
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s, nil
}

type nopMetrics struct{}

func (nopMetrics) Event(string, string)                 {}
func (nopMetrics) PublishLatency(string, time.Duration) {}
func (nopMetrics) DeliveryLag(time.Duration)            {}

func cmpOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run checks both ends are reachable, then polls until ctx ends. A non-empty
// batch is followed straight away by the next claim.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if err := s.transport.Ping(ctx); err != nil {
		return fmt.Errorf("%s unreachable: %w", s.transport.Name(), err)
	}

	for ctx.Err() == nil {
		n, err := s.processBatch(ctx)
		wait := s.backoff.Idle()
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch rolled back", err)
			wait = s.backoff.Fail()
		case n > 0:
			s.backoff.Reset()
			continue
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// processBatch settles one claimed batch and returns how many rows it saw.
func (s *Service) processBatch(ctx context.Context) (n int, err error) {
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.store.Claim(tx, s.batch, s.ceiling)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		for _, row := range rows {
			if err := s.settle(ctx, tx, row); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// settle publishes one row and records the outcome. Only a failure to record
// the outcome is returned; a failed publish is a normal outcome.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	resolved, err := s.resolver.Resolve(row)
	if err == nil {
		err = s.send(ctx, row, resolved)
	}
	d := decide(row, err, s.ceiling)
	s.metrics.Event(string(row.EventType), d.verdict.String())
	ctx = s.logg.WithFields(ctx, s.fields(row, resolved, d))

	switch d.verdict {
	case verdictPublished:
		if err := s.store.Published(tx, row.ID, s.clock()); err != nil {
			return fmt.Errorf("record publish of %s: %w", row.ID, err)
		}
		s.metrics.DeliveryLag(s.clock().Sub(row.CreatedAt))
		s.logg.Debug(ctx, "outbox event delivered")
	case verdictRetry:
		s.logg.Warn(ctx, "outbox delivery failed, will retry")
		if err := s.store.Failed(tx, row.ID, d.err); err != nil {
			return fmt.Errorf("record failure of %s: %w", row.ID, err)
		}
	case verdictDeadLetter:
		s.logg.Warn(ctx, "outbox event dead-lettered")
		return s.bury(tx, row, d)
	}
	return nil
}

// bury copies the row into the dead letter table and parks it.
func (s *Service) bury(tx *gorm.DB, row models.OutboxEvent, d decision) error {
	msg := d.err.Error()
	if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   d.reason,
		ErrorMessage:  &msg,
		AttemptCount:  d.attempt,
		FailedAt:      s.clock().UTC(),
	}); err != nil {
		return fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	if err := s.store.Park(tx, row.ID, d.err, s.ceiling); err != nil {
		return fmt.Errorf("park %s: %w", row.ID, err)
	}
	return nil
}

// send forwards the stored envelope byte for byte. The aggregate id is the
// message key so an order's (or payout's) events keep their order.
func (s *Service) send(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	if resolved.Route.Topic == "" {
		return registry.NewNonRetryableError(fmt.Errorf("no topic routed for %s", row.EventType))
	}
	aggregate := row.AggregateID.String()
	msg := outboundMessage{
		Key:  aggregate,
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   aggregate,
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	began := s.clock()
	defer func() { s.metrics.PublishLatency(s.transport.Name(), s.clock().Sub(began)) }()
	return s.transport.Publish(sendCtx, resolved.Route.Topic, msg)
}

func (s *Service) fields(row models.OutboxEvent, resolved *registry.ResolvedEvent, d decision) map[string]any {
	f := map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"transport":     s.transport.Name(),
		"attempt_count": d.attempt,
		"outcome":       d.verdict.String(),
	}
	if resolved != nil {
		f["topic"] = resolved.Route.Topic
		f["event_id"] = resolved.Envelope.EventID
	}
	if d.err != nil {
		f["error"] = d.err.Error()
		if d.reason != "" {
			f["error_reason"] = d.reason
		}
	}
	return f
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
