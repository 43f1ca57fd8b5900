package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// onceIndex backs EmitIfNotExists when two writers race past the existence check.
const onceIndex = "ux_outbox_events_once"

var ErrTxRequired = errors.New("outbox: events must be written inside a transaction")

// DomainEvent is what producers hand to Emit. Data is marshalled into the
// envelope's data field.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case e.EventType == "":
		return errors.New("outbox: event type is required")
	case e.AggregateType == "":
		return errors.New("outbox: aggregate type is required")
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("outbox: %s needs an aggregate id", e.EventType)
	}
	return nil
}

// Service writes outbox rows next to the state change they describe.
type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

// Emit queues event on tx; the row commits or rolls back with the caller.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return ErrTxRequired
	}
	if err := event.validate(); err != nil {
		return err
	}
	row, envelope, err := s.buildRow(event)
	if err != nil {
		return err
	}
	if err := s.repo.Append(tx, row); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
	}), "outbox event queued")
	return nil
}

// EmitIfNotExists queues event only when no row of the same type exists for
// the aggregate yet.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return ErrTxRequired
	}
	exists, err := s.repo.Has(tx, event.EventType, event.AggregateType, event.AggregateID)
	if err != nil || exists {
		return err
	}
	err = s.Emit(ctx, tx, event)
	if dbpkg.IsUniqueViolation(err, onceIndex) {
		return nil
	}
	return err
}

func (s *Service) buildRow(event DomainEvent) (models.OutboxEvent, PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, fmt.Errorf("outbox: encode %s data: %w", event.EventType, err)
	}
	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if envelope.Version <= 0 {
		envelope.Version = CurrentPayloadVersion
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = s.now()
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, err
	}
	return models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       raw,
	}, envelope, nil
}
