package notifications

import (
	"context"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/idempotency"
	"github.com/angelmondragon/marketplace-backend/pkg/kafka"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/registry"
)

// ConsumerName scopes the consumer's idempotency markers.
const ConsumerName = "notifications-worker"

type notificationWriter interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
}

type processedGuard interface {
	Once(ctx context.Context, id string, fn func(context.Context) error) (bool, error)
}

type kafkaSource interface {
	Consume(ctx context.Context, handler kafka.Handler) error
}

// Delivery is a transport-neutral view of a published outbox event.
type Delivery struct {
	MessageID string
	EventType string
	Data      []byte
}

// Consumer turns order and payout events into in-app notifications.
type Consumer struct {
	repo        notificationWriter
	idempotency processedGuard
	decoders    *registry.DecoderRegistry
	logg        *logger.Logger
}

// NewConsumer builds the notification consumer.
func NewConsumer(repo notificationWriter, guard *idempotency.Guard, logg *logger.Logger) (*Consumer, error) {
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	return newConsumer(repo, guard, logg)
}

func newConsumer(repo notificationWriter, guard processedGuard, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:        repo,
		idempotency: guard,
		decoders:    newDecoders(),
		logg:        logg,
	}, nil
}

func newDecoders() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventOrderCreated, 1, registry.Typed[payloads.OrderCreatedEvent]())
	decoders.Register(enums.EventOrderStatusChanged, 1, registry.Typed[payloads.OrderStatusChangedEvent]())
	decoders.Register(enums.EventOrderPaymentUpdate, 1, registry.Typed[payloads.OrderPaymentUpdatedEvent]())
	decoders.Register(enums.EventOrderPaymentDiscrepancy, 1, registry.Typed[payloads.OrderPaymentDiscrepancyEvent]())
	for _, eventType := range []enums.OutboxEventType{
		enums.EventPayoutCreated,
		enums.EventPayoutPaid,
		enums.EventPayoutFailed,
		enums.EventPayoutCancelled,
	} {
		decoders.Register(eventType, 1, registry.Typed[payloads.PayoutEvent]())
	}
	return decoders
}

// RunPubSub receives from the notification subscription until ctx is cancelled.
func (c *Consumer) RunPubSub(ctx context.Context, subscription *pubsub.Subscriber) error {
	if subscription == nil {
		return fmt.Errorf("notification subscription required")
	}
	return subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		err := c.Handle(ctx, Delivery{
			MessageID: msg.ID,
			EventType: msg.Attributes["event_type"],
			Data:      msg.Data,
		})
		if err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// RunKafka consumes the given topic reader. A handler error stops the loop
// without committing so the event is redelivered after restart.
func (c *Consumer) RunKafka(ctx context.Context, source kafkaSource) error {
	if source == nil {
		return fmt.Errorf("kafka consumer required")
	}
	return source.Consume(ctx, func(ctx context.Context, msg kafka.Message) error {
		return c.Handle(ctx, Delivery{
			MessageID: msg.Attributes["event_id"],
			EventType: msg.Attributes["event_type"],
			Data:      msg.Value,
		})
	})
}

// Handle processes one delivery. A nil return acknowledges it; an error asks
// the transport to redeliver.
func (c *Consumer) Handle(ctx context.Context, delivery Delivery) error {
	fields := map[string]any{
		"message_id": delivery.MessageID,
		"event_type": delivery.EventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	eventType, err := enums.ParseOutboxEventType(delivery.EventType)
	if err != nil {
		c.logg.Info(logCtx, "skipping unsupported event")
		return nil
	}

	envelope, err := outbox.DecodeEnvelope(delivery.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return nil
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return nil
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	if !c.decoders.Has(eventType, envelope.Version) {
		c.logg.Warn(c.logg.WithField(logCtx, "version", envelope.Version), "skipping unknown payload version")
		return nil
	}

	written := 0
	ran, err := c.idempotency.Once(ctx, eventID.String(), func(ctx context.Context) error {
		payload, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
		if err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
		rows := buildNotifications(eventType, payload)
		if len(rows) == 0 {
			return nil
		}
		written = len(rows)
		return c.repo.CreateBatch(ctx, rows)
	})
	switch {
	case err != nil:
		c.logg.Error(logCtx, "notification handling failed", err)
		return err
	case !ran:
		c.logg.Info(logCtx, "event already processed")
	case written == 0:
		c.logg.Info(logCtx, "event produces no notifications")
	default:
		c.logg.Info(c.logg.WithField(logCtx, "recipients", written), "notifications written")
	}
	return nil
}

func buildNotifications(eventType enums.OutboxEventType, payload any) []models.Notification {
	switch event := payload.(type) {
	case *payloads.OrderCreatedEvent:
		short := shortID(event.OrderID)
		amount := formatCents(event.TotalCents, string(event.Currency))
		rows := []models.Notification{
			orderNotification(event.ClientID, clientOrderLink(event.OrderID), enums.NotificationTypeOrder,
				"Order placed", fmt.Sprintf("Your order %s for %s was placed.", short, amount)),
		}
		for _, supplierID := range event.SupplierIDs {
			rows = append(rows, orderNotification(supplierID, supplierOrderLink(event.OrderID), enums.NotificationTypeOrder,
				"New order", fmt.Sprintf("Order %s is waiting for payment.", short)))
		}
		return rows
	case *payloads.OrderStatusChangedEvent:
		title := "Order " + string(event.To)
		message := fmt.Sprintf("Order %s moved from %s to %s.", shortID(event.OrderID), event.From, event.To)
		if event.Reason != nil && strings.TrimSpace(*event.Reason) != "" {
			message = fmt.Sprintf("%s Reason: %s", message, strings.TrimSpace(*event.Reason))
		}
		rows := []models.Notification{
			orderNotification(event.ClientID, clientOrderLink(event.OrderID), enums.NotificationTypeOrder, title, message),
		}
		for _, supplierID := range event.SupplierIDs {
			rows = append(rows, orderNotification(supplierID, supplierOrderLink(event.OrderID), enums.NotificationTypeOrder, title, message))
		}
		return rows
	case *payloads.OrderPaymentUpdatedEvent:
		return []models.Notification{
			orderNotification(event.ClientID, clientOrderLink(event.OrderID), enums.NotificationTypePayment,
				"Payment "+string(event.PaymentStatus),
				fmt.Sprintf("Payment for order %s is %s.", shortID(event.OrderID), event.PaymentStatus)),
		}
	case *payloads.OrderPaymentDiscrepancyEvent:
		return discrepancyNotifications(event)
	case *payloads.PayoutEvent:
		return []models.Notification{payoutNotification(eventType, event)}
	default:
		return nil
	}
}

// Captured money the order cannot keep is the client's concern; a late
// rejection is the suppliers' concern since they may already be fulfilling.
func discrepancyNotifications(event *payloads.OrderPaymentDiscrepancyEvent) []models.Notification {
	short := shortID(event.OrderID)
	if event.Kind.NeedsRefund() {
		return []models.Notification{
			orderNotification(event.ClientID, clientOrderLink(event.OrderID), enums.NotificationTypePayment,
				"Payment under review",
				fmt.Sprintf("We received a payment for order %s that cannot be applied. Our team will refund it.", short)),
		}
	}
	rows := make([]models.Notification, 0, len(event.SupplierIDs))
	for _, supplierID := range event.SupplierIDs {
		rows = append(rows, orderNotification(supplierID, supplierOrderLink(event.OrderID), enums.NotificationTypePayment,
			"Payment rejected",
			fmt.Sprintf("Payment for order %s was rejected after confirmation. Hold fulfilment until support reviews it.", short)))
	}
	return rows
}

func payoutNotification(eventType enums.OutboxEventType, event *payloads.PayoutEvent) models.Notification {
	amount := formatCents(event.AmountCents, string(event.Currency))
	short := shortID(event.PayoutID)
	var title, message string
	switch eventType {
	case enums.EventPayoutCreated:
		title = "Payout scheduled"
		message = fmt.Sprintf("Payout %s of %s covering %d orders was created.", short, amount, len(event.OrderIDs))
	case enums.EventPayoutPaid:
		title = "Payout sent"
		message = fmt.Sprintf("Payout %s of %s was sent.", short, amount)
	case enums.EventPayoutFailed:
		title = "Payout delayed"
		message = fmt.Sprintf("Payout %s of %s failed (attempt %d) and will be retried.", short, amount, event.Attempts)
		if event.Status == enums.PayoutStatusExhausted {
			title = "Payout needs attention"
			message = fmt.Sprintf("Payout %s of %s could not be sent after %d attempts.", short, amount, event.Attempts)
		}
	default:
		title = "Payout cancelled"
		message = fmt.Sprintf("Payout %s of %s was cancelled.", short, amount)
	}
	return models.Notification{
		RecipientID: event.SupplierID,
		Type:        enums.NotificationTypePayout,
		Title:       title,
		Message:     message,
		Link:        stringPtr("/supplier/payouts/" + event.PayoutID.String()),
	}
}

func orderNotification(recipient uuid.UUID, link string, kind enums.NotificationType, title, message string) models.Notification {
	return models.Notification{
		RecipientID: recipient,
		Type:        kind,
		Title:       title,
		Message:     strings.TrimSpace(message),
		Link:        stringPtr(link),
	}
}

func clientOrderLink(orderID uuid.UUID) string   { return "/orders/" + orderID.String() }
func supplierOrderLink(orderID uuid.UUID) string { return "/supplier/orders/" + orderID.String() }

func shortID(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}

func formatCents(cents int64, currency string) string {
	return decimal.New(cents, -2).StringFixed(2) + " " + currency
}

func stringPtr(value string) *string {
	return &value
}
