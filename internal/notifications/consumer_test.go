package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

type memoryGuard struct {
	seen    map[string]bool
	deleted int
}

func (g *memoryGuard) Once(ctx context.Context, id string, fn func(context.Context) error) (bool, error) {
	if g.seen == nil {
		g.seen = map[string]bool{}
	}
	if g.seen[id] {
		return false, nil
	}
	g.seen[id] = true
	if err := fn(ctx); err != nil {
		delete(g.seen, id)
		g.deleted++
		return true, err
	}
	return true, nil
}

type recordingWriter struct {
	rows []models.Notification
	err  error
}

func (w *recordingWriter) CreateBatch(_ context.Context, rows []models.Notification) error {
	if w.err != nil {
		return w.err
	}
	w.rows = append(w.rows, rows...)
	return nil
}

func envelopeFor(t *testing.T, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	out, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return out
}

func TestConsumerNotifiesClientAndSuppliers(t *testing.T) {
	writer := &recordingWriter{}
	consumer, err := newConsumer(writer, &memoryGuard{}, logger.Nop())
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	reason := "payment_rejected"
	event := payloads.OrderStatusChangedEvent{
		OrderID:     uuid.New(),
		ClientID:    uuid.New(),
		SupplierIDs: []uuid.UUID{uuid.New(), uuid.New()},
		From:        enums.OrderStatusPending,
		To:          enums.OrderStatusCancelled,
		Reason:      &reason,
	}
	data := envelopeFor(t, event)
	delivery := Delivery{MessageID: "m1", EventType: string(enums.EventOrderStatusChanged), Data: data}
	if err := consumer.Handle(context.Background(), delivery); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(writer.rows) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(writer.rows))
	}
	if writer.rows[0].RecipientID != event.ClientID {
		t.Fatalf("expected client to be notified first")
	}
	for _, row := range writer.rows {
		if row.Type != enums.NotificationTypeOrder {
			t.Fatalf("unexpected type %s", row.Type)
		}
	}

	if err := consumer.Handle(context.Background(), delivery); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(writer.rows) != 3 {
		t.Fatalf("redelivered event must not notify twice, got %d rows", len(writer.rows))
	}
}

func TestConsumerNotifiesSupplierOfPayout(t *testing.T) {
	writer := &recordingWriter{}
	consumer, _ := newConsumer(writer, &memoryGuard{}, logger.Nop())

	event := payloads.PayoutEvent{
		PayoutID:    uuid.New(),
		SupplierID:  uuid.New(),
		Status:      enums.PayoutStatusExhausted,
		AmountCents: 250000,
		Currency:    enums.CurrencyUSD,
		Attempts:    5,
	}
	err := consumer.Handle(context.Background(), Delivery{EventType: string(enums.EventPayoutFailed), Data: envelopeFor(t, event)})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(writer.rows) != 1 {
		t.Fatalf("expected one notification, got %d", len(writer.rows))
	}
	row := writer.rows[0]
	if row.RecipientID != event.SupplierID || row.Type != enums.NotificationTypePayout {
		t.Fatalf("unexpected notification %+v", row)
	}
	if row.Title != "Payout needs attention" {
		t.Fatalf("unexpected title %q", row.Title)
	}
	if want := "Payout " + shortID(event.PayoutID) + " of 2500.00 USD could not be sent after 5 attempts."; row.Message != want {
		t.Fatalf("unexpected message %q", row.Message)
	}
}

func TestConsumerRoutesPaymentDiscrepancies(t *testing.T) {
	writer := &recordingWriter{}
	consumer, _ := newConsumer(writer, &memoryGuard{}, logger.Nop())

	paidLate := payloads.OrderPaymentDiscrepancyEvent{
		OrderID:     uuid.New(),
		ClientID:    uuid.New(),
		SupplierIDs: []uuid.UUID{uuid.New()},
		Kind:        enums.PaymentDiscrepancyPaidAfterCancel,
		Status:      enums.OrderStatusCancelled,
	}
	if err := consumer.Handle(context.Background(), Delivery{MessageID: "d1", EventType: string(enums.EventOrderPaymentDiscrepancy), Data: envelopeFor(t, paidLate)}); err != nil {
		t.Fatalf("handle paid after cancel: %v", err)
	}
	if len(writer.rows) != 1 || writer.rows[0].RecipientID != paidLate.ClientID || writer.rows[0].Type != enums.NotificationTypePayment {
		t.Fatalf("expected one client payment notification, got %+v", writer.rows)
	}

	writer.rows = nil
	rejected := payloads.OrderPaymentDiscrepancyEvent{
		OrderID:     uuid.New(),
		ClientID:    uuid.New(),
		SupplierIDs: []uuid.UUID{uuid.New(), uuid.New()},
		Kind:        enums.PaymentDiscrepancyRejectedAfterConfirm,
		Status:      enums.OrderStatusConfirmed,
	}
	if err := consumer.Handle(context.Background(), Delivery{MessageID: "d2", EventType: string(enums.EventOrderPaymentDiscrepancy), Data: envelopeFor(t, rejected)}); err != nil {
		t.Fatalf("handle rejected after confirm: %v", err)
	}
	if len(writer.rows) != 2 {
		t.Fatalf("expected both suppliers notified, got %d rows", len(writer.rows))
	}
	for i, row := range writer.rows {
		if row.RecipientID != rejected.SupplierIDs[i] || row.Title != "Payment rejected" {
			t.Fatalf("unexpected notification %+v", row)
		}
	}
}

func TestConsumerReleasesMarkerOnWriteFailure(t *testing.T) {
	guard := &memoryGuard{}
	writer := &recordingWriter{err: errors.New("db down")}
	consumer, _ := newConsumer(writer, guard, logger.Nop())

	delivery := Delivery{
		EventType: string(enums.EventOrderPaymentUpdate),
		Data:      envelopeFor(t, payloads.OrderPaymentUpdatedEvent{OrderID: uuid.New(), ClientID: uuid.New(), PaymentStatus: enums.PaymentStatusProcessing}),
	}
	if err := consumer.Handle(context.Background(), delivery); err == nil {
		t.Fatal("expected write failure to request redelivery")
	}
	if guard.deleted != 1 {
		t.Fatalf("expected processed marker to be released")
	}

	writer.err = nil
	if err := consumer.Handle(context.Background(), delivery); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(writer.rows) != 1 || writer.rows[0].Type != enums.NotificationTypePayment {
		t.Fatalf("expected payment notification after retry, got %+v", writer.rows)
	}
}

func TestConsumerAcksUnknownAndMalformedEvents(t *testing.T) {
	writer := &recordingWriter{}
	consumer, _ := newConsumer(writer, &memoryGuard{}, logger.Nop())

	if err := consumer.Handle(context.Background(), Delivery{EventType: "vendor_group_closed", Data: []byte(`{}`)}); err != nil {
		t.Fatalf("unknown event should be acked: %v", err)
	}
	if err := consumer.Handle(context.Background(), Delivery{EventType: string(enums.EventOrderCreated), Data: []byte(`not json`)}); err != nil {
		t.Fatalf("malformed envelope should be acked: %v", err)
	}
	if len(writer.rows) != 0 {
		t.Fatalf("expected no notifications")
	}
}

func TestConsumerAcksUnknownPayloadVersion(t *testing.T) {
	writer := &recordingWriter{}
	guard := &memoryGuard{}
	consumer, _ := newConsumer(writer, guard, logger.Nop())

	raw, _ := json.Marshal(payloads.PayoutEvent{PayoutID: uuid.New(), SupplierID: uuid.New()})
	data, _ := json.Marshal(outbox.PayloadEnvelope{Version: 9, EventID: uuid.NewString(), OccurredAt: time.Now().UTC(), Data: raw})

	if err := consumer.Handle(context.Background(), Delivery{EventType: string(enums.EventPayoutPaid), Data: data}); err != nil {
		t.Fatalf("unknown version should be acked: %v", err)
	}
	if len(writer.rows) != 0 || len(guard.seen) != 0 {
		t.Fatalf("unknown version must not write or mark, rows=%d marked=%d", len(writer.rows), len(guard.seen))
	}
}
