package squarewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/internal/paymentlog"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/square"
)

// Outcome labels what happened to a notification.
type Outcome string

const (
	OutcomeProcessed   Outcome = "processed"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeRejected    Outcome = "rejected"
	OutcomeFailed      Outcome = "failed"
	OutcomeNeedsReview Outcome = "needs_review"
)

type paymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*square.Payment, error)
}

type paymentApplier interface {
	ApplyPayment(ctx context.Context, update orders.PaymentUpdate) (*orders.PaymentResult, error)
}

type exchangeLog interface {
	Append(ctx context.Context, entry paymentlog.Entry)
}

type ServiceParams struct {
	Payments paymentFetcher
	Orders   paymentApplier
	Log      exchangeLog
	Logger   *logger.Logger
	Tracer   trace.Tracer
}

type Service struct {
	payments paymentFetcher
	orders   paymentApplier
	log      exchangeLog
	logg     *logger.Logger
	tracer   trace.Tracer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "square client required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	if params.Log == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment log required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	tracer := params.Tracer
	if tracer == nil {
		tracer = otel.Tracer("marketplace/webhooks/square")
	}
	return &Service{
		payments: params.Payments,
		orders:   params.Orders,
		log:      params.Log,
		logg:     logg,
		tracer:   tracer,
	}, nil
}

// Event is the subset of a Square notification the service reads. The body
// status is never used; the payment is always fetched again.
type Event struct {
	EventID string    `json:"event_id"`
	Type    string    `json:"type"`
	Data    EventData `json:"data"`
}

type EventData struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ParseEvent decodes a notification body.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode square event")
	}
	return &event, nil
}

// DedupeID is the event id, falling back to the payment id plus type when
// the processor omitted one.
func (e *Event) DedupeID() string {
	if id := strings.TrimSpace(e.EventID); id != "" {
		return id
	}
	id := strings.TrimSpace(e.Data.ID)
	if id == "" {
		return ""
	}
	return id + ":" + strings.ToLower(strings.TrimSpace(e.Type))
}

// IsPayment reports whether the notification concerns a payment.
func (e *Event) IsPayment() bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(e.Type)), "payment.") {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(e.Data.Type), "payment")
}

// HandleEvent reconciles one notification. A nil error with OutcomeRejected
// means the event can never converge and must be acknowledged anyway.
// OutcomeNeedsReview is acknowledged too: the payment was recorded and
// flagged for an operator.
func (s *Service) HandleEvent(ctx context.Context, event *Event, raw []byte) (Outcome, error) {
	if event == nil {
		return OutcomeFailed, pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}
	if !event.IsPayment() {
		return OutcomeIgnored, nil
	}
	paymentID := strings.TrimSpace(event.Data.ID)
	if paymentID == "" {
		return OutcomeRejected, nil
	}

	ctx, span := s.tracer.Start(ctx, "square.webhook.handle", trace.WithAttributes(
		attribute.String("square.event_type", event.Type),
		attribute.String("square.payment_id", paymentID),
	))
	defer span.End()
	ctx = s.logg.WithFields(ctx, map[string]any{"event_id": event.DedupeID(), "payment_id": paymentID})

	entry := paymentlog.Entry{
		Kind:      enums.PaymentLogKindWebhook,
		Provider:  enums.PaymentProviderSquare,
		Reference: event.DedupeID(),
		Request:   json.RawMessage(raw),
	}

	outcome, err := s.reconcile(ctx, paymentID, &entry)
	s.log.Append(ctx, entry)

	switch {
	case err == nil:
	case pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		s.logg.Warn(ctx, "payment notification cannot be applied: "+err.Error())
		span.SetAttributes(attribute.String("square.outcome", string(OutcomeRejected)))
		return OutcomeRejected, nil
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return OutcomeFailed, err
	}
	span.SetAttributes(attribute.String("square.outcome", string(outcome)))
	return outcome, nil
}

func (s *Service) reconcile(ctx context.Context, paymentID string, entry *paymentlog.Entry) (Outcome, error) {
	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		entry.Err = err
		if pkgerrors.As(err) != nil {
			return OutcomeFailed, err
		}
		return OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "fetch square payment")
	}
	entry.Response = payment

	orderID, err := uuid.Parse(strings.TrimSpace(payment.ReferenceID))
	if err != nil {
		err = pkgerrors.New(pkgerrors.CodeUpstream, "payment carries no marketplace order reference").
			WithDetails(map[string]any{"reference_id": payment.ReferenceID})
		entry.Err = err
		return OutcomeFailed, err
	}
	entry.OrderID = &orderID

	status := square.MapPaymentStatus(payment.Status)
	result, err := s.orders.ApplyPayment(ctx, orders.PaymentUpdate{
		OrderID:   orderID,
		PaymentID: payment.ID,
		Status:    status,
	})
	if err != nil {
		entry.Err = err
		if pkgerrors.As(err) == nil && !errors.Is(err, context.Canceled) {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply payment")
		}
		return OutcomeFailed, err
	}
	if result.Discrepancy != "" {
		s.flag(ctx, payment, status, result)
		return OutcomeNeedsReview, nil
	}
	if !result.Changed {
		s.logg.Info(ctx, "payment notification already applied")
	} else {
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "payment notification applied")
	}
	return OutcomeProcessed, nil
}

// flag appends the reconciliation record an operator works from. The order
// service has already stored what it could and queued the alert event.
func (s *Service) flag(ctx context.Context, payment *square.Payment, status enums.PaymentStatus, result *orders.PaymentResult) {
	order := result.Order
	s.logg.Warn(s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"discrepancy": result.Discrepancy,
	}), "payment notification needs reconciliation")
	s.log.Append(ctx, paymentlog.Entry{
		Kind:      enums.PaymentLogKindReconciliation,
		Provider:  enums.PaymentProviderSquare,
		Reference: payment.ID,
		OrderID:   &order.ID,
		Request: map[string]any{
			"payment_id":     payment.ID,
			"payment_status": status,
			"amount_cents":   payment.AmountCents,
			"currency":       payment.Currency,
		},
		Response: map[string]any{
			"discrepancy":         result.Discrepancy,
			"order_status":        order.Status,
			"payment_status":      order.PaymentStatus,
			"recorded_payment_id": order.PaymentID,
			"needs_refund":        result.Discrepancy.NeedsRefund(),
		},
		Err: pkgerrors.Newf(pkgerrors.CodeConflict, "payment %s needs reconciliation: %s", payment.ID, result.Discrepancy),
	})
}
