package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

// recordPayment handles a processor status for an order that already left
// pending. The order status never moves here: the canonical payment status is
// stored so settlement sees it, and payments the order cannot keep are
// flagged for reconciliation.
func (s *service) recordPayment(ctx context.Context, update PaymentUpdate) (*PaymentResult, error) {
	var result PaymentResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, update.OrderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusPending {
			// the guarded transition lost a race with another payment update
			return pkgerrors.New(pkgerrors.CodeConflict, "order payment changed concurrently").
				WithDetails(map[string]any{"payment_status": order.PaymentStatus})
		}

		discrepancy, updates := classifyPayment(order, update)
		result = PaymentResult{Order: order, Discrepancy: discrepancy}
		if len(updates) == 0 {
			return nil
		}
		updates["updated_at"] = s.now()
		observed := order.PaymentStatus
		rows, err := repo.UpdateIfState(ctx, order.ID, order.Status, &observed, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment status")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed while recording payment")
		}
		updated, err := s.load(ctx, repo, order.ID)
		if err != nil {
			return err
		}
		result.Order = updated
		result.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterRecord(ctx, update, &result)
	return &result, nil
}

// classifyPayment decides what a late processor status means for an order
// outside pending. It returns the columns to store, nil when nothing changes.
func classifyPayment(order *models.Order, update PaymentUpdate) (enums.PaymentDiscrepancy, map[string]any) {
	current := order.PaymentStatus
	otherPayment := update.PaymentID != "" && order.PaymentID != nil && *order.PaymentID != update.PaymentID
	record := func() map[string]any {
		updates := map[string]any{"payment_status": update.Status}
		if update.PaymentID != "" {
			updates["payment_id"] = update.PaymentID
		}
		return updates
	}

	switch update.Status {
	case enums.PaymentStatusApproved:
		switch {
		case current == enums.PaymentStatusApproved && otherPayment:
			// paid twice, e.g. through a superseded checkout link; the first
			// payment stays on the order
			return enums.PaymentDiscrepancyDuplicate, nil
		case current == enums.PaymentStatusApproved:
			return "", nil
		case order.Status == enums.OrderStatusCancelled:
			return enums.PaymentDiscrepancyPaidAfterCancel, record()
		default:
			// a supplier confirmed before the processor settled
			return "", record()
		}
	case enums.PaymentStatusRejected:
		switch {
		case current == enums.PaymentStatusRejected:
			return "", nil
		case current == enums.PaymentStatusApproved && otherPayment:
			// a failed attempt does not undo the payment already on the order
			return "", nil
		case order.Status == enums.OrderStatusCancelled:
			return "", record()
		default:
			return enums.PaymentDiscrepancyRejectedAfterConfirm, record()
		}
	default:
		if current.IsFinal() || current == update.Status || order.Status.IsTerminal() {
			return "", nil
		}
		return "", record()
	}
}

func (s *service) afterRecord(ctx context.Context, update PaymentUpdate, result *PaymentResult) {
	order := result.Order
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	actor := actorRef(auth.System())

	if result.Discrepancy != "" {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"discrepancy":     result.Discrepancy,
			"payment_id":      update.PaymentID,
			"incoming_status": update.Status,
			"order_status":    order.Status,
		}), "payment needs reconciliation")
		if s.notifier != nil {
			s.notifier.OrderPaymentDiscrepancy(ctx, payloads.OrderPaymentDiscrepancyEvent{
				OrderID:           order.ID,
				ClientID:          order.ClientID,
				SupplierIDs:       order.SupplierIDs(),
				Kind:              result.Discrepancy,
				Status:            order.Status,
				PaymentStatus:     order.PaymentStatus,
				PaymentID:         update.PaymentID,
				IncomingStatus:    update.Status,
				RecordedPaymentID: order.PaymentID,
			}, actor)
		}
		return
	}
	if result.Changed && s.notifier != nil {
		s.notifier.OrderPaymentUpdated(ctx, payloads.OrderPaymentUpdatedEvent{
			OrderID:       order.ID,
			ClientID:      order.ClientID,
			SupplierIDs:   order.SupplierIDs(),
			Status:        order.Status,
			PaymentStatus: order.PaymentStatus,
			PaymentID:     update.PaymentID,
		}, actor)
	}
}

func samePayment(o *models.Order, paymentID string) bool {
	return paymentID == "" || o.PaymentID == nil || *o.PaymentID == paymentID
}
