package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

func seedOrder(t *testing.T, repo Repository, supplierID uuid.UUID) *models.Order {
	t.Helper()
	order := &models.Order{
		ClientID:      uuid.New(),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		Currency:      "USD",
		TotalCents:    500,
		Items: []models.OrderItem{
			{SupplierID: supplierID, Name: "item", UnitPriceCents: 500, Quantity: 1},
		},
	}
	if err := repo.Create(context.Background(), order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestUpdateIfStateOnlyMatchesObservedState(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	order := seedOrder(t, repo, uuid.New())

	rows, err := repo.UpdateIfState(ctx, order.ID, enums.OrderStatusConfirmed, nil, map[string]any{"status": enums.OrderStatusShipped})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected stale status to match no rows, got %d", rows)
	}

	approved := enums.PaymentStatusApproved
	rows, err = repo.UpdateIfState(ctx, order.ID, enums.OrderStatusPending, &approved, map[string]any{"status": enums.OrderStatusConfirmed})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected payment guard to block update, got %d rows", rows)
	}

	pending := enums.PaymentStatusPending
	rows, err = repo.UpdateIfState(ctx, order.ID, enums.OrderStatusPending, &pending, map[string]any{
		"status":         enums.OrderStatusConfirmed,
		"payment_status": enums.PaymentStatusApproved,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected one row updated, got %d", rows)
	}

	loaded, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if loaded.Status != enums.OrderStatusConfirmed || loaded.PaymentStatus != enums.PaymentStatusApproved {
		t.Fatalf("unexpected state %s/%s", loaded.Status, loaded.PaymentStatus)
	}
	if len(loaded.Items) != 1 || loaded.Items[0].OrderID != order.ID {
		t.Fatalf("expected items to be preloaded, got %+v", loaded.Items)
	}
}

func TestStatusChangesAreAppendOnly(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, repo, uuid.New())

	change := &models.OrderStatusChange{
		OrderID:       order.ID,
		FromStatus:    enums.OrderStatusPending,
		ToStatus:      enums.OrderStatusConfirmed,
		PaymentStatus: enums.PaymentStatusApproved,
		ActorRole:     enums.ActorRoleSystem,
	}
	if err := repo.AppendStatusChange(ctx, change); err != nil {
		t.Fatalf("append: %v", err)
	}

	err := conn.Model(change).Update("reason", "rewritten").Error
	if !errors.Is(err, models.ErrAppendOnly) {
		t.Fatalf("expected append-only error on update, got %v", err)
	}
	err = conn.Delete(change).Error
	if !errors.Is(err, models.ErrAppendOnly) {
		t.Fatalf("expected append-only error on delete, got %v", err)
	}

	rows, err := repo.ListStatusChanges(ctx, order.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Reason != nil {
		t.Fatalf("history mutated: %+v", rows)
	}
}

func TestListFiltersBySupplier(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	supplier := uuid.New()
	mine := seedOrder(t, repo, supplier)
	seedOrder(t, repo, uuid.New())

	rows, err := repo.List(ctx, ListFilter{SupplierID: &supplier, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != mine.ID {
		t.Fatalf("expected only the supplier's order, got %+v", rows)
	}

	status := enums.OrderStatusCancelled
	rows, err = repo.List(ctx, ListFilter{Status: &status, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no cancelled orders, got %d", len(rows))
	}
}
