package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/internal/paymentlog"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

type stubPaymentLogs struct {
	got paymentlog.ListParams
}

func (s *stubPaymentLogs) List(ctx context.Context, params paymentlog.ListParams) (*pagination.Page[models.PaymentLog], error) {
	s.got = params
	return &pagination.Page[models.PaymentLog]{}, nil
}

func TestAdminPaymentLogsForwardsFilters(t *testing.T) {
	orderID := uuid.New()
	logs := &stubPaymentLogs{}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/payment-logs?kind=webhook&reference=evt-1&order_id="+orderID.String()+"&limit=10", nil)
	resp := httptest.NewRecorder()
	AdminPaymentLogs(logs, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if logs.got.Kind != "webhook" || logs.got.Reference != "evt-1" || logs.got.Pagination.Limit != 10 {
		t.Fatalf("unexpected params %+v", logs.got)
	}
	if logs.got.OrderID == nil || *logs.got.OrderID != orderID {
		t.Fatalf("expected order filter, got %v", logs.got.OrderID)
	}
}

func TestAdminPaymentLogsRejectsBadOrderID(t *testing.T) {
	resp := httptest.NewRecorder()
	AdminPaymentLogs(&stubPaymentLogs{}, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/admin/v1/payment-logs?order_id=nope", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
