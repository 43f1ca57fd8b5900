package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/paymentlog"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

// PaymentLogLister reads the payment log for admins.
type PaymentLogLister interface {
	List(ctx context.Context, params paymentlog.ListParams) (*pagination.Page[models.PaymentLog], error)
}

// AdminPaymentLogs lists processor exchanges filtered by kind, reference,
// order or payout.
func AdminPaymentLogs(logs PaymentLogLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if logs == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment log unavailable"))
			return
		}

		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseOptionalUUID(r, "order_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payoutID, err := validators.ParseOptionalUUID(r, "payout_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		result, err := logs.List(r.Context(), paymentlog.ListParams{
			Kind:       strings.TrimSpace(query.Get("kind")),
			Reference:  validators.SanitizeString(query.Get("reference"), 255),
			OrderID:    orderID,
			PayoutID:   payoutID,
			Pagination: page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
