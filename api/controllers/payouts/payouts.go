package payouts

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/api/endpoint"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	internalpayouts "github.com/angelmondragon/marketplace-backend/internal/payouts"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type orderShareRequest struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	AmountCents int64     `json:"amount_cents" validate:"required,gt=0"`
}

type createPayoutRequest struct {
	SupplierID  uuid.UUID           `json:"supplier_id" validate:"required"`
	AmountCents int64               `json:"amount_cents" validate:"required,gt=0"`
	Orders      []orderShareRequest `json:"orders" validate:"required,min=1,dive"`
}

func (r createPayoutRequest) toInput() internalpayouts.CreateInput {
	shares := make([]internalpayouts.OrderShare, len(r.Orders))
	for i, s := range r.Orders {
		shares[i] = internalpayouts.OrderShare{OrderID: s.OrderID, AmountCents: s.AmountCents}
	}
	return internalpayouts.CreateInput{SupplierID: r.SupplierID, AmountCents: r.AmountCents, Orders: shares}
}

type failureRequest struct {
	Error string `json:"error" validate:"required,max=1024"`
}

func collection(svc internalpayouts.Service, logg *logger.Logger) endpoint.Route {
	return endpoint.Route{Service: "payouts", Ready: svc != nil, Logger: logg}
}

func member(svc internalpayouts.Service, logg *logger.Logger) endpoint.Route {
	rt := collection(svc, logg)
	rt.Param = "payoutId"
	rt.Scope = (*logger.Logger).WithPayoutID
	return rt
}

// AdminCreate opens a pending payout for a supplier over delivered orders.
func AdminCreate(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return collection(svc, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		var req createPayoutRequest
		if err := c.Body(&req); err != nil {
			return 0, nil, err
		}
		return endpoint.Created(svc.Create(c.Ctx(), c.Actor, req.toInput()))
	})
}

// AdminList accepts status and supplier_id filters.
func AdminList(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return list(svc, logg, true)
}

// SupplierList is scoped to the caller by the service; supplier_id is ignored.
func SupplierList(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return list(svc, logg, false)
}

func list(svc internalpayouts.Service, logg *logger.Logger, admin bool) http.HandlerFunc {
	return collection(svc, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		page, err := validators.ParsePagination(c.R)
		if err != nil {
			return 0, nil, err
		}
		params := internalpayouts.ListParams{Pagination: page}
		if raw := strings.TrimSpace(c.R.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePayoutStatus(raw)
			if err != nil {
				return 0, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
			}
			params.Status = &status
		}
		if admin {
			if params.SupplierID, err = validators.ParseOptionalUUID(c.R, "supplier_id"); err != nil {
				return 0, nil, err
			}
		}
		return endpoint.OK(svc.List(c.Ctx(), c.Actor, params))
	})
}

// Detail returns one payout. Suppliers only see their own.
func Detail(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return member(svc, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		return endpoint.OK(svc.Get(c.Ctx(), c.Actor, c.ID))
	})
}

// AdminRelease transfers the amount to the destination snapshotted on the payout.
func AdminRelease(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return member(svc, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		return endpoint.OK(svc.Release(c.Ctx(), c.Actor, c.ID))
	})
}

func AdminCancel(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return member(svc, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		return endpoint.OK(svc.Cancel(c.Ctx(), c.Actor, c.ID))
	})
}

// AdminRecordFailure records a failure reported out of band, such as a bank
// bouncing a manual settlement.
func AdminRecordFailure(svc internalpayouts.Service, logg *logger.Logger) http.HandlerFunc {
	return member(svc, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		var req failureRequest
		if err := c.Body(&req); err != nil {
			return 0, nil, err
		}
		return endpoint.OK(svc.RecordFailure(c.Ctx(), c.Actor, c.ID, errors.New(strings.TrimSpace(req.Error))))
	})
}
