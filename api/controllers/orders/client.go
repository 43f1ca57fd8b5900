package orders

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/endpoint"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/checkout"
	internalorders "github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// Create places an order for the calling client.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Route{Service: "orders", Ready: svc != nil, Logger: logg}.Handle(func(c *endpoint.Call) (int, any, error) {
		var req createOrderRequest
		if err := c.Body(&req); err != nil {
			return 0, nil, err
		}
		return endpoint.Created(svc.Create(c.Ctx(), c.Actor, req.toInput()))
	})
}

// List returns orders visible to the caller. Clients see their own orders,
// suppliers the orders that contain their items, admins everything.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Route{Service: "orders", Ready: svc != nil, Logger: logg}.Handle(func(c *endpoint.Call) (int, any, error) {
		params, err := listParams(c.R, c.Actor.IsAdmin())
		if err != nil {
			return 0, nil, err
		}
		return endpoint.OK(svc.List(c.Ctx(), c.Actor, params))
	})
}

func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderRoute(svc != nil, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		return endpoint.OK(svc.Get(c.Ctx(), c.Actor, c.ID))
	})
}

// History lists the status changes of an order, oldest first.
func History(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderRoute(svc != nil, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		changes, err := svc.History(c.Ctx(), c.Actor, c.ID)
		return endpoint.OK(map[string]any{"items": changes}, err)
	})
}

// Checkout answers 201 for a new preference and 200 when a live one is reused.
func Checkout(svc checkout.PreferenceCreator, logg *logger.Logger) http.HandlerFunc {
	return orderRoute(svc != nil, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		var req checkoutRequest
		if err := c.OptionalBody(&req); err != nil {
			return 0, nil, err
		}
		pref, err := svc.CreatePreference(c.Ctx(), c.Actor, c.ID, checkout.PreferenceInput{
			PayerEmail: req.PayerEmail,
			PayerName:  validators.SanitizeString(req.PayerName, 120),
		})
		if err != nil {
			return 0, nil, err
		}
		if pref.Reused {
			return http.StatusOK, pref, nil
		}
		return http.StatusCreated, pref, nil
	})
}

// Complete closes a delivered order. Used by the owning client and by admins.
func Complete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderRoute(svc != nil, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		return endpoint.OK(svc.Complete(c.Ctx(), c.Actor, c.ID))
	})
}
