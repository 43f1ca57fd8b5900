package orders

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/endpoint"
	internalorders "github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

func SupplierConfirm(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderRoute(svc != nil, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		return endpoint.OK(svc.Confirm(c.Ctx(), c.Actor, c.ID))
	})
}

func SupplierProcess(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderRoute(svc != nil, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		return endpoint.OK(svc.StartProcessing(c.Ctx(), c.Actor, c.ID))
	})
}

// SupplierShip marks the order shipped. Tracking is optional here and can be
// attached later through SupplierTracking.
func SupplierShip(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderRoute(svc != nil, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		var req shipRequest
		if err := c.OptionalBody(&req); err != nil {
			return 0, nil, err
		}
		return endpoint.OK(svc.Ship(c.Ctx(), c.Actor, c.ID, req.Tracking.toTracking()))
	})
}

func SupplierDeliver(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderRoute(svc != nil, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		return endpoint.OK(svc.MarkDelivered(c.Ctx(), c.Actor, c.ID))
	})
}

func SupplierCancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderRoute(svc != nil, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		var req cancelRequest
		if err := c.OptionalBody(&req); err != nil {
			return 0, nil, err
		}
		return endpoint.OK(svc.SupplierCancel(c.Ctx(), c.Actor, c.ID, req.reason()))
	})
}

func SupplierTracking(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderRoute(svc != nil, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		var req trackingRequest
		if err := c.Body(&req); err != nil {
			return 0, nil, err
		}
		return endpoint.OK(svc.SetTracking(c.Ctx(), c.Actor, c.ID, *req.toTracking()))
	})
}

func AdminCancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderRoute(svc != nil, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		var req cancelRequest
		if err := c.OptionalBody(&req); err != nil {
			return 0, nil, err
		}
		return endpoint.OK(svc.AdminCancel(c.Ctx(), c.Actor, c.ID, req.reason()))
	})
}
