package orders

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/endpoint"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	internalorders "github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

func orderRoute(ready bool, logg *logger.Logger) endpoint.Route {
	return endpoint.Route{
		Service: "orders",
		Ready:   ready,
		Logger:  logg,
		Param:   "orderId",
		Scope:   (*logger.Logger).WithOrderID,
	}
}

// listParams reads filters. Party filters are admin only and silently
// ignored for everyone else.
func listParams(r *http.Request, admin bool) (internalorders.ListParams, error) {
	page, err := validators.ParsePagination(r)
	if err != nil {
		return internalorders.ListParams{}, err
	}
	params := internalorders.ListParams{Pagination: page}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return internalorders.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		params.Status = &status
	}
	if admin {
		if params.ClientID, err = validators.ParseOptionalUUID(r, "client_id"); err != nil {
			return internalorders.ListParams{}, err
		}
		if params.SupplierID, err = validators.ParseOptionalUUID(r, "supplier_id"); err != nil {
			return internalorders.ListParams{}, err
		}
	}
	return params, nil
}
