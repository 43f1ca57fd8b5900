package orders

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalorders "github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

type createItemRequest struct {
	SupplierID uuid.UUID       `json:"supplier_id" validate:"required"`
	ProductRef *string         `json:"product_ref" validate:"omitempty,max=128"`
	Name       string          `json:"name" validate:"required,max=255"`
	ImageURL   *string         `json:"image_url" validate:"omitempty,url"`
	UnitPrice  decimal.Decimal `json:"unit_price" validate:"gt=0"`
	Quantity   int             `json:"quantity" validate:"required,min=1"`
}

type createOrderRequest struct {
	Currency string              `json:"currency" validate:"required,currency"`
	Items    []createItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r createOrderRequest) toInput() internalorders.CreateOrderInput {
	input := internalorders.CreateOrderInput{
		Currency: strings.ToUpper(strings.TrimSpace(r.Currency)),
		Items:    make([]internalorders.CreateItemInput, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		input.Items = append(input.Items, internalorders.CreateItemInput{
			SupplierID: item.SupplierID,
			ProductRef: item.ProductRef,
			Name:       strings.TrimSpace(item.Name),
			ImageURL:   item.ImageURL,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}
	return input
}

type checkoutRequest struct {
	PayerEmail string `json:"payer_email" validate:"omitempty,email"`
	PayerName  string `json:"payer_name" validate:"omitempty,max=120"`
}

type trackingRequest struct {
	Carrier string  `json:"carrier" validate:"required,max=64"`
	Number  string  `json:"number" validate:"required,max=128"`
	URL     *string `json:"url" validate:"omitempty,url"`
}

func (r *trackingRequest) toTracking() *types.Tracking {
	if r == nil {
		return nil
	}
	return &types.Tracking{
		Carrier: strings.TrimSpace(r.Carrier),
		Number:  strings.TrimSpace(r.Number),
		URL:     r.URL,
	}
}

type shipRequest struct {
	Tracking *trackingRequest `json:"tracking" validate:"omitempty"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func (r cancelRequest) reason() *string {
	reason := strings.TrimSpace(r.Reason)
	if reason == "" {
		return nil
	}
	return &reason
}
