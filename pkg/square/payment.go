package square

import (
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// Payment is the canonical processor view of a payment, reduced to what
// reconciliation needs.
type Payment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id,omitempty"`
	OrderID     string `json:"square_order_id,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// PaymentLink is a created hosted checkout.
type PaymentLink struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	SquareOrderID string `json:"square_order_id,omitempty"`
}

// OAuthToken is the result of an authorization code exchange.
type OAuthToken struct {
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	MerchantID   string     `json:"merchant_id"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func paymentFromSquare(p *sq.Payment) *Payment {
	if p == nil {
		return nil
	}
	out := &Payment{
		ID:          deref(p.GetID()),
		Status:      deref(p.GetStatus()),
		ReferenceID: deref(p.GetReferenceID()),
		OrderID:     deref(p.GetOrderID()),
		UpdatedAt:   deref(p.GetUpdatedAt()),
	}
	if money := p.GetAmountMoney(); money != nil {
		if amount := money.GetAmount(); amount != nil {
			out.AmountCents = *amount
		}
		if currency := money.GetCurrency(); currency != nil {
			out.Currency = string(*currency)
		}
	}
	return out
}

// MapPaymentStatus folds Square payment states onto the marketplace payment
// states. Unknown states are treated as still processing.
func MapPaymentStatus(status string) enums.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "APPROVED", "COMPLETED":
		return enums.PaymentStatusApproved
	case "FAILED", "CANCELED", "CANCELLED":
		return enums.PaymentStatusRejected
	case "PENDING":
		return enums.PaymentStatusPending
	default:
		return enums.PaymentStatusProcessing
	}
}
