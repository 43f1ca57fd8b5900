package square

import (
	"errors"
	"strconv"
	"strings"

	sq "github.com/square/square-go-sdk"
	"github.com/square/square-go-sdk/checkout"
)

// PaymentLinkItem is one line of a hosted checkout.
type PaymentLinkItem struct {
	Name           string
	UnitPriceCents int64
	Quantity       int
	Note           string
}

// PaymentLinkParams describes the checkout preference for a local order.
type PaymentLinkParams struct {
	ReferenceID    string
	Currency       string
	Items          []PaymentLinkItem
	BuyerEmail     string
	RedirectURL    string
	Description    string
	IdempotencyKey string
}

func (p PaymentLinkParams) validate() error {
	if strings.TrimSpace(p.ReferenceID) == "" {
		return errors.New("reference id is required")
	}
	if len(p.Items) == 0 {
		return errors.New("at least one item is required")
	}
	for _, item := range p.Items {
		if strings.TrimSpace(item.Name) == "" || item.Quantity <= 0 || item.UnitPriceCents <= 0 {
			return errors.New("items need a name, a positive quantity and a positive price")
		}
	}
	return nil
}

func (p PaymentLinkParams) toSquareRequest(locationID, idempotencyKey string) *checkout.CreatePaymentLinkRequest {
	lineItems := make([]*sq.OrderLineItem, 0, len(p.Items))
	for _, item := range p.Items {
		line := &sq.OrderLineItem{
			Name:           ptrString(item.Name),
			Quantity:       strconv.Itoa(item.Quantity),
			BasePriceMoney: moneyPtr(item.UnitPriceCents, p.Currency),
		}
		if trimmed := strings.TrimSpace(item.Note); trimmed != "" {
			line.Note = ptrString(trimmed)
		}
		lineItems = append(lineItems, line)
	}

	req := &checkout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		Description:    ptrString(p.Description),
		Order: &sq.Order{
			LocationID:  locationID,
			ReferenceID: ptrString(p.ReferenceID),
			LineItems:   lineItems,
		},
	}
	if trimmed := strings.TrimSpace(p.RedirectURL); trimmed != "" {
		req.CheckoutOptions = &sq.CheckoutOptions{RedirectURL: ptrString(trimmed)}
	}
	if trimmed := strings.TrimSpace(p.BuyerEmail); trimmed != "" {
		req.PrePopulatedData = &sq.PrePopulatedData{BuyerEmail: ptrString(trimmed)}
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
