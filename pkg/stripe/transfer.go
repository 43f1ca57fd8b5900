package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

// TransferRequest moves funds from the platform balance to a connected account.
type TransferRequest struct {
	AmountCents    int64
	Currency       string
	Destination    string
	TransferGroup  string
	IdempotencyKey string
	Metadata       map[string]string
}

// TransferResult is the subset of the Stripe transfer we persist.
type TransferResult struct {
	ID            string `json:"id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Destination   string `json:"destination"`
	TransferGroup string `json:"transfer_group,omitempty"`
}

// Transfer creates a Connect transfer. The idempotency key makes retries of
// the same attempt safe.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}
	if strings.TrimSpace(req.Destination) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer destination is required")
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Destination: stripe.String(req.Destination),
	}
	if req.TransferGroup != "" {
		params.TransferGroup = stripe.String(req.TransferGroup)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"amount_cents":   req.AmountCents,
		"transfer_group": req.TransferGroup,
		"stripe_mode":    c.mode,
	})
	tr, err := c.create(params)
	if err != nil {
		c.logg.Error(logCtx, "stripe transfer failed", err)
		return nil, mapStripeError(err, "create transfer")
	}
	c.logg.Info(c.logg.WithField(logCtx, "transfer_id", tr.ID), "stripe transfer created")

	out := &TransferResult{
		ID:            tr.ID,
		AmountCents:   tr.Amount,
		Currency:      strings.ToUpper(string(tr.Currency)),
		Destination:   req.Destination,
		TransferGroup: tr.TransferGroup,
	}
	return out, nil
}

func mapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := fmt.Sprintf("stripe %s failed (%d %s)", op, stripeErr.HTTPStatusCode, stripeErr.Code)
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, msg).WithDetails(map[string]any{
			"stripe_type": string(stripeErr.Type),
			"stripe_code": string(stripeErr.Code),
		})
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, fmt.Sprintf("stripe %s failed", op))
}
