package square

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errLoggerRequired      = errors.New("square logger is required")
)

var environments = map[string]bool{"sandbox": true, "production": true}

// Client wraps the Square SDK for the calls the marketplace makes: payment
// lookups, hosted checkout links, seller OAuth and webhook verification.
type Client struct {
	sdk        *sqclient.Client
	env        string
	baseURL    string
	locationID string
	webhook    *WebhookVerifier
	oauth      oauthApp
	logg       *logger.Logger
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env := strings.ToLower(strings.TrimSpace(cfg.Env))
	if env == "" {
		env = "sandbox"
	}
	if !environments[env] {
		return nil, fmt.Errorf("square environment %q must be sandbox or production", cfg.Env)
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}
	location := strings.TrimSpace(cfg.LocationID)
	if location == "" {
		return nil, errLocationRequired
	}

	base := cfg.BaseURL()
	c := &Client{
		sdk:        sqclient.NewClient(sqoption.WithBaseURL(base), sqoption.WithToken(token)),
		env:        env,
		baseURL:    base,
		locationID: location,
		webhook:    NewWebhookVerifier(cfg.WebhookSecret, cfg.NotificationURL),
		oauth:      newOAuthApp(cfg),
		logg:       logg,
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"square_env": env, "oauth": c.oauth.enabled()}), "square client ready")
	return c, nil
}

// Environment is "sandbox" or "production".
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.env
}

// WebhookVerifier checks notification signatures with the configured key.
func (c *Client) WebhookVerifier() *WebhookVerifier { return c.webhook }

// GetPayment loads a payment. When Square left reference_id off the payment
// it is taken from the linked Square order.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	resp, err := call(c, ctx, "get_payment", map[string]any{"payment_id": paymentID}, func() (*sq.GetPaymentResponse, error) {
		return c.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	})
	if err != nil {
		return nil, err
	}
	payment := paymentFromSquare(resp.GetPayment())
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "square returned an empty payment")
	}
	if payment.ReferenceID == "" && payment.OrderID != "" {
		order, err := call(c, ctx, "get_order", map[string]any{"square_order_id": payment.OrderID}, func() (*sq.GetOrderResponse, error) {
			return c.sdk.Orders.Get(ctx, &sq.GetOrdersRequest{OrderID: payment.OrderID})
		})
		if err != nil {
			return nil, err
		}
		if o := order.GetOrder(); o != nil {
			payment.ReferenceID = deref(o.GetReferenceID())
		}
	}
	return payment, nil
}

// CreatePaymentLink opens a hosted checkout whose Square order carries
// params.ReferenceID, so the webhook can find the local order again.
func (c *Client) CreatePaymentLink(ctx context.Context, params PaymentLinkParams) (*PaymentLink, error) {
	if err := params.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment link params")
	}
	req := params.toSquareRequest(c.locationID, idempotencyKey("preference", params.IdempotencyKey))
	fields := map[string]any{"reference_id": params.ReferenceID, "items": len(params.Items), "buyer_email": params.BuyerEmail}

	resp, err := call(c, ctx, "create_payment_link", fields, func() (*sq.CreatePaymentLinkResponse, error) {
		return c.sdk.Checkout.PaymentLinks.Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	link := resp.GetPaymentLink()
	if link == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "square returned an empty payment link")
	}
	return &PaymentLink{
		ID:            deref(link.GetID()),
		URL:           deref(link.GetURL()),
		SquareOrderID: deref(link.GetOrderID()),
	}, nil
}

// DeletePaymentLink deactivates a hosted checkout so it can no longer be
// paid; Square cancels the order behind it. A link that is already gone
// counts as deleted.
func (c *Client) DeletePaymentLink(ctx context.Context, linkID string) error {
	linkID = strings.TrimSpace(linkID)
	if linkID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment link id required")
	}
	_, err := call(c, ctx, "delete_payment_link", map[string]any{"payment_link_id": linkID}, func() (*sq.DeletePaymentLinkResponse, error) {
		return c.sdk.Checkout.PaymentLinks.Delete(ctx, &sqcheckout.DeletePaymentLinksRequest{ID: linkID})
	})
	if err != nil && pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil
	}
	return err
}

// call runs one SDK request with request/failure logging and maps its error
// into the domain taxonomy.
func call[T any](c *Client, ctx context.Context, op string, fields map[string]any, fn func() (T, error)) (T, error) {
	scoped := map[string]any{"operation": op}
	for k, v := range fields {
		scoped[k] = redact(k, v)
	}
	ctx = c.logg.WithFields(ctx, scoped)
	c.logg.Debug(ctx, "square request")

	out, err := fn()
	if err != nil {
		c.logg.Error(ctx, "square request failed", err)
		var zero T
		return zero, translate(err, op)
	}
	return out, nil
}

// idempotencyKey keeps a caller supplied key, otherwise mints "<prefix>-<uuid>".
func idempotencyKey(prefix, provided string) string {
	if k := strings.TrimSpace(provided); k != "" {
		return k
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "mp"
	}
	return prefix + "-" + uuid.NewString()
}

var sensitive = []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone", "code"}

func redact(key string, value any) any {
	key = strings.ToLower(key)
	for _, s := range sensitive {
		if strings.Contains(key, s) {
			return "[REDACTED]"
		}
	}
	return value
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
