package square

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

func TestIdempotencyKey(t *testing.T) {
	assert.Equal(t, "custom-key", idempotencyKey("preference", " custom-key "))
	assert.True(t, strings.HasPrefix(idempotencyKey("preference", ""), "preference-"))
	assert.True(t, strings.HasPrefix(idempotencyKey("", ""), "mp-"))
}

func TestRedact(t *testing.T) {
	for _, key := range []string{"access_token", "buyer_email", "code", "card_id"} {
		assert.Equal(t, "[REDACTED]", redact(key, "abc123"), key)
	}
	assert.Equal(t, "ok", redact("status", "ok"))
}

func TestCodeForStatus(t *testing.T) {
	cases := map[int]pkgerrors.Code{
		http.StatusUnauthorized:        pkgerrors.CodeUpstream,
		http.StatusNotFound:            pkgerrors.CodeNotFound,
		http.StatusConflict:            pkgerrors.CodeConflict,
		http.StatusBadRequest:          pkgerrors.CodeValidation,
		http.StatusTooManyRequests:     pkgerrors.CodeUpstream,
		http.StatusInternalServerError: pkgerrors.CodeUpstream,
	}
	for status, want := range cases {
		assert.Equal(t, want, codeForStatus(status), "status %d", status)
	}
}

func TestTranslate(t *testing.T) {
	reused := sqcore.NewAPIError(http.StatusConflict, errors.New(`{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`))
	err := translate(reused, "create_payment_link")
	assert.Equal(t, pkgerrors.CodeIdempotency, pkgerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "square create payment link failed")

	assert.Equal(t, pkgerrors.CodeUpstream, pkgerrors.CodeOf(translate(errors.New("dial tcp: i/o timeout"), "get_payment")))
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(translate(sqcore.NewAPIError(http.StatusNotFound, errors.New("not json")), "get_payment")))
}

func TestSquareErrorsDecodesBody(t *testing.T) {
	got := squareErrors(sqcore.NewAPIError(http.StatusBadRequest, errors.New(`{"errors":[{"category":"API_ERROR","code":"BAD_REQUEST","detail":"oops"}]}`)))
	require.Len(t, got, 1)
	assert.Equal(t, sq.ErrorCodeBadRequest, got[0].GetCode())
}

func TestMapPaymentStatus(t *testing.T) {
	cases := map[string]enums.PaymentStatus{
		"APPROVED":  enums.PaymentStatusApproved,
		"COMPLETED": enums.PaymentStatusApproved,
		"FAILED":    enums.PaymentStatusRejected,
		"CANCELED":  enums.PaymentStatusRejected,
		"PENDING":   enums.PaymentStatusPending,
		"SOMETHING": enums.PaymentStatusProcessing,
	}
	for in, want := range cases {
		assert.Equal(t, want, MapPaymentStatus(in), in)
	}
}

func TestPaymentLinkRequestCarriesReference(t *testing.T) {
	params := PaymentLinkParams{
		ReferenceID: "order-1",
		Currency:    "usd",
		Items:       []PaymentLinkItem{{Name: "Mug", UnitPriceCents: 1250, Quantity: 2}},
		BuyerEmail:  "buyer@example.com",
		RedirectURL: "https://shop.example/return",
	}
	require.NoError(t, params.validate())

	req := params.toSquareRequest("LOC1", "preference-order-1")
	require.NotNil(t, req.Order)
	require.NotNil(t, req.Order.ReferenceID)
	assert.Equal(t, "order-1", *req.Order.ReferenceID)
	assert.Equal(t, "LOC1", req.Order.LocationID)

	line := req.Order.LineItems[0]
	assert.Equal(t, "2", line.Quantity)
	assert.EqualValues(t, 1250, *line.BasePriceMoney.Amount)
	assert.Equal(t, "USD", string(*line.BasePriceMoney.Currency))
	assert.NotNil(t, req.PrePopulatedData)
	assert.NotNil(t, req.CheckoutOptions)

	assert.Error(t, PaymentLinkParams{ReferenceID: "o"}.validate(), "items are required")
}

func TestAuthorizeURL(t *testing.T) {
	c := &Client{baseURL: "https://connect.squareupsandbox.com", oauth: newOAuthApp(config.SquareConfig{
		ApplicationID:     "app-1",
		ApplicationSecret: "shh",
		OAuthRedirectURL:  "https://api.example/callback",
		OAuthScopes:       "MERCHANT_PROFILE_READ PAYMENTS_WRITE",
	})}

	raw, err := c.AuthorizeURL("state-1")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/oauth2/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "app-1", q.Get("client_id"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "MERCHANT_PROFILE_READ PAYMENTS_WRITE", q.Get("scope"))
	assert.Equal(t, "https://api.example/callback", q.Get("redirect_uri"))

	_, err = (&Client{}).AuthorizeURL("s")
	assert.ErrorIs(t, err, errOAuthNotConfigured)
}

func TestDeletePaymentLink(t *testing.T) {
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v2/online-checkout/payment-links/")
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodDelete || id == "gone" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"NOT_FOUND"}]}`))
			return
		}
		deleted = append(deleted, id)
		_, _ = w.Write([]byte(`{"id":"` + id + `","cancelled_order_id":"sq-order-1"}`))
	}))
	defer srv.Close()

	c := &Client{
		sdk:  sqclient.NewClient(sqoption.WithBaseURL(srv.URL), sqoption.WithToken("token")),
		logg: logger.Nop(),
	}
	ctx := context.Background()

	require.NoError(t, c.DeletePaymentLink(ctx, "link-1"))
	assert.Equal(t, []string{"link-1"}, deleted)
	assert.NoError(t, c.DeletePaymentLink(ctx, "gone"), "an already deleted link is not an error")

	err := c.DeletePaymentLink(ctx, " ")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestWebhookVerifier(t *testing.T) {
	body := []byte(`{"type":"payment.updated","data":{"id":"pay_1"}}`)
	v := NewWebhookVerifier("sig-key", "https://api.example/api/v1/webhooks/square")

	sig := Sign("sig-key", "https://api.example/api/v1/webhooks/square", body)
	assert.True(t, v.Verify(body, sig))
	assert.False(t, v.Verify([]byte(`{"tampered":true}`), sig))
	assert.False(t, NewWebhookVerifier("", "").Enabled(), "no secret disables verification")
}
