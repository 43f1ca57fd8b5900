package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

type lineRequest struct {
	Name      string          `json:"name" validate:"required,max=8"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gt=0"`
}

type orderRequest struct {
	Currency string        `json:"currency" validate:"required,currency"`
	Items    []lineRequest `json:"items" validate:"required,min=1,dive"`
}

func decode(body string) (orderRequest, error) {
	var req orderRequest
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := DecodeJSONBody(httptest.NewRecorder(), r, &req)
	return req, err
}

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	out, _ := typed.Details().(map[string]string)
	return out
}

func TestDecodeJSONBodyAcceptsValidOrder(t *testing.T) {
	req, err := decode(`{"currency":"usd","items":[{"name":"Widget","unit_price":"12.50"}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.Items[0].UnitPrice.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected price %s", req.Items[0].UnitPrice)
	}
}

func TestDecodeJSONBodyReportsNestedFields(t *testing.T) {
	_, err := decode(`{"currency":"XXX","items":[{"name":"Widget","unit_price":"0"}]}`)
	got := details(t, err)
	if got["currency"] == "" {
		t.Fatalf("expected currency error in %v", got)
	}
	if got["items[0].unit_price"] != "must be greater than 0" {
		t.Fatalf("expected nested price error in %v", got)
	}
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	tests := map[string]string{
		"empty":         ``,
		"unknown field": `{"currency":"USD","items":[],"coupon":"x"}`,
		"trailing":      `{"currency":"USD","items":[{"name":"a","unit_price":"1"}]} {}`,
		"oversized":     `{"currency":"USD","items":[{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := decode(body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  Ana\x00 María  ", 0); got != "Ana María" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("ñandú-ñandú", 5); got != "ñandú" {
		t.Fatalf("truncation split runes: %q", got)
	}
}

func TestParseUUIDParamRejectsGarbage(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/orders/nope", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", "nope")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	if _, err := ParseUUIDParam(r, "orderId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParsePaginationBounds(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=0", nil)
	if _, err := ParsePagination(r); err == nil {
		t.Fatalf("limit=0 must be rejected")
	}
	r = httptest.NewRequest(http.MethodGet, "/?cursor=abc", nil)
	page, err := ParsePagination(r)
	if err != nil || page.Cursor != "abc" || page.Limit <= 0 {
		t.Fatalf("unexpected page %+v err %v", page, err)
	}
}
