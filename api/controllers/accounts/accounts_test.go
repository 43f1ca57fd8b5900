package accounts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/internal/paymentaccounts"
	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type stubAccounts struct {
	code, state string
	wallet      *paymentaccounts.WalletInput
	err         error
}

func (s *stubAccounts) AuthorizeURL(context.Context, auth.Actor) (string, error) {
	return "https://connect.squareup.com/oauth2/authorize?state=abc", s.err
}

func (s *stubAccounts) CompleteOAuth(_ context.Context, _ auth.Actor, code, state string) (*paymentaccounts.Account, error) {
	s.code, s.state = code, state
	if s.err != nil {
		return nil, s.err
	}
	return &paymentaccounts.Account{Linked: true, Provider: "square", MerchantID: "M1"}, nil
}

func (s *stubAccounts) GetAccount(context.Context, auth.Actor) (*paymentaccounts.Account, error) {
	return &paymentaccounts.Account{Linked: false}, s.err
}

func (s *stubAccounts) SetPrimaryWallet(_ context.Context, actor auth.Actor, input paymentaccounts.WalletInput) (*models.SupplierWallet, error) {
	s.wallet = &input
	return &models.SupplierWallet{ID: uuid.New(), SupplierID: actor.UserID, Kind: enums.WalletKind(input.Kind), AccountRef: input.AccountRef, IsPrimary: true}, s.err
}

func (s *stubAccounts) ListWallets(context.Context, auth.Actor) ([]models.SupplierWallet, error) {
	return nil, s.err
}

func (s *stubAccounts) PrimaryWallet(context.Context, uuid.UUID) (*models.SupplierWallet, error) {
	return nil, s.err
}

var supplier = auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleSupplier}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func request(method, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/", reader)
	return req.WithContext(middleware.WithActor(req.Context(), supplier))
}

func TestAuthorizeURLReturnsURL(t *testing.T) {
	resp := httptest.NewRecorder()
	AuthorizeURL(&stubAccounts{}, testLogger())(resp, request(http.MethodGet, ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var body struct {
		Data authorizeResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body.Data.URL, "state=abc") {
		t.Fatalf("unexpected url %q", body.Data.URL)
	}
}

func TestOAuthCallbackPassesCodeAndState(t *testing.T) {
	svc := &stubAccounts{}
	resp := httptest.NewRecorder()
	OAuthCallback(svc, testLogger())(resp, request(http.MethodPost, `{"code":" c-1 ","state":"s-1"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.code != "c-1" || svc.state != "s-1" {
		t.Fatalf("unexpected exchange args %q %q", svc.code, svc.state)
	}
}

func TestOAuthCallbackRejectsUnknownState(t *testing.T) {
	svc := &stubAccounts{err: pkgerrors.New(pkgerrors.CodeValidation, "oauth state expired")}
	resp := httptest.NewRecorder()
	OAuthCallback(svc, testLogger())(resp, request(http.MethodPost, `{"code":"c","state":"nope"}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestSetPrimaryWalletValidatesKind(t *testing.T) {
	svc := &stubAccounts{}
	resp := httptest.NewRecorder()
	SetPrimaryWallet(svc, testLogger())(resp, request(http.MethodPut, `{"kind":"crypto","account_ref":"x"}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.wallet != nil {
		t.Fatalf("service should not be called")
	}

	resp = httptest.NewRecorder()
	SetPrimaryWallet(svc, testLogger())(resp, request(http.MethodPut, `{"kind":"stripe_account","account_ref":" acct_123 ","holder_name":"Acme"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.wallet.AccountRef != "acct_123" || svc.wallet.HolderName != "Acme" {
		t.Fatalf("unexpected wallet input %+v", svc.wallet)
	}
}

func TestAccountRequiresActor(t *testing.T) {
	resp := httptest.NewRecorder()
	Account(&stubAccounts{}, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
