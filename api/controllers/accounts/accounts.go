package accounts

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/endpoint"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	"github.com/angelmondragon/marketplace-backend/internal/paymentaccounts"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type oauthCallbackRequest struct {
	Code  string `json:"code" validate:"required,max=512"`
	State string `json:"state" validate:"required,max=256"`
}

type authorizeResponse struct {
	URL string `json:"url"`
}

type walletRequest struct {
	Kind       string `json:"kind" validate:"required,oneof=stripe_account bank_transfer manual"`
	AccountRef string `json:"account_ref" validate:"required,max=255"`
	HolderName string `json:"holder_name" validate:"omitempty,max=255"`
}

func route(svc paymentaccounts.Service, logg *logger.Logger) endpoint.Route {
	return endpoint.Route{Service: "payment accounts", Ready: svc != nil, Logger: logg}
}

// Account returns the caller's linked processor account.
func Account(svc paymentaccounts.Service, logg *logger.Logger) http.HandlerFunc {
	return route(svc, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		return endpoint.OK(svc.GetAccount(c.Ctx(), c.Actor))
	})
}

// AuthorizeURL hands out a consent URL bound to a one-time state.
func AuthorizeURL(svc paymentaccounts.Service, logg *logger.Logger) http.HandlerFunc {
	return route(svc, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		url, err := svc.AuthorizeURL(c.Ctx(), c.Actor)
		if err != nil {
			return 0, nil, err
		}
		return endpoint.OK(authorizeResponse{URL: url}, nil)
	})
}

// OAuthCallback exchanges the code and stores the sealed tokens.
func OAuthCallback(svc paymentaccounts.Service, logg *logger.Logger) http.HandlerFunc {
	return route(svc, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		var req oauthCallbackRequest
		if err := c.Body(&req); err != nil {
			return 0, nil, err
		}
		return endpoint.OK(svc.CompleteOAuth(c.Ctx(), c.Actor, strings.TrimSpace(req.Code), strings.TrimSpace(req.State)))
	})
}

func ListWallets(svc paymentaccounts.Service, logg *logger.Logger) http.HandlerFunc {
	return route(svc, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		return endpoint.OK(svc.ListWallets(c.Ctx(), c.Actor))
	})
}

// SetPrimaryWallet replaces the caller's primary payout destination.
func SetPrimaryWallet(svc paymentaccounts.Service, logg *logger.Logger) http.HandlerFunc {
	return route(svc, logg).Handle(func(c *endpoint.Call) (int, any, error) {
		var req walletRequest
		if err := c.Body(&req); err != nil {
			return 0, nil, err
		}
		return endpoint.OK(svc.SetPrimaryWallet(c.Ctx(), c.Actor, paymentaccounts.WalletInput{
			Kind:       req.Kind,
			AccountRef: validators.SanitizeString(req.AccountRef, 255),
			HolderName: validators.SanitizeString(req.HolderName, 255),
		}))
	})
}
