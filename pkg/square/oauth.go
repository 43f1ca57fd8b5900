package square

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

var errOAuthNotConfigured = errors.New("square oauth application is not configured")

type oauthApp struct {
	id       string
	secret   string
	redirect string
	scopes   []string
}

func newOAuthApp(cfg config.SquareConfig) oauthApp {
	return oauthApp{
		id:       strings.TrimSpace(cfg.ApplicationID),
		secret:   strings.TrimSpace(cfg.ApplicationSecret),
		redirect: strings.TrimSpace(cfg.OAuthRedirectURL),
		scopes:   strings.Fields(cfg.OAuthScopes),
	}
}

func (a oauthApp) enabled() bool { return a.id != "" && a.secret != "" }

// AuthorizeURL is the seller consent page for state.
func (c *Client) AuthorizeURL(state string) (string, error) {
	if c.oauth.id == "" {
		return "", errOAuthNotConfigured
	}
	q := url.Values{
		"client_id": {c.oauth.id},
		"scope":     {strings.Join(c.oauth.scopes, " ")},
		"session":   {"false"},
		"state":     {state},
	}
	if c.oauth.redirect != "" {
		q.Set("redirect_uri", c.oauth.redirect)
	}
	return c.baseURL + "/oauth2/authorize?" + q.Encode(), nil
}

// ExchangeOAuthCode trades the consent code for the seller's tokens.
func (c *Client) ExchangeOAuthCode(ctx context.Context, code string) (*OAuthToken, error) {
	if !c.oauth.enabled() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, errOAuthNotConfigured, "square oauth unavailable")
	}
	req := &sq.ObtainTokenRequest{
		ClientID:     c.oauth.id,
		ClientSecret: &c.oauth.secret,
		Code:         &code,
		GrantType:    "authorization_code",
	}
	if c.oauth.redirect != "" {
		req.RedirectURI = &c.oauth.redirect
	}

	resp, err := call(c, ctx, "obtain_token", map[string]any{"code": code}, func() (*sq.ObtainTokenResponse, error) {
		return c.sdk.OAuth.ObtainToken(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	token := &OAuthToken{
		AccessToken:  deref(resp.GetAccessToken()),
		RefreshToken: deref(resp.GetRefreshToken()),
		MerchantID:   deref(resp.GetMerchantID()),
	}
	if token.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "square returned no access token")
	}
	if ts, err := time.Parse(time.RFC3339, deref(resp.GetExpiresAt())); err == nil {
		token.ExpiresAt = &ts
	}
	return token, nil
}
