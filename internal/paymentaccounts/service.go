// Package paymentaccounts links suppliers to the processor through OAuth and
// manages the wallets payouts are sent to.
package paymentaccounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/paymentlog"
	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/redis"
	"github.com/angelmondragon/marketplace-backend/pkg/security"
	"github.com/angelmondragon/marketplace-backend/pkg/square"
)

const (
	stateTTL   = 10 * time.Minute
	stateBytes = 24
)

type oauthClient interface {
	AuthorizeURL(state string) (string, error)
	ExchangeOAuthCode(ctx context.Context, code string) (*square.OAuthToken, error)
}

type sealer interface {
	Seal(plaintext string) (string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type exchangeLog interface {
	Append(ctx context.Context, entry paymentlog.Entry)
}

// Account is the public view of a linked processor account. Tokens never leave
// the service.
type Account struct {
	Linked     bool       `json:"linked"`
	Provider   string     `json:"provider,omitempty"`
	MerchantID string     `json:"merchant_id,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Scopes     []string   `json:"scopes,omitempty"`
	LinkedAt   *time.Time `json:"linked_at,omitempty"`
}

// WalletInput describes the wallet to make primary.
type WalletInput struct {
	Kind       string
	AccountRef string
	HolderName string
}

type Service interface {
	AuthorizeURL(ctx context.Context, actor auth.Actor) (string, error)
	CompleteOAuth(ctx context.Context, actor auth.Actor, code, state string) (*Account, error)
	GetAccount(ctx context.Context, actor auth.Actor) (*Account, error)
	SetPrimaryWallet(ctx context.Context, actor auth.Actor, input WalletInput) (*models.SupplierWallet, error)
	ListWallets(ctx context.Context, actor auth.Actor) ([]models.SupplierWallet, error)
	PrimaryWallet(ctx context.Context, supplierID uuid.UUID) (*models.SupplierWallet, error)
}

type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	OAuth      oauthClient
	States     redis.StateStore
	Sealer     sealer
	Log        exchangeLog
	Logger     *logger.Logger
	Scopes     []string
}

type service struct {
	repo   Repository
	tx     txRunner
	oauth  oauthClient
	states redis.StateStore
	sealer sealer
	log    exchangeLog
	logg   *logger.Logger
	scopes []string
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repository == nil:
		return nil, fmt.Errorf("payment accounts repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.OAuth == nil:
		return nil, fmt.Errorf("oauth client required")
	case params.States == nil:
		return nil, fmt.Errorf("state store required")
	case params.Sealer == nil:
		return nil, fmt.Errorf("token sealer required")
	case params.Log == nil:
		return nil, fmt.Errorf("payment log required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:   params.Repository,
		tx:     params.Tx,
		oauth:  params.OAuth,
		states: params.States,
		sealer: params.Sealer,
		log:    params.Log,
		logg:   logg,
		scopes: params.Scopes,
	}, nil
}

// AuthorizeURL stores a single-use state bound to the supplier and returns
// the processor consent URL.
func (s *service) AuthorizeURL(ctx context.Context, actor auth.Actor) (string, error) {
	if err := requireSupplier(actor); err != nil {
		return "", err
	}
	state, err := security.RandomToken(stateBytes)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate oauth state")
	}
	if err := s.states.Set(ctx, s.states.OAuthStateKey(state), actor.UserID.String(), stateTTL); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store oauth state")
	}
	url, err := s.oauth.AuthorizeURL(state)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build authorize url")
	}
	return url, nil
}

func (s *service) CompleteOAuth(ctx context.Context, actor auth.Actor, code, state string) (*Account, error) {
	if err := requireSupplier(actor); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	state = strings.TrimSpace(state)
	if code == "" || state == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and state are required")
	}

	owner, err := s.states.GetDel(ctx, s.states.OAuthStateKey(state))
	if err != nil && !redis.IsNil(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load oauth state")
	}
	if owner == "" || owner != actor.UserID.String() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "oauth state is invalid or expired")
	}

	ctx = s.logg.WithField(ctx, "supplier_id", actor.UserID.String())
	token, exchangeErr := s.oauth.ExchangeOAuthCode(ctx, code)
	entry := paymentlog.Entry{
		Kind:       enums.PaymentLogKindOAuthExchange,
		Provider:   enums.PaymentProviderSquare,
		Reference:  "oauth-" + actor.UserID.String(),
		SupplierID: &actor.UserID,
		Request:    map[string]any{"grant_type": "authorization_code", "code": "[REDACTED]"},
		Err:        exchangeErr,
	}
	if token != nil {
		entry.Response = token
	}
	s.log.Append(ctx, entry)
	if exchangeErr != nil {
		if pkgerrors.As(exchangeErr) != nil {
			return nil, exchangeErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, exchangeErr, "exchange oauth code")
	}

	account, err := s.sealAccount(actor.UserID, token)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpsertAccount(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save payment account")
	}
	stored, err := s.repo.FindAccount(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment account")
	}
	s.logg.Info(s.logg.WithField(ctx, "merchant_id", token.MerchantID), "payment account linked")
	return publicAccount(stored), nil
}

func (s *service) sealAccount(supplierID uuid.UUID, token *square.OAuthToken) (*models.PaymentAccount, error) {
	access, err := s.sealer.Seal(token.AccessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal access token")
	}
	account := &models.PaymentAccount{
		SupplierID:        supplierID,
		Provider:          enums.PaymentProviderSquare,
		MerchantID:        token.MerchantID,
		AccessTokenSealed: access,
		ExpiresAt:         token.ExpiresAt,
		UpdatedAt:         time.Now().UTC(),
	}
	if token.RefreshToken != "" {
		refresh, err := s.sealer.Seal(token.RefreshToken)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "seal refresh token")
		}
		account.RefreshTokenSealed = &refresh
	}
	if len(s.scopes) > 0 {
		joined := strings.Join(s.scopes, " ")
		account.Scopes = &joined
	}
	return account, nil
}

func (s *service) GetAccount(ctx context.Context, actor auth.Actor) (*Account, error) {
	if err := requireSupplier(actor); err != nil {
		return nil, err
	}
	account, err := s.repo.FindAccount(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment account")
	}
	return publicAccount(account), nil
}

// SetPrimaryWallet upserts the wallet and makes it the only primary one.
func (s *service) SetPrimaryWallet(ctx context.Context, actor auth.Actor, input WalletInput) (*models.SupplierWallet, error) {
	if err := requireSupplier(actor); err != nil {
		return nil, err
	}
	kind, err := enums.ParseWalletKind(strings.TrimSpace(input.Kind))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wallet kind")
	}
	ref := strings.TrimSpace(input.AccountRef)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account reference is required")
	}
	if kind == enums.WalletKindStripeAccount && !strings.HasPrefix(ref, "acct_") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe wallets need a connected account id (acct_...)")
	}
	var holder *string
	if name := strings.TrimSpace(input.HolderName); name != "" {
		holder = &name
	}

	var saved *models.SupplierWallet
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wallet, err := repo.FindWallet(ctx, actor.UserID, kind, ref)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet")
		}
		if wallet == nil {
			wallet = &models.SupplierWallet{ID: uuid.New(), SupplierID: actor.UserID, Kind: kind, AccountRef: ref}
		}
		if err := repo.ClearPrimary(ctx, actor.UserID, wallet.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear primary wallet")
		}
		wallet.HolderName = holder
		wallet.IsPrimary = true
		if err := repo.SaveWallet(ctx, wallet); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save wallet")
		}
		saved = wallet
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"supplier_id": actor.UserID, "wallet_kind": kind}), "primary wallet set")
	return saved, nil
}

func (s *service) ListWallets(ctx context.Context, actor auth.Actor) ([]models.SupplierWallet, error) {
	if err := requireSupplier(actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListWallets(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallets")
	}
	return rows, nil
}

// PrimaryWallet is the payout lookup; nil means the supplier has none.
func (s *service) PrimaryWallet(ctx context.Context, supplierID uuid.UUID) (*models.SupplierWallet, error) {
	return s.repo.PrimaryWallet(ctx, supplierID)
}

func publicAccount(account *models.PaymentAccount) *Account {
	if account == nil {
		return &Account{Linked: false}
	}
	out := &Account{
		Linked:     true,
		Provider:   string(account.Provider),
		MerchantID: account.MerchantID,
		ExpiresAt:  account.ExpiresAt,
	}
	if account.Scopes != nil {
		out.Scopes = strings.Fields(*account.Scopes)
	}
	linked := account.CreatedAt
	if !linked.IsZero() {
		out.LinkedAt = &linked
	}
	return out
}

func requireSupplier(actor auth.Actor) error {
	if !actor.IsSupplier() || actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "supplier role required")
	}
	return nil
}
