// Package checkout creates the hosted payment preference for a pending order
// and retires it once it lapses.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/internal/paymentlog"
	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/square"
)

const defaultPreferenceTTL = 24 * time.Hour

type paymentLinks interface {
	CreatePaymentLink(ctx context.Context, params square.PaymentLinkParams) (*square.PaymentLink, error)
	DeletePaymentLink(ctx context.Context, linkID string) error
}

type orderStore interface {
	Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	AttachPreference(ctx context.Context, orderID uuid.UUID, pref orders.Preference) (*models.Order, error)
	ExpirePreference(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListExpiredPreferences(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type exchangeLog interface {
	Append(ctx context.Context, entry paymentlog.Entry)
	CountForOrder(ctx context.Context, kind enums.PaymentLogKind, orderID uuid.UUID) (int64, error)
}

// PreferenceCreator is the client-facing half of Service.
type PreferenceCreator interface {
	CreatePreference(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input PreferenceInput) (*Preference, error)
}

// Service creates checkout preferences and expires lapsed ones.
type Service interface {
	PreferenceCreator
	ExpirePreference(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListExpiredPreferences(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// PreferenceInput carries optional payer prefill.
type PreferenceInput struct {
	PayerEmail string
	PayerName  string
}

// Preference is what the client needs to redirect the payer.
type Preference struct {
	PreferenceID string    `json:"preference_id"`
	RedirectURL  string    `json:"redirect_url"`
	ExpiresAt    time.Time `json:"expires_at"`
	Reused       bool      `json:"-"`
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Orders      orderStore
	Links       paymentLinks
	Log         exchangeLog
	Logger      *logger.Logger
	TTL         time.Duration
	RedirectURL string
	Clock       func() time.Time
}

type service struct {
	orders      orderStore
	links       paymentLinks
	log         exchangeLog
	logg        *logger.Logger
	ttl         time.Duration
	redirectURL string
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Links == nil {
		return nil, fmt.Errorf("payment link client required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("payment log required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPreferenceTTL
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		orders:      params.Orders,
		links:       params.Links,
		log:         params.Log,
		logg:        logg,
		ttl:         ttl,
		redirectURL: strings.TrimSpace(params.RedirectURL),
		now:         func() time.Time { return clock().UTC() },
	}, nil
}

// CreatePreference returns the order's unexpired preference when one exists
// and otherwise creates a new payment link. The order id travels as the
// processor reference so webhooks can find the order again.
func (s *service) CreatePreference(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input PreferenceInput) (*Preference, error) {
	order, err := s.orders.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsClient() || order.ClientID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the ordering client can check out")
	}
	if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "checkout is only available for pending unpaid orders").
			WithDetails(map[string]any{"status": order.Status, "payment_status": order.PaymentStatus})
	}

	now := s.now()
	if existing := reusable(order, now); existing != nil {
		return existing, nil
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	// the lapsed link must stop taking money before a new one is handed out
	if err := s.deactivate(ctx, order); err != nil {
		return nil, err
	}
	exchanges, err := s.log.CountForOrder(ctx, enums.PaymentLogKindPreference, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count preference exchanges")
	}
	params := s.linkParams(order, input, exchanges+1)

	link, linkErr := s.links.CreatePaymentLink(ctx, params)
	s.log.Append(ctx, paymentlog.Entry{
		Kind:      enums.PaymentLogKindPreference,
		Provider:  enums.PaymentProviderSquare,
		Reference: params.IdempotencyKey,
		OrderID:   &order.ID,
		Request:   redactedParams(params),
		Response:  link,
		Err:       linkErr,
	})
	if linkErr != nil {
		if pkgerrors.As(linkErr) != nil {
			return nil, linkErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, linkErr, "create payment link")
	}
	if strings.TrimSpace(link.ID) == "" || strings.TrimSpace(link.URL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "payment link response incomplete")
	}

	expiresAt := now.Add(s.ttl)
	if _, err := s.orders.AttachPreference(ctx, order.ID, orders.Preference{ID: link.ID, URL: link.URL, ExpiresAt: expiresAt}); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "preference_id", link.ID), "checkout preference created")
	return &Preference{PreferenceID: link.ID, RedirectURL: link.URL, ExpiresAt: expiresAt}, nil
}

// ExpirePreference deactivates a lapsed payment link and then cancels the
// order. When the link cannot be deactivated the order stays pending, so a
// payment that still slips through confirms it instead of landing on a
// cancelled order.
func (s *service) ExpirePreference(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.Get(ctx, auth.System(), orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "only pending unpaid orders expire").
			WithDetails(map[string]any{"status": order.Status, "payment_status": order.PaymentStatus})
	}
	if order.PreferenceExpiresAt == nil || order.PreferenceExpiresAt.After(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "preference has not expired")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if err := s.deactivate(ctx, order); err != nil {
		return nil, err
	}
	return s.orders.ExpirePreference(ctx, order.ID)
}

func (s *service) ListExpiredPreferences(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return s.orders.ListExpiredPreferences(ctx, limit)
}

// deactivate deletes the order's current payment link at the processor. A
// link the processor no longer knows counts as deactivated.
func (s *service) deactivate(ctx context.Context, order *models.Order) error {
	if order.PreferenceID == nil || strings.TrimSpace(*order.PreferenceID) == "" {
		return nil
	}
	linkID := *order.PreferenceID
	err := s.links.DeletePaymentLink(ctx, linkID)
	s.log.Append(ctx, paymentlog.Entry{
		Kind:      enums.PaymentLogKindPreference,
		Provider:  enums.PaymentProviderSquare,
		Reference: "delete-" + linkID,
		OrderID:   &order.ID,
		Request:   map[string]any{"action": "delete", "preference_id": linkID},
		Err:       err,
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "deactivate payment link")
	}
	s.logg.Info(s.logg.WithField(ctx, "preference_id", linkID), "checkout preference deactivated")
	return nil
}

func reusable(order *models.Order, now time.Time) *Preference {
	if order.PreferenceID == nil || order.PreferenceURL == nil || order.PreferenceExpiresAt == nil {
		return nil
	}
	if !order.PreferenceExpiresAt.After(now) {
		return nil
	}
	return &Preference{
		PreferenceID: *order.PreferenceID,
		RedirectURL:  *order.PreferenceURL,
		ExpiresAt:    order.PreferenceExpiresAt.UTC(),
		Reused:       true,
	}
}

func (s *service) linkParams(order *models.Order, input PreferenceInput, seq int64) square.PaymentLinkParams {
	items := make([]square.PaymentLinkItem, 0, len(order.Items))
	for _, item := range order.Items {
		note := ""
		if item.ImageURL != nil {
			note = *item.ImageURL
		}
		items = append(items, square.PaymentLinkItem{
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			Note:           note,
		})
	}
	description := fmt.Sprintf("Order %s", order.ID)
	if name := strings.TrimSpace(input.PayerName); name != "" {
		description = fmt.Sprintf("Order %s for %s", order.ID, name)
	}
	return square.PaymentLinkParams{
		ReferenceID:    order.ID.String(),
		Currency:       order.Currency,
		Items:          items,
		BuyerEmail:     strings.TrimSpace(input.PayerEmail),
		RedirectURL:    s.redirectURL,
		Description:    description,
		IdempotencyKey: fmt.Sprintf("preference-%s-%d", order.ID, seq),
	}
}

func redactedParams(p square.PaymentLinkParams) map[string]any {
	out := map[string]any{
		"reference_id":    p.ReferenceID,
		"currency":        p.Currency,
		"items":           p.Items,
		"redirect_url":    p.RedirectURL,
		"idempotency_key": p.IdempotencyKey,
	}
	if p.BuyerEmail != "" {
		out["buyer_email"] = "[REDACTED]"
	}
	return out
}
