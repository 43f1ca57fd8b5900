package orders

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// Service owns the order lifecycle. Every status change is a single
// conditional update followed by an audit row in the same transaction.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	History(ctx context.Context, actor auth.Actor, orderID uuid.UUID) ([]models.OrderStatusChange, error)
	List(ctx context.Context, actor auth.Actor, params ListParams) (*OrderList, error)

	Confirm(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	StartProcessing(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	Ship(ctx context.Context, actor auth.Actor, orderID uuid.UUID, tracking *types.Tracking) (*models.Order, error)
	MarkDelivered(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	Complete(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	SupplierCancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason *string) (*models.Order, error)
	AdminCancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason *string) (*models.Order, error)
	SetTracking(ctx context.Context, actor auth.Actor, orderID uuid.UUID, tracking types.Tracking) (*models.Order, error)

	ApplyPayment(ctx context.Context, update PaymentUpdate) (*PaymentResult, error)
	AttachPreference(ctx context.Context, orderID uuid.UUID, pref Preference) (*models.Order, error)
	ExpirePreference(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListExpiredPreferences(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// Preference is the hosted checkout attached to a pending order.
type Preference struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repository      Repository
	Tx              txRunner
	Notifier        Notifier
	Metrics         transitionMetrics
	Logger          *logger.Logger
	DefaultCurrency string
	Clock           func() time.Time
}

type service struct {
	repo            Repository
	tx              txRunner
	notifier        Notifier
	metrics         transitionMetrics
	logg            *logger.Logger
	defaultCurrency enums.Currency
	now             func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	currency := enums.CurrencyUSD
	if params.DefaultCurrency != "" {
		parsed, err := enums.ParseCurrency(params.DefaultCurrency)
		if err != nil {
			return nil, err
		}
		currency = parsed
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
		repo:            params.Repository,
		tx:              params.Tx,
		notifier:        params.Notifier,
		metrics:         params.Metrics,
		logg:            logg,
		defaultCurrency: currency,
		now:             func() time.Time { return clock().UTC() },
	}, nil
}

var nonTerminalStatuses = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusConfirmed,
	enums.OrderStatusProcessing,
	enums.OrderStatusShipped,
	enums.OrderStatusDelivered,
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateOrderInput) (*models.Order, error) {
	if !actor.IsClient() || actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only clients can place orders")
	}
	currency := s.defaultCurrency
	if strings.TrimSpace(input.Currency) != "" {
		parsed, err := enums.ParseCurrency(input.Currency)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
		}
		currency = parsed
	}
	items, total, err := buildItems(input.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:            uuid.New(),
		ClientID:      actor.UserID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		Currency:      currency.String(),
		TotalCents:    total,
		Items:         items,
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, order)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	if s.notifier != nil {
		s.notifier.OrderCreated(ctx, payloads.OrderCreatedEvent{
			OrderID:     order.ID,
			ClientID:    order.ClientID,
			SupplierIDs: order.SupplierIDs(),
			TotalCents:  order.TotalCents,
			Currency:    currency,
		}, actorRef(actor))
	}
	return order, nil
}

func buildItems(inputs []CreateItemInput) ([]models.OrderItem, int64, error) {
	if len(inputs) == 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	hundred := decimal.NewFromInt(100)
	items := make([]models.OrderItem, 0, len(inputs))
	var total int64
	for i, in := range inputs {
		field := fmt.Sprintf("items[%d]", i)
		if in.SupplierID == uuid.Nil {
			return nil, 0, validationField(field+".supplier_id", "supplier id is required")
		}
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, 0, validationField(field+".name", "name is required")
		}
		if in.Quantity < 1 {
			return nil, 0, validationField(field+".quantity", "quantity must be at least 1")
		}
		if !in.UnitPrice.IsPositive() {
			return nil, 0, validationField(field+".unit_price", "unit price must be greater than zero")
		}
		cents := in.UnitPrice.Mul(hundred)
		if !cents.Equal(cents.Truncate(0)) {
			return nil, 0, validationField(field+".unit_price", "unit price supports at most two decimals")
		}
		unit := cents.IntPart()
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			SupplierID:     in.SupplierID,
			ProductRef:     in.ProductRef,
			Name:           name,
			ImageURL:       in.ImageURL,
			UnitPriceCents: unit,
			Quantity:       in.Quantity,
		})
		total += unit * int64(in.Quantity)
	}
	return items, total, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := canView(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) History(ctx context.Context, actor auth.Actor, orderID uuid.UUID) ([]models.OrderStatusChange, error) {
	if _, err := s.Get(ctx, actor, orderID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListStatusChanges(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list status changes")
	}
	return rows, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, params ListParams) (*OrderList, error) {
	filter := ListFilter{Status: params.Status, Limit: params.Pagination.Limit}
	switch {
	case actor.IsAdmin():
		filter.ClientID = params.ClientID
		filter.SupplierID = params.SupplierID
	case actor.IsClient():
		id := actor.UserID
		filter.ClientID = &id
	case actor.IsSupplier():
		id := actor.UserID
		filter.SupplierID = &id
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot list orders")
	}
	cursor, err := pagination.ParseCursor(params.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter.Cursor = cursor

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	page := pagination.Build(rows, filter.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &page, nil
}

func (s *service) Confirm(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, _, err := s.transition(ctx, transitionRequest{
		orderID:   orderID,
		actor:     actor,
		allowed:   []enums.OrderStatus{enums.OrderStatusPending},
		target:    enums.OrderStatusConfirmed,
		authorize: supplierOwns(actor),
	})
	return order, err
}

func (s *service) StartProcessing(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, _, err := s.transition(ctx, transitionRequest{
		orderID:   orderID,
		actor:     actor,
		allowed:   []enums.OrderStatus{enums.OrderStatusConfirmed},
		target:    enums.OrderStatusProcessing,
		authorize: supplierOwns(actor),
	})
	return order, err
}

func (s *service) Ship(ctx context.Context, actor auth.Actor, orderID uuid.UUID, tracking *types.Tracking) (*models.Order, error) {
	req := transitionRequest{
		orderID:   orderID,
		actor:     actor,
		allowed:   []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusProcessing},
		target:    enums.OrderStatusShipped,
		authorize: supplierOwns(actor),
	}
	if tracking != nil {
		normalized, err := normalizeTracking(*tracking)
		if err != nil {
			return nil, err
		}
		req.extra = map[string]any{"tracking": &normalized}
	}
	order, _, err := s.transition(ctx, req)
	return order, err
}

func (s *service) MarkDelivered(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, _, err := s.transition(ctx, transitionRequest{
		orderID:   orderID,
		actor:     actor,
		allowed:   []enums.OrderStatus{enums.OrderStatusShipped},
		target:    enums.OrderStatusDelivered,
		authorize: supplierOwns(actor),
	})
	return order, err
}

func (s *service) Complete(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, _, err := s.transition(ctx, transitionRequest{
		orderID: orderID,
		actor:   actor,
		allowed: []enums.OrderStatus{enums.OrderStatusDelivered},
		target:  enums.OrderStatusCompleted,
		authorize: func(o *models.Order) error {
			if actor.IsAdmin() || (actor.IsClient() && o.ClientID == actor.UserID) {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the ordering client or an admin can complete the order")
		},
	})
	return order, err
}

func (s *service) SupplierCancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason *string) (*models.Order, error) {
	order, _, err := s.transition(ctx, transitionRequest{
		orderID:   orderID,
		actor:     actor,
		allowed:   []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed},
		target:    enums.OrderStatusCancelled,
		reason:    trimReason(reason),
		authorize: supplierOwns(actor),
	})
	return order, err
}

func (s *service) AdminCancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason *string) (*models.Order, error) {
	order, _, err := s.transition(ctx, transitionRequest{
		orderID: orderID,
		actor:   actor,
		allowed: []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed, enums.OrderStatusProcessing},
		target:  enums.OrderStatusCancelled,
		reason:  trimReason(reason),
		authorize: func(*models.Order) error {
			if !actor.IsAdmin() {
				return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
			}
			return nil
		},
	})
	return order, err
}

// SetTracking stores carrier details. Confirmed and processing orders are
// promoted to shipped; other non-terminal orders keep their status.
func (s *service) SetTracking(ctx context.Context, actor auth.Actor, orderID uuid.UUID, tracking types.Tracking) (*models.Order, error) {
	normalized, err := normalizeTracking(tracking)
	if err != nil {
		return nil, err
	}
	order, _, err := s.transition(ctx, transitionRequest{
		orderID:   orderID,
		actor:     actor,
		allowed:   nonTerminalStatuses,
		authorize: supplierOwns(actor),
		promote: func(o *models.Order) enums.OrderStatus {
			if o.Status == enums.OrderStatusConfirmed || o.Status == enums.OrderStatusProcessing {
				return enums.OrderStatusShipped
			}
			return o.Status
		},
		done: func(o *models.Order) bool {
			if o.Status == enums.OrderStatusConfirmed || o.Status == enums.OrderStatusProcessing {
				return false
			}
			return !o.Status.IsTerminal() && sameTracking(o.Tracking, &normalized)
		},
		extra: map[string]any{"tracking": &normalized},
	})
	return order, err
}

// ApplyPayment reconciles the canonical processor status onto the order. A
// final local payment status is never regressed, and a redelivered status
// that is already applied is a no-op. Payments that arrive after the order
// left pending are recorded without moving the order; see recordPayment.
func (s *service) ApplyPayment(ctx context.Context, update PaymentUpdate) (*PaymentResult, error) {
	if update.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !update.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment status %q", update.Status)
	}

	req := transitionRequest{
		orderID:      update.OrderID,
		actor:        auth.System(),
		allowed:      []enums.OrderStatus{enums.OrderStatusPending},
		guardPayment: true,
		payment:      &update,
	}
	switch update.Status {
	case enums.PaymentStatusApproved:
		req.target = enums.OrderStatusConfirmed
		req.done = func(o *models.Order) bool {
			return o.PaymentStatus == enums.PaymentStatusApproved && samePayment(o, update.PaymentID)
		}
	case enums.PaymentStatusRejected:
		req.target = enums.OrderStatusCancelled
		req.reason = strPtr(ReasonPaymentRejected)
		req.done = func(o *models.Order) bool { return o.PaymentStatus == enums.PaymentStatusRejected }
	default:
		req.target = enums.OrderStatusPending
		req.done = func(o *models.Order) bool {
			return o.PaymentStatus == update.Status || o.PaymentStatus.IsFinal()
		}
	}

	order, changed, err := s.transition(ctx, req)
	switch {
	case err == nil:
		return &PaymentResult{Order: order, Changed: changed}, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition):
		return s.recordPayment(ctx, update)
	default:
		return nil, err
	}
}

func (s *service) AttachPreference(ctx context.Context, orderID uuid.UUID, pref Preference) (*models.Order, error) {
	if strings.TrimSpace(pref.ID) == "" || strings.TrimSpace(pref.URL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preference id and url are required")
	}
	pending := enums.PaymentStatusPending
	expires := pref.ExpiresAt.UTC()
	rows, err := s.repo.UpdateIfState(ctx, orderID, enums.OrderStatusPending, &pending, map[string]any{
		"preference_id":         pref.ID,
		"preference_url":        pref.URL,
		"preference_expires_at": &expires,
		"updated_at":            s.now(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "attach preference")
	}
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "checkout is only available for pending unpaid orders").
			WithDetails(map[string]any{"status": order.Status, "payment_status": order.PaymentStatus})
	}
	return order, nil
}

// ExpirePreference cancels a pending order whose hosted checkout lapsed unpaid.
func (s *service) ExpirePreference(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, _, err := s.transition(ctx, transitionRequest{
		orderID:      orderID,
		actor:        auth.System(),
		allowed:      []enums.OrderStatus{enums.OrderStatusPending},
		target:       enums.OrderStatusCancelled,
		reason:       strPtr(ReasonPreferenceExpired),
		guardPayment: true,
		authorize: func(o *models.Order) error {
			if o.Status != enums.OrderStatusPending {
				return nil
			}
			// processing means the buyer already paid and the processor has
			// not settled; only untouched checkouts lapse
			if o.PaymentStatus != enums.PaymentStatusPending {
				return invalidTransition(o.Status, enums.OrderStatusCancelled).
					WithDetails(map[string]any{"payment_status": o.PaymentStatus})
			}
			if o.PreferenceExpiresAt == nil || o.PreferenceExpiresAt.After(s.now()) {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "preference has not expired")
			}
			return nil
		},
	})
	return order, err
}

func (s *service) ListExpiredPreferences(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.repo.FindExpiredPreferences(ctx, s.now(), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find expired preferences")
	}
	return ids, nil
}

type transitionRequest struct {
	orderID uuid.UUID
	actor   auth.Actor
	allowed []enums.OrderStatus
	target  enums.OrderStatus
	reason  *string
	extra   map[string]any

	// promote overrides target based on the observed order.
	promote func(*models.Order) enums.OrderStatus
	// authorize runs before any state check.
	authorize func(*models.Order) error
	// done reports that the requested end state is already in place.
	done func(*models.Order) bool

	guardPayment bool
	payment      *PaymentUpdate
}

type committed struct {
	order   *models.Order
	from    enums.OrderStatus
	to      enums.OrderStatus
	changed bool
}

func (s *service) transition(ctx context.Context, req transitionRequest) (*models.Order, bool, error) {
	if req.orderID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if req.done == nil {
		target := req.target
		req.done = func(o *models.Order) bool { return target != "" && o.Status == target }
	}

	var result committed
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, req.orderID)
		if err != nil {
			return err
		}
		if req.authorize != nil {
			if err := req.authorize(order); err != nil {
				return err
			}
		}
		if req.done(order) {
			result = committed{order: order}
			return nil
		}
		target := req.target
		if req.promote != nil {
			target = req.promote(order)
		}
		if !containsStatus(req.allowed, order.Status) || (target != order.Status && !CanTransition(order.Status, target)) {
			return invalidTransition(order.Status, target)
		}

		now := s.now()
		updates := map[string]any{"updated_at": now}
		for k, v := range req.extra {
			updates[k] = v
		}
		if target != order.Status {
			updates["status"] = target
			if col := timestampColumn(target); col != "" {
				updates[col] = now
			}
			if target == enums.OrderStatusCancelled && req.reason != nil {
				updates["cancel_reason"] = *req.reason
			}
		}
		paymentStatus := order.PaymentStatus
		var paymentGuard *enums.PaymentStatus
		if req.guardPayment {
			observed := order.PaymentStatus
			paymentGuard = &observed
		}
		if req.payment != nil {
			paymentStatus = req.payment.Status
			updates["payment_status"] = req.payment.Status
			if req.payment.PaymentID != "" {
				updates["payment_id"] = req.payment.PaymentID
			}
		}

		rows, err := repo.UpdateIfState(ctx, order.ID, order.Status, paymentGuard, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order")
		}
		if rows == 0 {
			current, err := s.load(ctx, repo, order.ID)
			if err != nil {
				return err
			}
			if req.done(current) {
				result = committed{order: current}
				return nil
			}
			return invalidTransition(current.Status, target)
		}

		if target != order.Status {
			change := &models.OrderStatusChange{
				OrderID:       order.ID,
				FromStatus:    order.Status,
				ToStatus:      target,
				PaymentStatus: paymentStatus,
				ActorRole:     req.actor.Role,
				ActorID:       req.actor.IDPtr(),
				Reason:        req.reason,
			}
			if err := repo.AppendStatusChange(ctx, change); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append status change")
			}
		}

		updated, err := s.load(ctx, repo, order.ID)
		if err != nil {
			return err
		}
		result = committed{order: updated, from: order.Status, to: target, changed: true}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if result.changed {
		s.afterCommit(ctx, req, result)
	}
	return result.order, result.changed, nil
}

func (s *service) afterCommit(ctx context.Context, req transitionRequest, res committed) {
	order := res.order
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	currency, _ := enums.ParseCurrency(order.Currency)

	if res.from != res.to {
		if s.metrics != nil {
			s.metrics.OrderTransition(string(res.from), string(res.to), string(req.actor.Role))
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"from":  res.from,
			"to":    res.to,
			"actor": req.actor.Role,
		}), "order transitioned")
		if s.notifier != nil {
			s.notifier.OrderTransitioned(ctx, payloads.OrderStatusChangedEvent{
				OrderID:       order.ID,
				ClientID:      order.ClientID,
				SupplierIDs:   order.SupplierIDs(),
				From:          res.from,
				To:            res.to,
				PaymentStatus: order.PaymentStatus,
				Reason:        req.reason,
				TotalCents:    order.TotalCents,
				Currency:      currency,
			}, actorRef(req.actor))
		}
		return
	}
	if req.payment != nil && s.notifier != nil {
		s.notifier.OrderPaymentUpdated(ctx, payloads.OrderPaymentUpdatedEvent{
			OrderID:       order.ID,
			ClientID:      order.ClientID,
			SupplierIDs:   order.SupplierIDs(),
			Status:        order.Status,
			PaymentStatus: order.PaymentStatus,
			PaymentID:     req.payment.PaymentID,
		}, actorRef(req.actor))
	}
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func canView(actor auth.Actor, order *models.Order) error {
	switch {
	case actor.IsAdmin(), actor.IsSystem():
		return nil
	case actor.IsClient() && order.ClientID == actor.UserID:
		return nil
	case actor.IsSupplier() && order.HasSupplier(actor.UserID):
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order not accessible")
}

func supplierOwns(actor auth.Actor) func(*models.Order) error {
	return func(o *models.Order) error {
		if !actor.IsSupplier() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "supplier role required")
		}
		if !o.HasSupplier(actor.UserID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not contain supplier items")
		}
		return nil
	}
}

func invalidTransition(from, to enums.OrderStatus) *pkgerrors.Error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot move order from %s to %s", from, to).
		WithDetails(map[string]any{"from": from, "to": to})
}

func validationField(field, message string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).
		WithDetails(map[string]any{"field": field})
}

func normalizeTracking(t types.Tracking) (types.Tracking, error) {
	t.Carrier = strings.TrimSpace(t.Carrier)
	t.Number = strings.TrimSpace(t.Number)
	if t.Carrier == "" {
		return t, validationField("carrier", "carrier is required")
	}
	if t.Number == "" {
		return t, validationField("number", "tracking number is required")
	}
	if t.URL != nil {
		raw := strings.TrimSpace(*t.URL)
		if raw == "" {
			t.URL = nil
			return t, nil
		}
		parsed, err := url.ParseRequestURI(raw)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return t, validationField("url", "tracking url must be a valid http(s) url")
		}
		t.URL = &raw
	}
	return t, nil
}

func sameTracking(a, b *types.Tracking) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Carrier != b.Carrier || a.Number != b.Number {
		return false
	}
	if a.URL == nil || b.URL == nil {
		return a.URL == b.URL
	}
	return *a.URL == *b.URL
}

func containsStatus(list []enums.OrderStatus, status enums.OrderStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.IDPtr(), Role: actor.Role}
}

func trimReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func strPtr(v string) *string { return &v }
