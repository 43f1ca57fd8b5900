package payouts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/paymentlog"
	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
	"github.com/angelmondragon/marketplace-backend/pkg/stripe"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

const (
	defaultLockTTL    = 2 * time.Minute
	maxLastErrorBytes = 1024
)

// Service settles completed orders to suppliers. Orders and amount are fixed
// when a payout is created; every later change is a conditional update.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateInput) (*models.Payout, error)
	Release(ctx context.Context, actor auth.Actor, payoutID uuid.UUID) (*models.Payout, error)
	RecordFailure(ctx context.Context, actor auth.Actor, payoutID uuid.UUID, cause error) (*models.Payout, error)
	Cancel(ctx context.Context, actor auth.Actor, payoutID uuid.UUID) (*models.Payout, error)
	Get(ctx context.Context, actor auth.Actor, payoutID uuid.UUID) (*models.Payout, error)
	List(ctx context.Context, actor auth.Actor, params ListParams) (*PayoutList, error)

	RetryDue(ctx context.Context, limit int) (RetryReport, error)
	Settle(ctx context.Context, limit int) (SettleReport, error)
}

// ServiceParams wires the payout service.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Wallets    walletLookup
	Transfers  transferer
	Locker     locker
	Log        exchangeLog
	Notifier   Notifier
	Metrics    transferMetrics
	Logger     *logger.Logger
	Tracer     trace.Tracer
	Policy     RetryPolicy
	LockTTL    time.Duration
	Clock      func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	wallets   walletLookup
	transfers transferer
	locker    locker
	log       exchangeLog
	notifier  Notifier
	metrics   transferMetrics
	logg      *logger.Logger
	tracer    trace.Tracer
	policy    RetryPolicy
	lockTTL   time.Duration
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Wallets == nil {
		return nil, fmt.Errorf("wallet lookup required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if params.Log == nil {
		return nil, fmt.Errorf("payment log required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	tracer := params.Tracer
	if tracer == nil {
		tracer = otel.Tracer("marketplace/payouts")
	}
	lockTTL := params.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:      params.Repository,
		tx:        params.Tx,
		wallets:   params.Wallets,
		transfers: params.Transfers,
		locker:    params.Locker,
		log:       params.Log,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		logg:      logg,
		tracer:    tracer,
		policy:    params.Policy.normalized(),
		lockTTL:   lockTTL,
		now:       func() time.Time { return clock().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateInput) (*models.Payout, error) {
	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	orderIDs, err := validateCreate(input)
	if err != nil {
		return nil, err
	}

	wallet, err := s.wallets.PrimaryWallet(ctx, input.SupplierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load primary wallet")
	}
	if wallet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier has no primary wallet").
			WithDetails(map[string]any{"supplier_id": input.SupplierID})
	}

	release, err := s.lock(ctx, "payout-create", input.SupplierID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	var created *models.Payout
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.LoadOrders(ctx, orderIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load orders")
		}
		currency, err := checkOrders(input.SupplierID, orderIDs, rows)
		if err != nil {
			return err
		}
		claimed, err := repo.ClaimedOrderIDs(ctx, input.SupplierID, orderIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check claimed orders")
		}
		if len(claimed) > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "orders already belong to another payout").
				WithDetails(map[string]any{"order_ids": claimed})
		}

		payout := &models.Payout{
			ID:          uuid.New(),
			SupplierID:  input.SupplierID,
			Status:      enums.PayoutStatusPending,
			AmountCents: input.AmountCents,
			Currency:    currency,
			Destination: destinationFrom(wallet),
		}
		for _, share := range input.Orders {
			payout.Orders = append(payout.Orders, models.PayoutOrder{
				OrderID:     share.OrderID,
				SupplierID:  input.SupplierID,
				AmountCents: share.AmountCents,
			})
		}
		if err := repo.Create(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payout")
		}
		created, err = s.load(ctx, repo, payout.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(s.logg.WithPayoutID(ctx, created.ID.String()), map[string]any{
		"supplier_id":  created.SupplierID,
		"amount_cents": created.AmountCents,
		"orders":       len(created.Orders),
	}), "payout created")
	s.notify(ctx, enums.EventPayoutCreated, created, actor)
	return created, nil
}

// Release sends the payout to its snapshotted destination. A paid payout is
// returned unchanged without a transfer.
func (s *service) Release(ctx context.Context, actor auth.Actor, payoutID uuid.UUID) (*models.Payout, error) {
	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	payout, err := s.load(ctx, s.repo, payoutID)
	if err != nil {
		return nil, err
	}
	if done, err := releasable(payout); err != nil {
		return nil, err
	} else if done {
		return payout, nil
	}

	unlock, err := s.lock(ctx, "payout", payoutID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	payout, err = s.load(ctx, s.repo, payoutID)
	if err != nil {
		return nil, err
	}
	if done, err := releasable(payout); err != nil {
		return nil, err
	} else if done {
		return payout, nil
	}
	return s.transfer(ctx, actor, payout)
}

func releasable(payout *models.Payout) (bool, error) {
	switch payout.Status {
	case enums.PayoutStatusPaid:
		return true, nil
	case enums.PayoutStatusCancelled:
		return false, pkgerrors.New(pkgerrors.CodeConflict, "payout is cancelled").
			WithDetails(map[string]any{"status": payout.Status})
	}
	return false, nil
}

func (s *service) transfer(ctx context.Context, actor auth.Actor, payout *models.Payout) (*models.Payout, error) {
	ctx = s.logg.WithPayoutID(ctx, payout.ID.String())
	attempt := payout.Attempts + 1
	key := fmt.Sprintf("payout-%s-attempt-%d", payout.ID, attempt)

	ctx, span := s.tracer.Start(ctx, "payout.transfer", trace.WithAttributes(
		attribute.String("payout.id", payout.ID.String()),
		attribute.String("payout.destination_kind", payout.Destination.Kind),
		attribute.Int("payout.attempt", attempt),
	))
	defer span.End()

	ref, provider, transferErr := s.send(ctx, payout, key)
	s.log.Append(ctx, paymentlog.Entry{
		Kind:       enums.PaymentLogKindPayoutAttempt,
		Provider:   provider,
		Reference:  key,
		PayoutID:   &payout.ID,
		SupplierID: &payout.SupplierID,
		Request: map[string]any{
			"amount_cents": payout.AmountCents,
			"currency":     payout.Currency,
			"destination":  payout.Destination,
			"attempt":      attempt,
		},
		Response: map[string]any{"transfer_ref": ref},
		Err:      transferErr,
	})

	if transferErr != nil {
		s.recordMetric("failure")
		span.RecordError(transferErr)
		span.SetStatus(codes.Error, transferErr.Error())
		s.logg.Error(ctx, "payout transfer failed", transferErr)
		if _, err := s.recordFailure(ctx, actor, payout.ID, transferErr); err != nil {
			return nil, multierr.Append(upstream(transferErr), err)
		}
		return nil, upstream(transferErr)
	}
	s.recordMetric("success")

	now := s.now()
	rows, err := s.repo.UpdateIfStatus(ctx, payout.ID, []enums.PayoutStatus{payout.Status}, map[string]any{
		"status":        enums.PayoutStatusPaid,
		"paid_at":       now,
		"transfer_ref":  ref,
		"attempts":      attempt,
		"last_tried_at": now,
		"updated_at":    now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payout paid")
	}
	updated, err := s.load(ctx, s.repo, payout.ID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		if updated.Status == enums.PayoutStatusPaid {
			return updated, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout changed during transfer").
			WithDetails(map[string]any{"status": updated.Status, "transfer_ref": ref})
	}
	s.logg.Info(s.logg.WithField(ctx, "transfer_ref", ref), "payout paid")
	s.notify(ctx, enums.EventPayoutPaid, updated, actor)
	return updated, nil
}

func (s *service) send(ctx context.Context, payout *models.Payout, key string) (string, enums.PaymentProvider, error) {
	kind := enums.WalletKind(payout.Destination.Kind)
	if kind != enums.WalletKindStripeAccount {
		return manualTransferPrefix + payout.ID.String(), enums.PaymentProviderManual, nil
	}
	if s.transfers == nil {
		return "", enums.PaymentProviderStripe, pkgerrors.New(pkgerrors.CodeDependency, "stripe transfers are not configured")
	}
	res, err := s.transfers.Transfer(ctx, stripe.TransferRequest{
		AmountCents:    payout.AmountCents,
		Currency:       payout.Currency,
		Destination:    payout.Destination.AccountRef,
		TransferGroup:  "payout-" + payout.ID.String(),
		IdempotencyKey: key,
		Metadata: map[string]string{
			"payout_id":   payout.ID.String(),
			"supplier_id": payout.SupplierID.String(),
		},
	})
	if err != nil {
		return "", enums.PaymentProviderStripe, err
	}
	if res == nil || strings.TrimSpace(res.ID) == "" {
		return "", enums.PaymentProviderStripe, pkgerrors.New(pkgerrors.CodeUpstream, "transfer response missing id")
	}
	return res.ID, enums.PaymentProviderStripe, nil
}

// RecordFailure counts a failed attempt. It never cancels the payout.
func (s *service) RecordFailure(ctx context.Context, actor auth.Actor, payoutID uuid.UUID, cause error) (*models.Payout, error) {
	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	if cause == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "failure reason required")
	}
	return s.recordFailure(ctx, actor, payoutID, cause)
}

func (s *service) recordFailure(ctx context.Context, actor auth.Actor, payoutID uuid.UUID, cause error) (*models.Payout, error) {
	payout, err := s.load(ctx, s.repo, payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status.IsTerminal() {
		return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "payout is already %s", payout.Status).
			WithDetails(map[string]any{"status": payout.Status})
	}

	now := s.now()
	message := truncate(cause.Error(), maxLastErrorBytes)
	rows, err := s.repo.UpdateIfStatus(ctx, payout.ID, []enums.PayoutStatus{payout.Status}, map[string]any{
		"status":        enums.PayoutStatusFailed,
		"attempts":      gorm.Expr("attempts + 1"),
		"last_error":    message,
		"last_tried_at": now,
		"updated_at":    now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payout failure")
	}
	updated, err := s.load(ctx, s.repo, payout.ID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout changed concurrently").
			WithDetails(map[string]any{"status": updated.Status})
	}
	s.logg.Warn(s.logg.WithFields(s.logg.WithPayoutID(ctx, payout.ID.String()), map[string]any{
		"attempts": updated.Attempts,
	}), "payout attempt failed: "+message)
	s.notify(ctx, enums.EventPayoutFailed, updated, actor)
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, actor auth.Actor, payoutID uuid.UUID) (*models.Payout, error) {
	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, "payout", payoutID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	payout, err := s.load(ctx, s.repo, payoutID)
	if err != nil {
		return nil, err
	}
	switch payout.Status {
	case enums.PayoutStatusCancelled:
		return payout, nil
	case enums.PayoutStatusPaid:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "paid payouts cannot be cancelled")
	}

	now := s.now()
	rows, err := s.repo.UpdateIfStatus(ctx, payout.ID, []enums.PayoutStatus{payout.Status}, map[string]any{
		"status":       enums.PayoutStatusCancelled,
		"cancelled_at": now,
		"updated_at":   now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel payout")
	}
	updated, err := s.load(ctx, s.repo, payout.ID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		if updated.Status == enums.PayoutStatusCancelled {
			return updated, nil
		}
		return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "payout is already %s", updated.Status)
	}
	s.logg.Info(s.logg.WithPayoutID(ctx, payout.ID.String()), "payout cancelled")
	s.notify(ctx, enums.EventPayoutCancelled, updated, actor)
	return updated, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, payoutID uuid.UUID) (*models.Payout, error) {
	payout, err := s.load(ctx, s.repo, payoutID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsAdmin(), actor.IsSystem():
		return payout, nil
	case actor.IsSupplier() && payout.SupplierID == actor.UserID:
		return payout, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payout not accessible")
}

func (s *service) List(ctx context.Context, actor auth.Actor, params ListParams) (*PayoutList, error) {
	filter := ListFilter{Status: params.Status, Limit: params.Pagination.Limit}
	switch {
	case actor.IsAdmin():
		filter.SupplierID = params.SupplierID
	case actor.IsSupplier():
		id := actor.UserID
		filter.SupplierID = &id
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "role cannot list payouts")
	}
	cursor, err := pagination.ParseCursor(params.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter.Cursor = cursor

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payouts")
	}
	page := pagination.Build(rows, filter.Limit, func(p models.Payout) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &page, nil
}

// RetryDue attempts failed payouts whose backoff elapsed and parks the ones
// out of attempts as exhausted.
func (s *service) RetryDue(ctx context.Context, limit int) (RetryReport, error) {
	if limit <= 0 {
		limit = 100
	}
	var report RetryReport
	rows, err := s.repo.ListByStatus(ctx, enums.PayoutStatusFailed, limit)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list failed payouts")
	}
	report.Scanned = len(rows)

	now := s.now()
	var errs error
	for i := range rows {
		payout := &rows[i]
		if s.policy.Exhausted(payout.Attempts) {
			ok, err := s.exhaust(ctx, payout)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("exhaust payout %s: %w", payout.ID, err))
			} else if ok {
				report.Exhausted++
			}
			continue
		}
		if !s.policy.Due(payout, now) {
			continue
		}
		report.Retried++
		paid, err := s.Release(ctx, auth.System(), payout.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("retry payout %s: %w", payout.ID, err))
			continue
		}
		if paid.Status == enums.PayoutStatusPaid {
			report.Paid++
		}
	}
	return report, errs
}

func (s *service) exhaust(ctx context.Context, payout *models.Payout) (bool, error) {
	rows, err := s.repo.UpdateIfStatus(ctx, payout.ID, []enums.PayoutStatus{enums.PayoutStatusFailed}, map[string]any{
		"status":     enums.PayoutStatusExhausted,
		"updated_at": s.now(),
	})
	if err != nil || rows == 0 {
		return false, err
	}
	updated, err := s.load(ctx, s.repo, payout.ID)
	if err != nil {
		return true, err
	}
	s.logg.Warn(s.logg.WithPayoutID(ctx, payout.ID.String()), "payout exhausted its transfer attempts")
	s.notify(ctx, enums.EventPayoutFailed, updated, auth.System())
	return true, nil
}

// Settle creates one payout per supplier and currency covering every
// completed, paid order share no live payout has claimed. Suppliers without
// a primary wallet are not candidates.
func (s *service) Settle(ctx context.Context, limit int) (SettleReport, error) {
	if limit <= 0 {
		limit = 500
	}
	var report SettleReport
	candidates, err := s.repo.SettlementCandidates(ctx, limit)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load settlement candidates")
	}

	type group struct {
		supplierID uuid.UUID
		shares     []OrderShare
		total      int64
	}
	groups := map[string]*group{}
	var keys []string
	for _, c := range candidates {
		if c.AmountCents <= 0 {
			continue
		}
		key := c.SupplierID.String() + "/" + strings.ToUpper(c.Currency)
		g, ok := groups[key]
		if !ok {
			g = &group{supplierID: c.SupplierID}
			groups[key] = g
			keys = append(keys, key)
		}
		g.shares = append(g.shares, OrderShare{OrderID: c.OrderID, AmountCents: c.AmountCents})
		g.total += c.AmountCents
	}
	sort.Strings(keys)

	var errs error
	suppliers := map[uuid.UUID]struct{}{}
	for _, key := range keys {
		g := groups[key]
		suppliers[g.supplierID] = struct{}{}
		_, err := s.Create(ctx, auth.System(), CreateInput{SupplierID: g.supplierID, Orders: g.shares, AmountCents: g.total})
		switch {
		case err == nil:
			report.Created++
		case pkgerrors.IsCode(err, pkgerrors.CodeValidation), pkgerrors.IsCode(err, pkgerrors.CodeConflict):
			report.Skipped++
			s.logg.Info(s.logg.WithField(ctx, "supplier_id", g.supplierID.String()), "settlement skipped: "+err.Error())
		default:
			errs = multierr.Append(errs, fmt.Errorf("settle supplier %s: %w", g.supplierID, err))
		}
	}
	report.Suppliers = len(suppliers)
	return report, errs
}

func (s *service) lock(ctx context.Context, parts ...string) (func(), error) {
	key := s.locker.LockKey(parts...)
	owner := uuid.NewString()
	ok, err := s.locker.AcquireLock(ctx, key, owner, s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire payout lock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout operation already in progress")
	}
	return func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, owner); err != nil {
			s.logg.Warn(ctx, "release payout lock: "+err.Error())
		}
	}, nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Payout, error) {
	payout, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payout")
	}
	return payout, nil
}

func (s *service) notify(ctx context.Context, eventType enums.OutboxEventType, payout *models.Payout, actor auth.Actor) {
	if s.notifier == nil {
		return
	}
	currency, _ := enums.ParseCurrency(payout.Currency)
	orderIDs := make([]uuid.UUID, 0, len(payout.Orders))
	for _, o := range payout.Orders {
		orderIDs = append(orderIDs, o.OrderID)
	}
	s.notifier.PayoutChanged(ctx, eventType, payloads.PayoutEvent{
		PayoutID:    payout.ID,
		SupplierID:  payout.SupplierID,
		Status:      payout.Status,
		AmountCents: payout.AmountCents,
		Currency:    currency,
		OrderIDs:    orderIDs,
		Attempts:    payout.Attempts,
		LastError:   payout.LastError,
		TransferRef: payout.TransferRef,
	}, &outbox.ActorRef{UserID: actor.IDPtr(), Role: actor.Role})
}

func (s *service) recordMetric(result string) {
	if s.metrics != nil {
		s.metrics.PayoutTransfer(result)
	}
}

func requireOperator(actor auth.Actor) error {
	if actor.IsAdmin() || actor.IsSystem() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
}

func validateCreate(input CreateInput) ([]uuid.UUID, error) {
	if input.SupplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	}
	if len(input.Orders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout needs at least one order")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Orders))
	ids := make([]uuid.UUID, 0, len(input.Orders))
	var sum int64
	for i, share := range input.Orders {
		if share.OrderID == uuid.Nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "orders[%d]: order id required", i)
		}
		if share.AmountCents <= 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "orders[%d]: amount must be positive", i)
		}
		if _, dup := seen[share.OrderID]; dup {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "order %s listed twice", share.OrderID)
		}
		seen[share.OrderID] = struct{}{}
		ids = append(ids, share.OrderID)
		sum += share.AmountCents
	}
	if sum != input.AmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount does not match its orders").
			WithDetails(map[string]any{"amount_cents": input.AmountCents, "orders_sum_cents": sum})
	}
	return ids, nil
}

func checkOrders(supplierID uuid.UUID, ids []uuid.UUID, rows []models.Order) (string, error) {
	byID := make(map[uuid.UUID]*models.Order, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	currency := ""
	for _, id := range ids {
		order, ok := byID[id]
		if !ok {
			return "", pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", id)
		}
		if order.Status != enums.OrderStatusCompleted {
			return "", pkgerrors.Newf(pkgerrors.CodeValidation, "order %s is not completed", id).
				WithDetails(map[string]any{"order_id": id, "status": order.Status})
		}
		if order.PaymentStatus != enums.PaymentStatusApproved {
			return "", pkgerrors.Newf(pkgerrors.CodeValidation, "order %s has no approved payment", id).
				WithDetails(map[string]any{"order_id": id, "payment_status": order.PaymentStatus})
		}
		if !order.HasSupplier(supplierID) {
			return "", pkgerrors.Newf(pkgerrors.CodeValidation, "order %s has no items from the supplier", id)
		}
		oc := strings.ToUpper(order.Currency)
		if currency == "" {
			currency = oc
		} else if currency != oc {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "payout orders must share one currency")
		}
	}
	return currency, nil
}

func destinationFrom(w *models.SupplierWallet) types.PayoutDestination {
	dest := types.PayoutDestination{
		WalletID:   w.ID.String(),
		Kind:       string(w.Kind),
		AccountRef: w.AccountRef,
	}
	if w.HolderName != nil {
		dest.HolderName = *w.HolderName
	}
	return dest
}

func upstream(err error) error {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeUpstream {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "payout transfer failed")
}

// truncate cuts s to limit bytes, backing off to the start of a rune so the
// stored text stays valid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
