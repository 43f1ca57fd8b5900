// Package paymentlog keeps the append-only audit trail of every exchange with
// a payment processor: webhooks, checkout preferences, OAuth and transfers.
package paymentlog

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

const maxErrorLength = 2048

// Entry describes one processor exchange. Request and Response may be any
// JSON-encodable value or raw JSON bytes.
type Entry struct {
	Kind       enums.PaymentLogKind
	Provider   enums.PaymentProvider
	Reference  string
	OrderID    *uuid.UUID
	PayoutID   *uuid.UUID
	SupplierID *uuid.UUID
	Request    any
	Response   any
	Err        error
}

// Recorder appends entries. Record returns the storage error so callers
// decide whether logging is best-effort; Append logs and swallows it.
type Recorder struct {
	repo Repository
	logg *logger.Logger
}

func NewRecorder(repo Repository, logg *logger.Logger) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment log repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Recorder{repo: repo, logg: logg}, nil
}

// Record inserts the entry, inside tx when one is given.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.PaymentLog, error) {
	if !entry.Kind.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment log kind %q", entry.Kind)
	}
	row := &models.PaymentLog{
		Kind:       entry.Kind,
		Provider:   entry.Provider,
		Reference:  strings.TrimSpace(entry.Reference),
		OrderID:    entry.OrderID,
		PayoutID:   entry.PayoutID,
		SupplierID: entry.SupplierID,
		Request:    types.MustRawJSON(entry.Request),
		Response:   types.MustRawJSON(entry.Response),
		Success:    entry.Err == nil,
	}
	if row.Provider == "" {
		row.Provider = enums.PaymentProviderSquare
	}
	if entry.Err != nil {
		msg := entry.Err.Error()
		if len(msg) > maxErrorLength {
			cut := maxErrorLength
			for cut > 0 && !utf8.RuneStart(msg[cut]) {
				cut--
			}
			msg = msg[:cut]
		}
		row.ErrorMessage = &msg
	}
	if err := r.repo.WithTx(tx).Insert(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// Append is the best-effort form of Record used on processor paths.
func (r *Recorder) Append(ctx context.Context, entry Entry) {
	if r == nil {
		return
	}
	if _, err := r.Record(ctx, nil, entry); err != nil {
		r.logg.Error(r.logg.WithFields(ctx, map[string]any{
			"payment_log_kind": entry.Kind,
			"reference":        entry.Reference,
		}), "payment log append failed", err)
	}
}

// CountForOrder reports how many entries of kind reference orderID.
func (r *Recorder) CountForOrder(ctx context.Context, kind enums.PaymentLogKind, orderID uuid.UUID) (int64, error) {
	return r.repo.CountForOrder(ctx, kind, orderID)
}

// ListParams is the admin query.
type ListParams struct {
	Kind       string
	Reference  string
	OrderID    *uuid.UUID
	PayoutID   *uuid.UUID
	Pagination pagination.Params
}

// List returns entries newest first.
func (r *Recorder) List(ctx context.Context, params ListParams) (*pagination.Page[models.PaymentLog], error) {
	filter := ListFilter{
		Reference: strings.TrimSpace(params.Reference),
		OrderID:   params.OrderID,
		PayoutID:  params.PayoutID,
		Limit:     params.Pagination.Limit,
	}
	if params.Kind != "" {
		kind, err := enums.ParsePaymentLogKind(params.Kind)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind filter")
		}
		filter.Kind = &kind
	}
	cursor, err := pagination.ParseCursor(params.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter.Cursor = cursor

	rows, err := r.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payment logs")
	}
	page := pagination.Build(rows, filter.Limit, func(l models.PaymentLog) pagination.Cursor {
		return pagination.Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
	})
	return &page, nil
}
