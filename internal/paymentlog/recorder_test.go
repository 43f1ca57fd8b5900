package paymentlog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

func TestRecordStoresSnapshotsAndFailure(t *testing.T) {
	conn := dbtest.Open(t)
	recorder, err := NewRecorder(NewRepository(conn), nil)
	require.NoError(t, err)

	orderID := uuid.New()
	raw := []byte(`{"type":"payment.updated","data":{"id":"pay_1"}}`)
	row, err := recorder.Record(context.Background(), nil, Entry{
		Kind:      enums.PaymentLogKindWebhook,
		Reference: " pay_1 ",
		OrderID:   &orderID,
		Request:   raw,
		Response:  map[string]string{"status": "COMPLETED"},
		Err:       errors.New("order already cancelled"),
	})
	require.NoError(t, err)

	var stored models.PaymentLog
	require.NoError(t, conn.First(&stored, "id = ?", row.ID).Error)
	assert.Equal(t, "pay_1", stored.Reference)
	assert.Equal(t, enums.PaymentProviderSquare, stored.Provider)
	assert.False(t, stored.Success)
	require.NotNil(t, stored.ErrorMessage)
	assert.JSONEq(t, string(raw), string(stored.Request))

	var response map[string]string
	require.NoError(t, json.Unmarshal(stored.Response, &response))
	assert.Equal(t, "COMPLETED", response["status"])
}

func TestRecordRejectsUnknownKind(t *testing.T) {
	recorder, err := NewRecorder(NewRepository(dbtest.Open(t)), nil)
	require.NoError(t, err)

	_, err = recorder.Record(context.Background(), nil, Entry{Kind: "refund"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRecordKeepsLongErrorsValidUTF8(t *testing.T) {
	recorder, err := NewRecorder(NewRepository(dbtest.Open(t)), nil)
	require.NoError(t, err)

	orderID := uuid.New()
	cause := errors.New("x" + strings.Repeat("ü", maxErrorLength))
	row, err := recorder.Record(context.Background(), nil, Entry{Kind: enums.PaymentLogKindReconciliation, Reference: "pay-1", OrderID: &orderID, Err: cause})
	require.NoError(t, err)

	require.NotNil(t, row.ErrorMessage)
	assert.LessOrEqual(t, len(*row.ErrorMessage), maxErrorLength)
	assert.True(t, utf8.ValidString(*row.ErrorMessage))
	assert.True(t, strings.HasPrefix(cause.Error(), *row.ErrorMessage))
	assert.False(t, row.Success)
}

func TestEntriesCannotBeMutated(t *testing.T) {
	conn := dbtest.Open(t)
	recorder, err := NewRecorder(NewRepository(conn), nil)
	require.NoError(t, err)

	row, err := recorder.Record(context.Background(), nil, Entry{Kind: enums.PaymentLogKindPreference, Reference: "pl_1"})
	require.NoError(t, err)

	assert.ErrorIs(t, conn.Model(row).Update("success", false).Error, models.ErrAppendOnly)
	assert.ErrorIs(t, conn.Delete(row).Error, models.ErrAppendOnly)
}

func TestListFiltersAndPaginates(t *testing.T) {
	conn := dbtest.Open(t)
	recorder, err := NewRecorder(NewRepository(conn), nil)
	require.NoError(t, err)
	ctx := context.Background()

	payoutID := uuid.New()
	for i := 0; i < 3; i++ {
		recorder.Append(ctx, Entry{Kind: enums.PaymentLogKindPayoutAttempt, Provider: enums.PaymentProviderStripe, Reference: "tr", PayoutID: &payoutID})
	}
	recorder.Append(ctx, Entry{Kind: enums.PaymentLogKindWebhook, Reference: "pay"})

	first, err := recorder.List(ctx, ListParams{Kind: "payout_attempt", Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	rest, err := recorder.List(ctx, ListParams{PayoutID: &payoutID, Pagination: pagination.Params{Limit: 2, Cursor: first.NextCursor}})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)
	assert.Empty(t, rest.NextCursor)

	_, err = recorder.List(ctx, ListParams{Kind: "bogus"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
