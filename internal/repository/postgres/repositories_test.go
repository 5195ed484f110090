package postgres

import (
	"context"
	stderrors "errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	apperrors "github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

func TestIdempotencyKeyRepository_GetByKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewIdempotencyKeyRepository(db, zap.NewNop())
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	columns := []string{"key", "tenant", "request_hash", "session_id", "redirect_url", "attempt_id", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM checkout_idempotency_keys")).
		WithArgs("LUNA", "k-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("k-1", "LUNA", "hash", "gid://shopify/Cart/1", "https://luna.example/c/1", "attempt-1", created))

	key, err := repo.GetByKey(ctx, "LUNA", "k-1")
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, "gid://shopify/Cart/1", key.SessionID)
	assert.Equal(t, created, key.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM checkout_idempotency_keys")).
		WithArgs("LUNA", "missing").
		WillReturnRows(sqlmock.NewRows(columns))

	key, err = repo.GetByKey(ctx, "LUNA", "missing")
	require.NoError(t, err)
	assert.Nil(t, key)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyKeyRepository_Reserve(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewIdempotencyKeyRepository(db, zap.NewNop())
	ctx := context.Background()
	reservedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	key := &domain.IdempotencyKey{
		Key:         "k-1",
		Tenant:      "LUNA",
		RequestHash: "hash",
		AttemptID:   "attempt-1",
		CreatedAt:   reservedAt,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO checkout_idempotency_keys")).
		WithArgs("k-1", "LUNA", "hash", "attempt-1", reservedAt, reservedAt.Add(-domain.IdempotencyReservationTimeout)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reserve(ctx, key))

	// a live reservation or a stored session leaves the row untouched
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (tenant, key) DO UPDATE")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Reserve(ctx, key)
	var conflict *apperrors.ErrConflict
	assert.True(t, stderrors.As(err, &conflict))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO checkout_idempotency_keys")).
		WillReturnError(stderrors.New("connection reset"))

	err = repo.Reserve(ctx, key)
	var upstream *apperrors.ErrUpstream
	assert.True(t, stderrors.As(err, &upstream))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyKeyRepository_Complete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewIdempotencyKeyRepository(db, zap.NewNop())
	ctx := context.Background()
	key := &domain.IdempotencyKey{
		Key:         "k-1",
		Tenant:      "LUNA",
		SessionID:   "gid://shopify/Cart/1",
		RedirectURL: "https://luna.example/c/1",
		AttemptID:   "attempt-1",
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE checkout_idempotency_keys")).
		WithArgs("LUNA", "k-1", "gid://shopify/Cart/1", "https://luna.example/c/1", "attempt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Complete(ctx, key))

	// another attempt took the reservation over
	mock.ExpectExec(regexp.QuoteMeta("UPDATE checkout_idempotency_keys")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Complete(ctx, key)
	var conflict *apperrors.ErrConflict
	assert.True(t, stderrors.As(err, &conflict))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyKeyRepository_Release(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewIdempotencyKeyRepository(db, zap.NewNop())
	key := &domain.IdempotencyKey{Key: "k-1", Tenant: "LUNA", AttemptID: "attempt-1"}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM checkout_idempotency_keys")).
		WithArgs("LUNA", "k-1", "attempt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Release(context.Background(), key))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyKey_Reservation(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	fresh := &domain.IdempotencyKey{AttemptID: "a", CreatedAt: now.Add(-time.Minute)}
	assert.True(t, fresh.Pending())
	assert.False(t, fresh.Abandoned(now))

	stale := &domain.IdempotencyKey{AttemptID: "a", CreatedAt: now.Add(-domain.IdempotencyReservationTimeout - time.Second)}
	assert.True(t, stale.Abandoned(now))

	done := &domain.IdempotencyKey{SessionID: "gid://shopify/Cart/1", CreatedAt: now.Add(-time.Hour)}
	assert.False(t, done.Pending())
	assert.False(t, done.Abandoned(now))
}

func TestCheckoutEventRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCheckoutEventRepository(db, zap.NewNop())
	event := &domain.CheckoutEvent{
		AttemptID: "attempt-1",
		Tenant:    "LUNA",
		Market:    "DE",
		Outcome:   string(domain.OutcomeRejected),
		Detail: domain.CheckoutEventDetail{
			Kind:    apperrors.KindOutOfStock,
			Message: "cart failed validation",
		},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO checkout_events")).
		WithArgs(sqlmock.AnyArg(), "attempt-1", "LUNA", "DE", "rejected", nil,
			[]byte(`{"kind":"OutOfStock","message":"cart failed validation"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEqual(t, uuid.Nil, event.ID)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO checkout_events")).
		WillReturnError(stderrors.New("connection reset"))

	err = repo.Create(context.Background(), &domain.CheckoutEvent{AttemptID: "attempt-2"})
	var upstream *apperrors.ErrUpstream
	assert.True(t, stderrors.As(err, &upstream))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutEventRepository_ListByAttemptID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCheckoutEventRepository(db, zap.NewNop())
	id := uuid.New()
	now := time.Now().UTC()

	retry := []byte(`{"kind":"IndexingDelay","message":"items are not yet visible to checkout",` +
		`"reasons":[{"kind":"IndexingDelay","lineIndex":1,"productId":"P1","variantId":"V2",` +
		`"platformVariantRef":"gid://shopify/ProductVariant/2","message":"not yet available"}]}`)
	created := []byte(`{"redirectUrl":"https://luna.example/c/1",` +
		`"lines":[{"platformVariantRef":"gid://shopify/ProductVariant/2","quantity":1}]}`)

	mock.ExpectQuery(regexp.QuoteMeta("FROM checkout_events")).
		WithArgs("attempt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "attempt_id", "tenant", "market", "outcome", "session_id", "event_data", "created_at"}).
			AddRow(id.String(), "attempt-1", "LUNA", "DE", "retry", nil, retry, now).
			AddRow(uuid.New().String(), "attempt-1", "LUNA", "DE", "created", "gid://shopify/Cart/1", created, now).
			AddRow(uuid.New().String(), "attempt-1", "LUNA", "DE", "rejected", nil, nil, now))

	events, err := repo.ListByAttemptID(context.Background(), "attempt-1")
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, id, events[0].ID)
	assert.Nil(t, events[0].SessionID)
	assert.Equal(t, apperrors.KindIndexingDelay, events[0].Detail.Kind)
	require.Len(t, events[0].Detail.Reasons, 1)
	assert.Equal(t, apperrors.Reason{
		Kind:               apperrors.KindIndexingDelay,
		LineIndex:          1,
		ProductID:          "P1",
		VariantID:          "V2",
		PlatformVariantRef: "gid://shopify/ProductVariant/2",
		Message:            "not yet available",
	}, events[0].Detail.Reasons[0])

	require.NotNil(t, events[1].SessionID)
	assert.Equal(t, "gid://shopify/Cart/1", *events[1].SessionID)
	assert.Equal(t, "https://luna.example/c/1", events[1].Detail.RedirectURL)
	assert.Equal(t, []domain.SessionLine{{PlatformVariantRef: "gid://shopify/ProductVariant/2", Quantity: 1}}, events[1].Detail.Lines)

	assert.Equal(t, domain.CheckoutEventDetail{}, events[2].Detail)

	assert.NoError(t, mock.ExpectationsWereMet())
}
