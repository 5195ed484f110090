package postgres

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

type idempotencyKeyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIdempotencyKeyRepository creates a new idempotency key repository
func NewIdempotencyKeyRepository(db *sql.DB, logger *zap.Logger) *idempotencyKeyRepository {
	return &idempotencyKeyRepository{
		db:     db,
		logger: logger,
	}
}

func (r *idempotencyKeyRepository) GetByKey(ctx context.Context, tenant, key string) (*domain.IdempotencyKey, error) {
	query := `
		SELECT key, tenant, request_hash, session_id, redirect_url, attempt_id, created_at
		FROM checkout_idempotency_keys
		WHERE tenant = $1 AND key = $2
	`

	var idempotencyKey domain.IdempotencyKey

	err := r.db.QueryRowContext(ctx, query, tenant, key).Scan(
		&idempotencyKey.Key,
		&idempotencyKey.Tenant,
		&idempotencyKey.RequestHash,
		&idempotencyKey.SessionID,
		&idempotencyKey.RedirectURL,
		&idempotencyKey.AttemptID,
		&idempotencyKey.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get idempotency key", zap.Error(err))
		return nil, &errors.ErrUpstream{Service: "database", Err: err}
	}

	return &idempotencyKey, nil
}

func (r *idempotencyKeyRepository) Reserve(ctx context.Context, key *domain.IdempotencyKey) error {
	// an abandoned reservation (no session, older than the timeout) is taken over in place
	query := `
		INSERT INTO checkout_idempotency_keys (key, tenant, request_hash, session_id, redirect_url, attempt_id, created_at)
		VALUES ($1, $2, $3, '', '', $4, $5)
		ON CONFLICT (tenant, key) DO UPDATE
		SET request_hash = EXCLUDED.request_hash,
			attempt_id = EXCLUDED.attempt_id,
			created_at = EXCLUDED.created_at
		WHERE checkout_idempotency_keys.session_id = ''
			AND checkout_idempotency_keys.created_at < $6
	`

	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	staleBefore := key.CreatedAt.Add(-domain.IdempotencyReservationTimeout)

	result, err := r.db.ExecContext(ctx, query,
		key.Key,
		key.Tenant,
		key.RequestHash,
		key.AttemptID,
		key.CreatedAt,
		staleBefore,
	)
	if err != nil {
		r.logger.Error("Failed to reserve idempotency key", zap.Error(err))
		return &errors.ErrUpstream{Service: "database", Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return &errors.ErrUpstream{Service: "database", Err: err}
	}
	if rows == 0 {
		return &errors.ErrConflict{Message: "idempotency key is in use"}
	}
	return nil
}

func (r *idempotencyKeyRepository) Complete(ctx context.Context, key *domain.IdempotencyKey) error {
	query := `
		UPDATE checkout_idempotency_keys
		SET session_id = $3, redirect_url = $4
		WHERE tenant = $1 AND key = $2 AND attempt_id = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		key.Tenant,
		key.Key,
		key.SessionID,
		key.RedirectURL,
		key.AttemptID,
	)
	if err != nil {
		r.logger.Error("Failed to complete idempotency key", zap.Error(err))
		return &errors.ErrUpstream{Service: "database", Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return &errors.ErrUpstream{Service: "database", Err: err}
	}
	if rows == 0 {
		return &errors.ErrConflict{Message: "idempotency key reservation was taken over"}
	}
	return nil
}

func (r *idempotencyKeyRepository) Release(ctx context.Context, key *domain.IdempotencyKey) error {
	query := `
		DELETE FROM checkout_idempotency_keys
		WHERE tenant = $1 AND key = $2 AND attempt_id = $3 AND session_id = ''
	`

	if _, err := r.db.ExecContext(ctx, query, key.Tenant, key.Key, key.AttemptID); err != nil {
		r.logger.Error("Failed to release idempotency key", zap.Error(err))
		return &errors.ErrUpstream{Service: "database", Err: err}
	}
	return nil
}
