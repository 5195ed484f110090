package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

type checkoutEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCheckoutEventRepository creates the audit trail of createSession outcomes
func NewCheckoutEventRepository(db *sql.DB, logger *zap.Logger) *checkoutEventRepository {
	return &checkoutEventRepository{
		db:     db,
		logger: logger,
	}
}

func (r *checkoutEventRepository) Create(ctx context.Context, event *domain.CheckoutEvent) error {
	query := `
		INSERT INTO checkout_events (id, attempt_id, tenant, market, outcome, session_id, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("encode checkout event detail: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		event.ID,
		event.AttemptID,
		event.Tenant,
		event.Market,
		event.Outcome,
		event.SessionID,
		detail,
		event.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create checkout event",
			zap.String("attempt_id", event.AttemptID),
			zap.String("outcome", event.Outcome),
			zap.Error(err))
		return &errors.ErrUpstream{Service: "database", Err: err}
	}

	return nil
}

// ListByAttemptID returns the outcomes recorded for one checkout attempt, oldest first.
// Rows written before a detail existed come back with an empty Detail.
func (r *checkoutEventRepository) ListByAttemptID(ctx context.Context, attemptID string) ([]*domain.CheckoutEvent, error) {
	query := `
		SELECT id, attempt_id, tenant, market, outcome, session_id, event_data, created_at
		FROM checkout_events
		WHERE attempt_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, attemptID)
	if err != nil {
		r.logger.Error("Failed to list checkout events", zap.String("attempt_id", attemptID), zap.Error(err))
		return nil, &errors.ErrUpstream{Service: "database", Err: err}
	}
	defer rows.Close()

	var events []*domain.CheckoutEvent
	for rows.Next() {
		var (
			event     domain.CheckoutEvent
			sessionID sql.NullString
			detail    []byte
		)
		if err := rows.Scan(
			&event.ID,
			&event.AttemptID,
			&event.Tenant,
			&event.Market,
			&event.Outcome,
			&sessionID,
			&detail,
			&event.CreatedAt,
		); err != nil {
			return nil, &errors.ErrUpstream{Service: "database", Err: err}
		}

		if sessionID.Valid {
			event.SessionID = &sessionID.String
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &event.Detail); err != nil {
				return nil, fmt.Errorf("decode detail of checkout event %s: %w", event.ID, err)
			}
		}

		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrUpstream{Service: "database", Err: err}
	}

	return events, nil
}
