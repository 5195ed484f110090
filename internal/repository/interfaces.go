package repository

import (
	"context"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
)

// CatalogRepository reads tenant-scoped product and variant records from the catalog store.
// A missing record is returned as *errors.ErrNotFound; store failures as *errors.ErrUpstream.
type CatalogRepository interface {
	GetProduct(ctx context.Context, tenant, productID string) (*domain.Product, error)
	GetVariant(ctx context.Context, tenant, productID, variantID string) (*domain.Variant, error)
	ListVariants(ctx context.Context, tenant, productID string) ([]*domain.Variant, error)
}

// IdempotencyKeyRepository defines idempotency key data access methods
type IdempotencyKeyRepository interface {
	// GetByKey returns nil, nil when the key was never stored
	GetByKey(ctx context.Context, tenant, key string) (*domain.IdempotencyKey, error)
	// Reserve claims the key before the session exists. A key held by a live reservation or
	// a stored session returns *errors.ErrConflict; an abandoned reservation is taken over.
	Reserve(ctx context.Context, key *domain.IdempotencyKey) error
	// Complete records the created session on the caller's reservation
	Complete(ctx context.Context, key *domain.IdempotencyKey) error
	// Release drops the caller's reservation when its attempt created no session
	Release(ctx context.Context, key *domain.IdempotencyKey) error
}

// CheckoutEventRepository defines checkout audit event data access methods
type CheckoutEventRepository interface {
	Create(ctx context.Context, event *domain.CheckoutEvent) error
	ListByAttemptID(ctx context.Context, attemptID string) ([]*domain.CheckoutEvent, error)
}

// SessionPinRepository stores the (tenant, market) pinned to a storefront session.
type SessionPinRepository interface {
	// GetPin returns nil, nil when the session has no pin
	GetPin(ctx context.Context, sessionID string) (*domain.StoreContext, error)
	// PinIfAbsent writes sc only when no pin exists and returns the pin in effect afterwards
	PinIfAbsent(ctx context.Context, sessionID string, sc domain.StoreContext) (domain.StoreContext, error)
}

// Repositories aggregates all repositories. IdempotencyKey and CheckoutEvent are nil
// when no database is configured.
type Repositories struct {
	Catalog        CatalogRepository
	IdempotencyKey IdempotencyKeyRepository
	CheckoutEvent  CheckoutEventRepository
	SessionPin     SessionPinRepository
}
