package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository"
)

// NewRepositories fills the database-backed members of repos
func NewRepositories(db *sql.DB, repos *repository.Repositories, logger *zap.Logger) *repository.Repositories {
	if repos == nil {
		repos = &repository.Repositories{}
	}
	repos.IdempotencyKey = NewIdempotencyKeyRepository(db, logger)
	repos.CheckoutEvent = NewCheckoutEventRepository(db, logger)
	return repos
}
