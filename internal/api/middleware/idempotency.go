package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository"
)

const IdempotencyKeyHeader = "Idempotency-Key"

const (
	idempotencyExistingKey = "idempotency_existing"
	idempotencyNewKey      = "idempotency_key"
	idempotencyHashKey     = "idempotency_request_hash"
)

// IdempotencyMiddleware handles idempotency key validation. Keys are scoped to the
// resolved tenant, so it runs after StoreContextMiddleware. Without a key store it is a
// pass-through.
func IdempotencyMiddleware(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if repos == nil || repos.IdempotencyKey == nil || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		idempotencyKey := c.GetHeader(IdempotencyKeyHeader)
		if idempotencyKey == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.Error("Failed to read request body for idempotency", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process request"})
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		tenant := ""
		if sc, ok := GetStoreContext(c); ok {
			tenant = sc.Tenant
		}

		existing, err := repos.IdempotencyKey.GetByKey(c.Request.Context(), tenant, idempotencyKey)
		if err != nil {
			// the checkout still works, it just is not deduplicated
			logger.Warn("Failed to check idempotency key", zap.Error(err))
			c.Next()
			return
		}

		switch {
		case existing != nil && existing.RequestHash != requestHash:
			c.JSON(http.StatusConflict, gin.H{
				"error": "idempotency key conflict: same key used with different payload",
			})
			c.Abort()
			return
		case existing != nil && existing.Pending() && !existing.Abandoned(time.Now()):
			c.JSON(http.StatusConflict, gin.H{
				"error": "a request with this idempotency key is still in progress",
			})
			c.Abort()
			return
		case existing != nil && !existing.Pending():
			c.Set(idempotencyExistingKey, existing)
		default:
			c.Set(idempotencyNewKey, idempotencyKey)
			c.Set(idempotencyHashKey, requestHash)
		}

		c.Next()
	}
}

// GetIdempotencyInfo retrieves idempotency information from context. existing is set for a
// replay of a stored request; key and requestHash for a first use of a key (or the retry of
// an abandoned reservation).
func GetIdempotencyInfo(c *gin.Context) (key string, requestHash string, existing *domain.IdempotencyKey) {
	if val, ok := c.Get(idempotencyExistingKey); ok {
		if stored, ok := val.(*domain.IdempotencyKey); ok {
			return "", "", stored
		}
	}

	keyVal, _ := c.Get(idempotencyNewKey)
	hashVal, _ := c.Get(idempotencyHashKey)

	key, _ = keyVal.(string)
	requestHash, _ = hashVal.(string)

	return key, requestHash, nil
}
