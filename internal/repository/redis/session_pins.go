package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

const keyPrefix = "storefront:pin:"

// discardPinScript deletes a pin only while it still holds the value that failed to decode,
// so a valid pin written in the meantime survives.
var discardPinScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// pinStore is the part of the Redis client the repository uses
type pinStore interface {
	redis.Scripter
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

type sessionPinRepository struct {
	client pinStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewClient creates a Redis client for cfg
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewSessionPinRepository stores pinned store contexts. A pin lives ttl from the moment
// it was written.
func NewSessionPinRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *sessionPinRepository {
	return newSessionPinRepository(client, ttl, logger)
}

func newSessionPinRepository(client pinStore, ttl time.Duration, logger *zap.Logger) *sessionPinRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sessionPinRepository{client: client, ttl: ttl, logger: logger}
}

func pinKey(sessionID string) string {
	return keyPrefix + sessionID
}

func (r *sessionPinRepository) GetPin(ctx context.Context, sessionID string) (*domain.StoreContext, error) {
	raw, err := r.client.Get(ctx, pinKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, &errors.ErrUpstream{Service: "session store", Err: err}
	}
	sc, err := decodePin(raw)
	if err != nil {
		// left in place it would block every later SETNX for the session
		r.logger.Warn("Discarding unreadable session pin", zap.String("session_id", sessionID), zap.Error(err))
		if err := discardPinScript.Run(ctx, r.client, []string{pinKey(sessionID)}, string(raw)).Err(); err != nil {
			r.logger.Warn("Failed to delete unreadable session pin", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, nil
	}
	return sc, nil
}

// PinIfAbsent uses SETNX so an existing pin is never overwritten. When another request
// won the race the stored pin is returned instead of sc.
func (r *sessionPinRepository) PinIfAbsent(ctx context.Context, sessionID string, sc domain.StoreContext) (domain.StoreContext, error) {
	payload, err := json.Marshal(sc)
	if err != nil {
		return domain.StoreContext{}, err
	}

	// a pin that expires between SETNX and GET is written on the second pass
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.client.SetNX(ctx, pinKey(sessionID), payload, r.ttl).Result()
		if err != nil {
			return domain.StoreContext{}, &errors.ErrUpstream{Service: "session store", Err: err}
		}
		if ok {
			return sc, nil
		}
		existing, err := r.GetPin(ctx, sessionID)
		if err != nil {
			return domain.StoreContext{}, err
		}
		if existing != nil {
			return *existing, nil
		}
	}
	return domain.StoreContext{}, fmt.Errorf("session pin for %s could not be written", sessionID)
}

func decodePin(raw []byte) (*domain.StoreContext, error) {
	var sc domain.StoreContext
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, err
	}
	if sc.Tenant == "" || sc.Market == "" {
		return nil, fmt.Errorf("incomplete pin %q", raw)
	}
	return &sc, nil
}
