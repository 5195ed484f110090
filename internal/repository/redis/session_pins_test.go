package redis

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	apperrors "github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

func TestDecodePin(t *testing.T) {
	sc, err := decodePin([]byte(`{"tenant":"LUNA","market":"DE"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.StoreContext{Tenant: "LUNA", Market: "DE"}, *sc)

	_, err = decodePin([]byte(`{"tenant":"LUNA"}`))
	assert.Error(t, err)

	_, err = decodePin([]byte(`LUNA|DE`))
	assert.Error(t, err)
}

func TestUnreachableStoreIsUpstream(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	repo := NewSessionPinRepository(client, time.Hour, nil)

	_, err := repo.PinIfAbsent(context.Background(), "s-1", domain.StoreContext{Tenant: "LUNA", Market: "FI"})
	var upstream *apperrors.ErrUpstream
	assert.True(t, stderrors.As(err, &upstream))

	_, err = repo.GetPin(context.Background(), "s-1")
	assert.True(t, stderrors.As(err, &upstream))
}

func TestPinKey(t *testing.T) {
	assert.Equal(t, "storefront:pin:abc", pinKey("abc"))
}

// memoryPinStore answers the commands the repository sends; the discard script is applied
// as compare-and-delete.
type memoryPinStore struct {
	redis.Scripter
	mu    sync.Mutex
	data  map[string]string
	evals int
}

func newMemoryPinStore() *memoryPinStore {
	return &memoryPinStore{data: map[string]string{}}
}

func (m *memoryPinStore) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryPinStore) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = string(value.([]byte))
	return redis.NewBoolResult(true, nil)
}

func (m *memoryPinStore) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evals++
	if cur, ok := m.data[keys[0]]; ok && cur == args[0] {
		delete(m.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestGetPinDiscardsUnreadablePin(t *testing.T) {
	store := newMemoryPinStore()
	store.data[pinKey("s-1")] = `{"tenant":"LUNA"}`
	repo := newSessionPinRepository(store, time.Hour, nil)

	sc, err := repo.GetPin(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Nil(t, sc)
	assert.Equal(t, 1, store.evals)
	assert.NotContains(t, store.data, pinKey("s-1"))
}

func TestPinIfAbsentReplacesUnreadablePin(t *testing.T) {
	store := newMemoryPinStore()
	store.data[pinKey("s-1")] = `LUNA|DE`
	repo := newSessionPinRepository(store, time.Hour, nil)

	want := domain.StoreContext{Tenant: "SOL", Market: "FI"}
	got, err := repo.PinIfAbsent(context.Background(), "s-1", want)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	pinned, err := repo.GetPin(context.Background(), "s-1")
	require.NoError(t, err)
	require.NotNil(t, pinned)
	assert.Equal(t, want, *pinned)
}

func TestPinIfAbsentKeepsExistingPin(t *testing.T) {
	store := newMemoryPinStore()
	repo := newSessionPinRepository(store, time.Hour, nil)
	first := domain.StoreContext{Tenant: "LUNA", Market: "DE"}

	got, err := repo.PinIfAbsent(context.Background(), "s-1", first)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = repo.PinIfAbsent(context.Background(), "s-1", domain.StoreContext{Tenant: "SOL", Market: "FI"})
	require.NoError(t, err)
	assert.Equal(t, first, got)
	assert.Zero(t, store.evals)
}
