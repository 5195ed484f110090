package tenancy

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository"
)

func testMarkets() domain.MarketTable {
	return domain.MarketTable{
		"FI": {Code: "FI", Supported: true, Currency: "EUR"},
		"DE": {Code: "DE", Supported: true, Currency: "EUR"},
		"US": {Code: "US", Supported: true, Currency: "USD"},
		"GB": {Code: "GB", Supported: false, Currency: "GBP"},
	}
}

func newTestResolver(t *testing.T, pins *MemoryPinStore) *Resolver {
	t.Helper()
	var store repository.SessionPinRepository
	if pins != nil {
		store = pins
	}
	r, err := NewResolver(config.TenancyConfig{
		DefaultTenant: "LUNA",
		DefaultMarket: "fi",
		Tenants:       []string{"Sol", "LUNA"},
	}, testMarkets(), store, nil)
	require.NoError(t, err)
	return r
}

func TestResolvePrecedence(t *testing.T) {
	r := newTestResolver(t, nil)

	tests := []struct {
		name   string
		meta   RequestMeta
		want   domain.StoreContext
		tenant Source
		market Source
	}{
		{
			name:   "defaults",
			meta:   RequestMeta{Path: "/"},
			want:   domain.StoreContext{Tenant: "LUNA", Market: "FI"},
			tenant: SourceDefault,
			market: SourceDefault,
		},
		{
			name:   "path tenant is case insensitive",
			meta:   RequestMeta{Path: "/sol/products/p1"},
			want:   domain.StoreContext{Tenant: "Sol", Market: "FI"},
			tenant: SourcePath,
			market: SourceDefault,
		},
		{
			name:   "unknown path segment falls back",
			meta:   RequestMeta{Path: "/terra/products"},
			want:   domain.StoreContext{Tenant: "LUNA", Market: "FI"},
			tenant: SourceDefault,
			market: SourceDefault,
		},
		{
			name:   "reserved sub-flow segment is not a tenant",
			meta:   RequestMeta{Path: "/cart", GeoCountry: "de"},
			want:   domain.StoreContext{Tenant: "LUNA", Market: "DE"},
			tenant: SourceDefault,
			market: SourceGeo,
		},
		{
			name:   "unsupported geo market falls back",
			meta:   RequestMeta{Path: "/sol", GeoCountry: "GB"},
			want:   domain.StoreContext{Tenant: "Sol", Market: "FI"},
			tenant: SourcePath,
			market: SourceDefault,
		},
		{
			name:   "unknown geo market falls back",
			meta:   RequestMeta{GeoCountry: "ZZ"},
			want:   domain.StoreContext{Tenant: "LUNA", Market: "FI"},
			tenant: SourceDefault,
			market: SourceDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(context.Background(), tt.meta)
			assert.Equal(t, tt.want, got.StoreContext)
			assert.Equal(t, tt.tenant, got.TenantSource)
			assert.Equal(t, tt.market, got.MarketSource)
			assert.NotEmpty(t, got.Tenant)
			assert.NotEmpty(t, got.Market)
		})
	}
}

func TestResolvePinsFirstResolution(t *testing.T) {
	pins := NewMemoryPinStore(time.Hour)
	r := newTestResolver(t, pins)
	ctx := context.Background()

	first := r.Resolve(ctx, RequestMeta{Path: "/sol/products/p1", SessionID: "s-1", GeoCountry: "DE"})
	assert.Equal(t, domain.StoreContext{Tenant: "Sol", Market: "DE"}, first.StoreContext)
	assert.Equal(t, SourcePath, first.TenantSource)

	// a different tenant path and geo within the same session do not drift
	again := r.Resolve(ctx, RequestMeta{Path: "/luna/products/p1", SessionID: "s-1", GeoCountry: "US"})
	assert.Equal(t, first.StoreContext, again.StoreContext)
	assert.Equal(t, SourcePinned, again.TenantSource)

	cart := r.Resolve(ctx, RequestMeta{Path: "/cart", SessionID: "s-1"})
	assert.Equal(t, first.StoreContext, cart.StoreContext)

	other := r.Resolve(ctx, RequestMeta{Path: "/luna", SessionID: "s-2"})
	assert.Equal(t, domain.StoreContext{Tenant: "LUNA", Market: "FI"}, other.StoreContext)
}

func TestResolveIsIdempotent(t *testing.T) {
	r := newTestResolver(t, NewMemoryPinStore(0))
	meta := RequestMeta{Path: "/sol", SessionID: "s-1", GeoCountry: "US"}

	first := r.Resolve(context.Background(), meta)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first.StoreContext, r.Resolve(context.Background(), meta).StoreContext)
	}
}

type failingPins struct{}

func (failingPins) GetPin(context.Context, string) (*domain.StoreContext, error) {
	return nil, stderrors.New("connection refused")
}

func (failingPins) PinIfAbsent(context.Context, string, domain.StoreContext) (domain.StoreContext, error) {
	return domain.StoreContext{}, stderrors.New("connection refused")
}

func TestResolveDegradesWhenPinStoreFails(t *testing.T) {
	r, err := NewResolver(config.TenancyConfig{DefaultTenant: "LUNA", DefaultMarket: "FI"}, testMarkets(), failingPins{}, nil)
	require.NoError(t, err)

	got := r.Resolve(context.Background(), RequestMeta{Path: "/luna", SessionID: "s-1", GeoCountry: "DE"})
	assert.Equal(t, domain.StoreContext{Tenant: "LUNA", Market: "DE"}, got.StoreContext)
}

func TestNewResolverValidatesDefaults(t *testing.T) {
	_, err := NewResolver(config.TenancyConfig{DefaultTenant: "LUNA", DefaultMarket: "GB"}, testMarkets(), nil, nil)
	assert.Error(t, err)

	_, err = NewResolver(config.TenancyConfig{DefaultMarket: "FI"}, testMarkets(), nil, nil)
	assert.Error(t, err)

	_, err = NewResolver(config.TenancyConfig{DefaultTenant: "LUNA", DefaultMarket: "FI", Tenants: []string{"cart"}}, testMarkets(), nil, nil)
	assert.Error(t, err)
}

func TestMemoryPinStoreExpiry(t *testing.T) {
	store := NewMemoryPinStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	got, err := store.PinIfAbsent(ctx, "s-1", domain.StoreContext{Tenant: "LUNA", Market: "FI"})
	require.NoError(t, err)
	assert.Equal(t, "FI", got.Market)

	got, err = store.PinIfAbsent(ctx, "s-1", domain.StoreContext{Tenant: "Sol", Market: "DE"})
	require.NoError(t, err)
	assert.Equal(t, domain.StoreContext{Tenant: "LUNA", Market: "FI"}, got)

	now = now.Add(2 * time.Minute)
	pin, err := store.GetPin(ctx, "s-1")
	require.NoError(t, err)
	assert.Nil(t, pin)
}
