// Package tenancy derives the (tenant, market) pair a request runs under.
package tenancy

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/repository"
)

// reservedSegments are checkout sub-flow paths; they never name a tenant.
var reservedSegments = map[string]struct{}{
	"cart":     {},
	"checkout": {},
	"account":  {},
	"orders":   {},
}

// RequestMeta is the request metadata the resolver reads.
type RequestMeta struct {
	Path       string
	SessionID  string
	GeoCountry string
}

// Source names the precedence rule that produced a context value
type Source string

const (
	SourcePinned  Source = "pinned"
	SourcePath    Source = "path"
	SourceGeo     Source = "geo"
	SourceDefault Source = "default"
)

// Resolution is a resolved context plus where each half came from
type Resolution struct {
	domain.StoreContext
	TenantSource Source
	MarketSource Source
}

type Resolver struct {
	tenants  map[string]string
	markets  domain.MarketTable
	defaults domain.StoreContext
	pins     repository.SessionPinRepository
	logger   *zap.Logger
}

// NewResolver creates a resolver. The default tenant is always a known tenant and the
// default market must be a supported market. pins may be nil (no session pinning).
func NewResolver(cfg config.TenancyConfig, markets domain.MarketTable, pins repository.SessionPinRepository, logger *zap.Logger) (*Resolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.DefaultTenant) == "" {
		return nil, fmt.Errorf("default tenant is required")
	}
	defaultMarket := domain.NormalizeMarketCode(cfg.DefaultMarket)
	if m, ok := markets.Lookup(defaultMarket); !ok || !m.Supported {
		return nil, fmt.Errorf("default market %q is not a supported market", cfg.DefaultMarket)
	}

	tenants := make(map[string]string, len(cfg.Tenants)+1)
	for _, t := range append([]string{cfg.DefaultTenant}, cfg.Tenants...) {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, reserved := reservedSegments[strings.ToLower(t)]; reserved {
			return nil, fmt.Errorf("tenant code %q collides with a reserved path segment", t)
		}
		tenants[strings.ToUpper(t)] = t
	}

	return &Resolver{
		tenants:  tenants,
		markets:  markets,
		defaults: domain.StoreContext{Tenant: strings.TrimSpace(cfg.DefaultTenant), Market: defaultMarket},
		pins:     pins,
		logger:   logger,
	}, nil
}

// Resolve returns (tenant, market), both non-empty. Precedence: a value pinned to the
// session, the path tenant segment, the geolocation market, the static defaults.
// The first resolution of a session is pinned and is never overwritten afterwards, so
// sub-flows such as /cart keep the pinned tenant whatever their path says.
func (r *Resolver) Resolve(ctx context.Context, meta RequestMeta) Resolution {
	if meta.SessionID != "" && r.pins != nil {
		pinned, err := r.pins.GetPin(ctx, meta.SessionID)
		if err != nil {
			r.logger.Warn("Session pin lookup failed, deriving context", zap.Error(err))
		} else if pinned != nil {
			return Resolution{StoreContext: *pinned, TenantSource: SourcePinned, MarketSource: SourcePinned}
		}
	}

	res := r.derive(meta)

	if meta.SessionID != "" && r.pins != nil {
		stored, err := r.pins.PinIfAbsent(ctx, meta.SessionID, res.StoreContext)
		if err != nil {
			r.logger.Warn("Failed to pin session context", zap.String("session_id", meta.SessionID), zap.Error(err))
			return res
		}
		if stored != res.StoreContext {
			// another request pinned first
			return Resolution{StoreContext: stored, TenantSource: SourcePinned, MarketSource: SourcePinned}
		}
	}
	return res
}

func (r *Resolver) derive(meta RequestMeta) Resolution {
	res := Resolution{
		StoreContext: r.defaults,
		TenantSource: SourceDefault,
		MarketSource: SourceDefault,
	}
	if tenant, ok := r.tenantFromPath(meta.Path); ok {
		res.Tenant = tenant
		res.TenantSource = SourcePath
	}
	if geo := domain.NormalizeMarketCode(meta.GeoCountry); geo != "" {
		if m, ok := r.markets.Lookup(geo); ok && m.Supported {
			res.Market = m.Code
			res.MarketSource = SourceGeo
		}
	}
	return res
}

func (r *Resolver) tenantFromPath(path string) (string, bool) {
	for _, seg := range strings.Split(path, "/") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if _, reserved := reservedSegments[strings.ToLower(seg)]; reserved {
			return "", false
		}
		tenant, ok := r.tenants[strings.ToUpper(seg)]
		return tenant, ok
	}
	return "", false
}

// Known reports whether tenant is a configured tenant, returning its canonical code
func (r *Resolver) Known(tenant string) (string, bool) {
	t, ok := r.tenants[strings.ToUpper(strings.TrimSpace(tenant))]
	return t, ok
}
