package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/tenancy"
)

const (
	SessionCookie = "storefront_session"
	// StorefrontPathHeader carries the storefront page path the call was made from
	StorefrontPathHeader = "X-Storefront-Path"
	GeoCountryHeader     = "X-Geo-Country"
	// cdnGeoHeader is set by Cloudflare in front of the storefront
	cdnGeoHeader = "CF-IPCountry"

	storeContextKey = "store_context"
	sessionMaxAge   = 30 * 24 * 60 * 60
)

// StoreContextMiddleware resolves (tenant, market) for the request and issues the session
// cookie on first contact.
func StoreContextMiddleware(resolver *tenancy.Resolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(SessionCookie)
		if err != nil || sessionID == "" {
			sessionID = uuid.NewString()
			secure := c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https")
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sessionID, sessionMaxAge, "/", "", secure, true)
		}

		geo := c.GetHeader(GeoCountryHeader)
		if geo == "" {
			geo = c.GetHeader(cdnGeoHeader)
		}

		res := resolver.Resolve(c.Request.Context(), tenancy.RequestMeta{
			Path:       c.GetHeader(StorefrontPathHeader),
			SessionID:  sessionID,
			GeoCountry: geo,
		})
		logger.Debug("Store context resolved",
			zap.String("tenant", res.Tenant),
			zap.String("market", res.Market),
			zap.String("tenant_source", string(res.TenantSource)),
			zap.String("market_source", string(res.MarketSource)),
		)

		c.Set(storeContextKey, res)
		c.Next()
	}
}

// GetStoreContext retrieves the resolved context
func GetStoreContext(c *gin.Context) (tenancy.Resolution, bool) {
	val, exists := c.Get(storeContextKey)
	if !exists {
		return tenancy.Resolution{}, false
	}
	res, ok := val.(tenancy.Resolution)
	return res, ok
}
