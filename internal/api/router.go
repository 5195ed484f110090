package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/api/handlers"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/api/middleware"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/config"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps handlers.CheckoutDeps, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Storefront Checkout API",
			"endpoints": []string{
				"GET /health",
				"GET /metrics",
				"POST /v1/checkout/validate",
				"POST /v1/checkout/sessions",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	metricsHandler := promhttp.Handler()
	if deps.Metrics != nil {
		metricsHandler = deps.Metrics.Handler()
	}
	router.GET("/metrics", gin.WrapH(metricsHandler))

	v1 := router.Group("/v1")
	{
		checkout := v1.Group("/checkout")
		checkout.Use(middleware.StoreContextMiddleware(deps.Tenancy, logger))
		{
			checkout.POST("/validate", handlers.HandleValidate(deps, logger))
			checkout.POST("/sessions", middleware.IdempotencyMiddleware(deps.Repos, logger), handlers.HandleCreateSession(deps, logger))
		}
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		}
		if sc, ok := middleware.GetStoreContext(c); ok {
			fields = append(fields, zap.String("tenant", sc.Tenant), zap.String("market", sc.Market))
		}
		logger.Info("HTTP request", fields...)
	}
}
