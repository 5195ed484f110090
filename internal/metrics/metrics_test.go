package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

func TestCheckoutMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveVerdict(&domain.CheckoutVerdict{Valid: false, Reasons: []errors.Reason{
		{Kind: errors.KindOutOfStock},
		{Kind: errors.KindOutOfStock},
		{Kind: errors.KindMarketIneligible},
	}})
	m.ObserveVerdict(&domain.CheckoutVerdict{Valid: true})
	m.ObserveSession(domain.OutcomeRetry, errors.NewRejection(errors.KindUpstreamUnavailable, time.Second, "down", nil))
	m.ObserveSession(domain.OutcomeCreated, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Validations.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Reasons.WithLabelValues(string(errors.KindOutOfStock))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reasons.WithLabelValues(string(errors.KindUpstreamUnavailable))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues("retry")))
}

func TestObserveShopifyRequest(t *testing.T) {
	m := New(nil)
	m.ObserveShopifyRequest("storefront", "cartCreate", 120*time.Millisecond, nil)
	m.ObserveShopifyRequest("storefront", "cartCreate", time.Second, fmt.Errorf("HTTP 502"))

	assert.Equal(t, 1, testutil.CollectAndCount(m.ShopifyDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShopifyErrors.WithLabelValues("storefront", "cartCreate")))
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveSession(domain.OutcomeCreated, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storefront_checkout_sessions_total{outcome="created"} 1`)
}
