// Package metrics holds the prometheus collectors of the checkout service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

const namespace = "storefront"

type CheckoutMetrics struct {
	Validations     *prometheus.CounterVec
	Sessions        *prometheus.CounterVec
	Reasons         *prometheus.CounterVec
	ShopifyDuration *prometheus.HistogramVec
	ShopifyErrors   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg gets a private registry, so tests can build
// as many instances as they like.
func New(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &CheckoutMetrics{
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_validations_total",
			Help:      "Checkout validations by verdict.",
		}, []string{"valid"}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_total",
			Help:      "Checkout session attempts by outcome.",
		}, []string{"outcome"}),
		Reasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_reasons_total",
			Help:      "Checkout failure reasons by kind.",
		}, []string{"kind"}),
		ShopifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shopify_request_duration_seconds",
			Help:      "Commerce platform request latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"api", "operation"}),
		ShopifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shopify_request_errors_total",
			Help:      "Failed commerce platform requests.",
		}, []string{"api", "operation"}),
	}
	reg.MustRegister(m.Validations, m.Sessions, m.Reasons, m.ShopifyDuration, m.ShopifyErrors)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// ObserveShopifyRequest implements shopify.RequestObserver
func (m *CheckoutMetrics) ObserveShopifyRequest(api, operation string, elapsed time.Duration, err error) {
	m.ShopifyDuration.WithLabelValues(api, operation).Observe(elapsed.Seconds())
	if err != nil {
		m.ShopifyErrors.WithLabelValues(api, operation).Inc()
	}
}

// ObserveVerdict counts a validation and its reasons
func (m *CheckoutMetrics) ObserveVerdict(v *domain.CheckoutVerdict) {
	m.Validations.WithLabelValues(strconv.FormatBool(v.Valid)).Inc()
	m.observeReasons(v.Reasons)
}

// ObserveSession counts a createSession outcome
func (m *CheckoutMetrics) ObserveSession(outcome domain.CheckoutOutcome, rej *errors.Rejection) {
	m.Sessions.WithLabelValues(string(outcome)).Inc()
	if rej != nil {
		if len(rej.Reasons) == 0 {
			m.Reasons.WithLabelValues(string(rej.Kind)).Inc()
		}
		m.observeReasons(rej.Reasons)
	}
}

func (m *CheckoutMetrics) observeReasons(reasons []errors.Reason) {
	for _, r := range reasons {
		m.Reasons.WithLabelValues(string(r.Kind)).Inc()
	}
}

// Handler serves the registry the collectors were registered on
func (m *CheckoutMetrics) Handler() http.Handler {
	if m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
