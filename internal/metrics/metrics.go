package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the checkout flow
type Metrics struct {
	CheckoutIntents *prometheus.CounterVec
	Settlements     *prometheus.CounterVec
	RewardCoupons   *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CheckoutIntents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "intents_total",
			Help:      "Checkout intents by outcome.",
		}, []string{"outcome"}),
		Settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "settlements_total",
			Help:      "Payment settlements by outcome.",
		}, []string{"outcome"}),
		RewardCoupons: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "reward_coupons_total",
			Help:      "Reward coupon issuance attempts by result.",
		}, []string{"result"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checkout",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// NewNop returns collectors bound to a throwaway registry
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
