package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_redemptions_total",
			Help: "Redemption attempts by outcome (success/expired/limit_reached/...).",
		},
		[]string{"outcome"},
	)

	redeemLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coupon_redeem_latency_ms",
			Help:    "Redemption request latency distribution in milliseconds.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 200, 400, 800},
		},
	)

	issuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupons_issued_total",
			Help: "Coupons created by source (admin/purchase/clone).",
		},
		[]string{"source"},
	)

	issuancePartialFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "issuance_partial_failures_total",
			Help: "Coupons minted whose purchase flag update failed and needs reconciliation.",
		},
	)

	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by entity and result (hit/miss).",
		},
		[]string{"entity", "result"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "redeem_rate_limited_total",
			Help: "Redemption requests rejected by the per-IP rate limit.",
		},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			redemptionsTotal, redeemLatencyMs,
			issuedTotal, issuancePartialFailures,
			cacheRequests, rateLimited,
		)
	})
}

func IncRedemption(outcome string)       { redemptionsTotal.WithLabelValues(outcome).Inc() }
func ObserveRedeemLatency(ms float64)    { redeemLatencyMs.Observe(ms) }
func IncIssued(source string)            { issuedTotal.WithLabelValues(source).Inc() }
func IncIssuancePartialFailure()         { issuancePartialFailures.Inc() }
func IncCacheRequest(entity, res string) { cacheRequests.WithLabelValues(entity, res).Inc() }
func IncRateLimited()                    { rateLimited.Inc() }
