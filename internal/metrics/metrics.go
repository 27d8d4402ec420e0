// Package metrics provides Prometheus metrics collection for botgate.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Global metrics - used by the application.
	// atomic.Pointer gives lock-free initialization checks on hot paths.
	requestsTotal     atomic.Pointer[prometheus.CounterVec]
	requestDuration   atomic.Pointer[prometheus.HistogramVec]
	grantsIssuedTotal atomic.Pointer[prometheus.Counter]
	grantsDeniedTotal atomic.Pointer[prometheus.CounterVec]
	grantsSweptTotal  atomic.Pointer[prometheus.Counter]
	ruleDeploysTotal  atomic.Pointer[prometheus.CounterVec]
)

// Init initializes all Prometheus metrics and registers them with the
// provided registry. Called once at application startup.
func Init(reg prometheus.Registerer) error {
	requestsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botgate",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestsTotalVec); err != nil {
		return fmt.Errorf("failed to register requestsTotal: %w", err)
	}

	requestDurationVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "botgate",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestDurationVec); err != nil {
		return fmt.Errorf("failed to register requestDuration: %w", err)
	}

	grantsIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "botgate",
		Name:      "grants_issued_total",
		Help:      "Total number of access grants issued",
	})
	if err := reg.Register(grantsIssued); err != nil {
		return fmt.Errorf("failed to register grantsIssued: %w", err)
	}

	grantsDeniedVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botgate",
			Name:      "grants_denied_total",
			Help:      "Total number of denied access grant attempts",
		},
		[]string{"reason"},
	)
	if err := reg.Register(grantsDeniedVec); err != nil {
		return fmt.Errorf("failed to register grantsDenied: %w", err)
	}

	grantsSwept := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "botgate",
		Name:      "grants_swept_total",
		Help:      "Total number of expired grants revoked by the sweeper",
	})
	if err := reg.Register(grantsSwept); err != nil {
		return fmt.Errorf("failed to register grantsSwept: %w", err)
	}

	ruleDeploysVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botgate",
			Name:      "rule_deploys_total",
			Help:      "Total number of CDN rule deployments",
		},
		[]string{"kind", "outcome"},
	)
	if err := reg.Register(ruleDeploysVec); err != nil {
		return fmt.Errorf("failed to register ruleDeploys: %w", err)
	}

	requestsTotal.Store(requestsTotalVec)
	requestDuration.Store(requestDurationVec)
	grantsIssuedTotal.Store(&grantsIssued)
	grantsDeniedTotal.Store(grantsDeniedVec)
	grantsSweptTotal.Store(&grantsSwept)
	ruleDeploysTotal.Store(ruleDeploysVec)

	return nil
}

// RecordRequest increments the requests counter. The path should be the
// route pattern (e.g., "/api/projects/{id}"), not the raw URL.
func RecordRequest(method, path, statusCode string) {
	if counter := requestsTotal.Load(); counter != nil {
		counter.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordRequestDuration records the latency for a request in seconds.
func RecordRequestDuration(method, path, statusCode string, durationSeconds float64) {
	if histogram := requestDuration.Load(); histogram != nil {
		histogram.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
	}
}

// RecordGrantIssued increments the issued-grants counter.
func RecordGrantIssued() {
	if counter := grantsIssuedTotal.Load(); counter != nil {
		(*counter).Inc()
	}
}

// RecordGrantDenied increments the denied-grants counter for a reason.
// Common reasons match the payment verifier's taxonomy plus "already_used".
func RecordGrantDenied(reason string) {
	if counter := grantsDeniedTotal.Load(); counter != nil {
		counter.WithLabelValues(reason).Inc()
	}
}

// RecordGrantsSwept adds to the swept-grants counter.
func RecordGrantsSwept(n int) {
	if counter := grantsSweptTotal.Load(); counter != nil && n > 0 {
		(*counter).Add(float64(n))
	}
}

// RecordRuleDeploy increments the rule deploy counter.
// kind is "challenge" or "allow"; outcome is "ok" or "error".
func RecordRuleDeploy(kind, outcome string) {
	if counter := ruleDeploysTotal.Load(); counter != nil {
		counter.WithLabelValues(kind, outcome).Inc()
	}
}

// Handler returns an HTTP handler for Prometheus metrics in text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
