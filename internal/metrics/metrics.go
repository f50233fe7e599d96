// Package metrics exposes Prometheus instrumentation for the proxy data
// path and the rule table.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProxyRequests counts forwarded requests by resolution mode and outcome.
	ProxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rule_proxy_requests_total",
		Help: "Proxy requests by resolution mode (rule, direct, none) and outcome.",
	}, []string{"mode", "outcome"})

	// ProxyDuration tracks end-to-end request latency on the proxy listener.
	ProxyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rule_proxy_request_duration_seconds",
		Help:    "End-to-end proxy request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// RulesLoaded reports the number of rules in the active table snapshot.
	RulesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rule_proxy_rules_loaded",
		Help: "Number of enabled rules in the active table snapshot.",
	})
)
