// Package metrics exposes Prometheus collectors for the strike engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pollsTotal            *prometheus.CounterVec
	pollDurationSeconds   *prometheus.HistogramVec
	queueItems            *prometheus.GaugeVec
	strikesTotal          *prometheus.CounterVec
	actionsTotal          *prometheus.CounterVec
	removalFailuresTotal  *prometheus.CounterVec
	notificationsTotal    *prometheus.CounterVec
	ledgerExpiredTotal    prometheus.Counter
	activeItemWorkers     prometheus.Gauge
	configReloadsTotal    *prometheus.CounterVec
	apiRequestsTotal      *prometheus.CounterVec
	apiRequestDurationSec *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pollsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strikearr_polls_total",
				Help: "Total number of queue polls, labeled by instance and result.",
			},
			[]string{"instance", "result"},
		)

		pollDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strikearr_poll_duration_seconds",
				Help:    "Histogram of full poll cycle durations, labeled by instance.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"instance"},
		)

		queueItems = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "strikearr_queue_items",
				Help: "Number of queue items observed in the last successful poll.",
			},
			[]string{"instance"},
		)

		strikesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strikearr_strikes_total",
				Help: "Total number of strikes recorded, labeled by instance and category.",
			},
			[]string{"instance", "category"},
		)

		actionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strikearr_actions_total",
				Help: "Total number of remediation actions, labeled by instance and kind.",
			},
			[]string{"instance", "kind"},
		)

		removalFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strikearr_removal_failures_total",
				Help: "Total number of queue item removals that exhausted their retries.",
			},
			[]string{"instance"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strikearr_notifications_total",
				Help: "Total number of notification sends, labeled by channel and status.",
			},
			[]string{"channel", "status"},
		)

		ledgerExpiredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "strikearr_ledger_expired_total",
				Help: "Total number of strike records removed by the expiry sweep.",
			},
		)

		activeItemWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "strikearr_active_item_workers",
				Help: "Number of queue items currently being remediated.",
			},
		)

		configReloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strikearr_config_reloads_total",
				Help: "Total number of configuration reload attempts, labeled by result.",
			},
			[]string{"result"},
		)

		apiRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strikearr_api_requests_total",
				Help: "Total number of query API requests, labeled by route and code.",
			},
			[]string{"route", "code"},
		)

		apiRequestDurationSec = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strikearr_api_request_duration_seconds",
				Help:    "Histogram of query API latencies, labeled by route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObservePoll records one poll cycle outcome.
func ObservePoll(instance, result string, items int, duration time.Duration) {
	Init()
	pollsTotal.WithLabelValues(instance, result).Inc()
	pollDurationSeconds.WithLabelValues(instance).Observe(duration.Seconds())
	if result == "ok" {
		queueItems.WithLabelValues(instance).Set(float64(items))
	}
}

// ObserveStrike increments the strike counter.
func ObserveStrike(instance, category string) {
	Init()
	strikesTotal.WithLabelValues(instance, category).Inc()
}

// ObserveAction increments the action counter for the given kind.
func ObserveAction(instance, kind string) {
	Init()
	actionsTotal.WithLabelValues(instance, kind).Inc()
}

// ObserveRemovalFailure increments the removal failure counter.
func ObserveRemovalFailure(instance string) {
	Init()
	removalFailuresTotal.WithLabelValues(instance).Inc()
}

// ObserveNotification records a notification send. status is one of
// "sent", "failed" or "suppressed".
func ObserveNotification(channel, status string) {
	Init()
	notificationsTotal.WithLabelValues(channel, status).Inc()
}

// ObserveExpired adds n expired ledger records.
func ObserveExpired(n int64) {
	Init()
	if n > 0 {
		ledgerExpiredTotal.Add(float64(n))
	}
}

// ObserveReload records a configuration reload attempt.
func ObserveReload(result string) {
	Init()
	configReloadsTotal.WithLabelValues(result).Inc()
}

// ObserveAPIRequest records a query API request.
func ObserveAPIRequest(route string, code int, duration time.Duration) {
	Init()
	apiRequestsTotal.WithLabelValues(route, statusClass(code)).Inc()
	apiRequestDurationSec.WithLabelValues(route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active item workers gauge.
func IncActiveWorkers() {
	Init()
	activeItemWorkers.Inc()
}

// DecActiveWorkers decrements the active item workers gauge.
func DecActiveWorkers() {
	Init()
	activeItemWorkers.Dec()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
