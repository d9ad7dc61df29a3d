package muxhandlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitalvas/edgenotes/mux"
)

// unmatchedRoute labels requests no route handler answered, keeping the
// route label bounded.
const unmatchedRoute = "unmatched"

// MetricsConfig configures the Metrics middleware behaviour.
type MetricsConfig struct {
	// Registerer receives the collectors. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Namespace prefixes every metric name.
	Namespace string

	// Buckets overrides the request duration histogram buckets.
	// Defaults to prometheus.DefBuckets.
	Buckets []float64
}

// MetricsMiddleware returns a middleware that records request counts,
// durations and in-flight requests labelled by method, matched route and
// status code. Chain errors are counted with status 500.
//
// It returns an error if the collectors cannot be registered.
func MetricsMiddleware(cfg MetricsConfig) (mux.HandlerFunc, error) {
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   buckets,
	}, []string{"method", "route"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Name:      "http_requests_in_flight",
		Help:      "HTTP requests currently being served.",
	})

	for _, c := range []prometheus.Collector{requests, duration, inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return func(mc *mux.Context) (*mux.Response, error) {
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		res, err := mc.Next()

		route := mc.MatchedRoute()
		if route == "" {
			route = unmatchedRoute
		}

		code := http.StatusInternalServerError
		if err == nil {
			code = res.StatusCode
		}

		method := mc.Request().Method
		requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
		duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

		return res, err
	}, nil
}

// MetricsHandler returns a route handler that serves the Prometheus
// exposition format for gatherer. A nil gatherer uses
// prometheus.DefaultGatherer.
func MetricsHandler(gatherer prometheus.Gatherer) mux.HandlerFunc {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return mux.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
