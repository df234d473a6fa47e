package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Serving metrics, exported at /metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "churn",
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "churn",
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	predictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "churn",
		Subsystem: "api",
		Name:      "predictions_total",
		Help:      "Online predictions served.",
	})

	modelReloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "churn",
		Subsystem: "api",
		Name:      "model_reloads_total",
		Help:      "Production model reloads.",
	})
)

// statusRecorder captures the response code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records request count and latency per route
func metricsMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())

			if r.Method == http.MethodPost {
				switch route {
				case "/api/predict":
					if rec.status == http.StatusOK {
						predictionsTotal.Inc()
					}
				case "/api/reload":
					if rec.status == http.StatusOK {
						modelReloadsTotal.Inc()
					}
				}
			}
		})
	}
}
