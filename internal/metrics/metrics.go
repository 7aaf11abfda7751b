package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frahmantamala/claims-management/internal/core/events"
)

const namespace = "claims"

// Recorder holds the service metrics in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	claimsSubmitted  *prometheus.CounterVec
	claimsFlagged    prometheus.Counter
	claimTransitions *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		claimsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submitted_total",
			Help:      "Claims submitted, by resulting status",
		}, []string{"status"}),
		claimsFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flagged_for_review_total",
			Help:      "Claims whose total exceeds the manual review threshold",
		}),
		claimTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Claim status transitions, by audit action",
		}, []string{"action"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status code",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		r.claimsSubmitted,
		r.claimsFlagged,
		r.claimTransitions,
		r.requestsTotal,
		r.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RegisterDB exports connection pool stats for db.
func (r *Recorder) RegisterDB(db *sql.DB, name string) error {
	return r.registry.Register(collectors.NewDBStatsCollector(db, name))
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Subscribe feeds the claim counters from the event bus.
func (r *Recorder) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeClaimSubmitted, r.onClaimSubmitted)
	bus.Subscribe(events.EventTypeClaimStatusChanged, r.onStatusChanged)
}

func (r *Recorder) onClaimSubmitted(_ context.Context, event events.Event) error {
	e, ok := event.(*events.ClaimSubmittedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}
	r.claimsSubmitted.WithLabelValues(e.Status).Inc()
	if e.NeedsManualReview {
		r.claimsFlagged.Inc()
	}
	return nil
}

func (r *Recorder) onStatusChanged(_ context.Context, event events.Event) error {
	e, ok := event.(*events.ClaimStatusChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}
	r.claimTransitions.WithLabelValues(e.Action).Inc()
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency, labelled by chi route pattern.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		r.requestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(sw.status)).Inc()
		r.requestDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}
