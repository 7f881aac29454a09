package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager holds the service's Prometheus metrics. A nil *Manager is valid and
// records nothing.
type Manager struct {
	Registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	registrations   prometheus.Counter
	listingsCreated prometheus.Counter
	listingsUpdated prometheus.Counter
	listingsDeleted prometheus.Counter
	favoritesAdded  prometheus.Counter
}

// NewManager initializes and registers the metrics under namespace.
func NewManager(namespace string) *Manager {
	registry := prometheus.NewRegistry()

	m := &Manager{
		Registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_registered_total",
			Help:      "Total number of user registrations.",
		}),
		listingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_created_total",
			Help:      "Total number of listings created.",
		}),
		listingsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_updated_total",
			Help:      "Total number of listings updated.",
		}),
		listingsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_deleted_total",
			Help:      "Total number of listings deleted.",
		}),
		favoritesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "favorites_added_total",
			Help:      "Total number of favorite additions, including refreshes.",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestLatency,
		m.registrations,
		m.listingsCreated,
		m.listingsUpdated,
		m.listingsDeleted,
		m.favoritesAdded,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by the chi route pattern,
// so /api/listings/1 and /api/listings/2 share a series.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// UserRegistered counts a successful registration. Safe on a nil Manager.
func (m *Manager) UserRegistered() {
	if m != nil {
		m.registrations.Inc()
	}
}

// ListingCreated counts a created listing.
func (m *Manager) ListingCreated() {
	if m != nil {
		m.listingsCreated.Inc()
	}
}

// ListingUpdated counts an updated listing.
func (m *Manager) ListingUpdated() {
	if m != nil {
		m.listingsUpdated.Inc()
	}
}

// ListingDeleted counts a deleted listing.
func (m *Manager) ListingDeleted() {
	if m != nil {
		m.listingsDeleted.Inc()
	}
}

// FavoriteAdded counts a listing added to favorites.
func (m *Manager) FavoriteAdded() {
	if m != nil {
		m.favoritesAdded.Inc()
	}
}
