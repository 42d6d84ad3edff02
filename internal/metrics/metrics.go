// Package metrics implements the observability hooks with Prometheus
// collectors and serves them over HTTP.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/observability"
)

const namespace = "wheelwright"

// Metrics holds every collector. It implements the resolve, fetch, cache
// and HTTP hook interfaces.
type Metrics struct {
	reg *prometheus.Registry

	resolves        *prometheus.CounterVec
	resolveDuration prometheus.Histogram
	resolvePackages prometheus.Histogram
	backtracks      prometheus.Counter
	decisions       prometheus.Counter
	inFlight        prometheus.Gauge

	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	fetchesActive prometheus.Gauge
	retries       prometheus.Counter

	cacheOps   *prometheus.CounterVec
	cacheBytes prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates and registers the collectors on a fresh registry. Go runtime
// and process collectors are included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "resolutions_total",
			Help: "Resolution runs by outcome code.",
		}, []string{"outcome"}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "resolution_duration_seconds",
			Help:    "Wall time of resolution runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		resolvePackages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "resolution_packages",
			Help:    "Packages selected by successful runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		backtracks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "backtracks_total",
			Help: "Decisions undone by the resolver.",
		}),
		decisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "decisions_total",
			Help: "Package versions selected by the resolver.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "resolutions_in_flight",
			Help: "Resolution runs currently executing.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetches_total",
			Help: "Index fetches by request kind and outcome code.",
		}, []string{"kind", "outcome"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "fetch_duration_seconds",
			Help:    "Time a fetch held a concurrency slot, retries included.",
			Buckets: prometheus.DefBuckets,
		}),
		fetchesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fetches_in_flight",
			Help: "Fetches currently holding a concurrency slot.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetch_retries_total",
			Help: "Fetch attempts retried after a transient failure.",
		}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_operations_total",
			Help: "Metadata cache lookups and writes by tier.",
		}, []string{"tier", "op"}),
		cacheBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_written_bytes_total",
			Help: "Bytes written to the persisted cache tier.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "index_requests_total",
			Help: "Package index HTTP requests by host and status.",
		}, []string{"host", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "index_request_duration_seconds",
			Help:    "Package index HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.resolves, m.resolveDuration, m.resolvePackages, m.backtracks, m.decisions, m.inFlight,
		m.fetches, m.fetchDuration, m.fetchesActive, m.retries,
		m.cacheOps, m.cacheBytes,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Install registers m as the process-wide observability hooks.
func (m *Metrics) Install() {
	observability.SetResolveHooks(m)
	observability.SetFetchHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code := wwerrors.GetCode(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}

// OnResolveStart implements observability.ResolveHooks.
func (m *Metrics) OnResolveStart(context.Context, string, int) { m.inFlight.Inc() }

// OnResolveComplete implements observability.ResolveHooks.
func (m *Metrics) OnResolveComplete(_ context.Context, _ string, packages, _ int, d time.Duration, err error) {
	m.inFlight.Dec()
	m.resolves.WithLabelValues(outcome(err)).Inc()
	m.resolveDuration.Observe(d.Seconds())
	if err == nil {
		m.resolvePackages.Observe(float64(packages))
	}
}

// OnDecision implements observability.ResolveHooks.
func (m *Metrics) OnDecision(context.Context, string, string) { m.decisions.Inc() }

// OnBacktrack implements observability.ResolveHooks.
func (m *Metrics) OnBacktrack(context.Context, string, string) { m.backtracks.Inc() }

func requestKind(key string) string {
	if strings.Contains(key, "==") {
		return "release"
	}
	return "project"
}

// OnFetchStart implements observability.FetchHooks.
func (m *Metrics) OnFetchStart(context.Context, string) { m.fetchesActive.Inc() }

// OnFetchComplete implements observability.FetchHooks.
func (m *Metrics) OnFetchComplete(_ context.Context, key string, _ int, d time.Duration, err error) {
	m.fetchesActive.Dec()
	m.fetches.WithLabelValues(requestKind(key), outcome(err)).Inc()
	m.fetchDuration.Observe(d.Seconds())
}

// OnRetry implements observability.FetchHooks.
func (m *Metrics) OnRetry(context.Context, string, int, error) { m.retries.Inc() }

// OnCacheHit implements observability.CacheHooks.
func (m *Metrics) OnCacheHit(_ context.Context, tier string) {
	m.cacheOps.WithLabelValues(tier, "hit").Inc()
}

// OnCacheMiss implements observability.CacheHooks.
func (m *Metrics) OnCacheMiss(_ context.Context, tier string) {
	m.cacheOps.WithLabelValues(tier, "miss").Inc()
}

// OnCacheSet implements observability.CacheHooks.
func (m *Metrics) OnCacheSet(_ context.Context, tier string, size int) {
	m.cacheOps.WithLabelValues(tier, "set").Inc()
	m.cacheBytes.Add(float64(size))
}

// OnRequest implements observability.HTTPHooks.
func (m *Metrics) OnRequest(context.Context, string, string, string) {}

// OnResponse implements observability.HTTPHooks.
func (m *Metrics) OnResponse(_ context.Context, _, host, _ string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(host, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(host).Observe(d.Seconds())
}

// OnError implements observability.HTTPHooks.
func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.httpRequests.WithLabelValues(host, "error").Inc()
}

var (
	_ observability.ResolveHooks = (*Metrics)(nil)
	_ observability.FetchHooks   = (*Metrics)(nil)
	_ observability.CacheHooks   = (*Metrics)(nil)
	_ observability.HTTPHooks    = (*Metrics)(nil)
)
