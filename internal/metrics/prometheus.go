package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	fetches       *prom.CounterVec
	fetchDuration *prom.HistogramVec
	backoffDelay  *prom.GaugeVec
	subscribers   *prom.GaugeVec
	patches       *prom.CounterVec
	broadcasts    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the lotwatch collectors.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.fetches = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "lotwatch",
			Name:      "fetches_total",
			Help:      "Indexer fetches by store and outcome",
		}, []string{"store", "result"})
		pr.fetchDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "lotwatch",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of indexer round trips",
			Buckets:   prom.DefBuckets,
		}, []string{"store"})
		pr.backoffDelay = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "lotwatch",
			Name:      "backoff_delay_seconds",
			Help:      "Current backoff delay applied after failures (0 when healthy)",
		}, []string{"store"})
		pr.subscribers = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "lotwatch",
			Name:      "subscribers",
			Help:      "Attached consumers per store",
		}, []string{"store"})
		pr.patches = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "lotwatch",
			Name:      "optimistic_patches_total",
			Help:      "Optimistic patches by kind and outcome",
		}, []string{"store", "kind", "result"})
		pr.broadcasts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "lotwatch",
			Name:      "broadcasts_total",
			Help:      "Snapshot change notifications delivered to listeners",
		}, []string{"store"})
		reg.MustRegister(pr.fetches, pr.fetchDuration, pr.backoffDelay, pr.subscribers, pr.patches, pr.broadcasts)
	})
	return pr
}

func (p *PrometheusRecorder) IncFetch(store string, result ResultLabel) {
	if p == nil || p.fetches == nil {
		return
	}
	p.fetches.WithLabelValues(store, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveFetchDuration(store string, d time.Duration) {
	if p == nil || p.fetchDuration == nil {
		return
	}
	p.fetchDuration.WithLabelValues(store).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetBackoffDelay(store string, d time.Duration) {
	if p == nil || p.backoffDelay == nil {
		return
	}
	p.backoffDelay.WithLabelValues(store).Set(d.Seconds())
}

func (p *PrometheusRecorder) SetSubscribers(store string, n int) {
	if p == nil || p.subscribers == nil {
		return
	}
	p.subscribers.WithLabelValues(store).Set(float64(n))
}

func (p *PrometheusRecorder) IncPatch(store, kind string, result PatchLabel) {
	if p == nil || p.patches == nil {
		return
	}
	p.patches.WithLabelValues(store, kind, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBroadcast(store string) {
	if p == nil || p.broadcasts == nil {
		return
	}
	p.broadcasts.WithLabelValues(store).Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
