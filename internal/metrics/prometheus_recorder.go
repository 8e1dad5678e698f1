package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docweave"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg           *prom.Registry
	runDuration   prom.Histogram
	runOutcome    *prom.CounterVec
	stageDuration *prom.HistogramVec
	repoResults   *prom.CounterVec
	files         *prom.CounterVec
	brokenLinks   *prom.CounterVec
	retries       *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   prom.DefBuckets,
		}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Runs by final status",
		}, []string{"outcome"}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		repoResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "repository_results_total",
			Help:      "Repository processing results",
		}, []string{"repository", "result"}),
		files: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "files_published_total",
			Help:      "Files copied into the book",
		}, []string{"repository"}),
		brokenLinks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "broken_links_total",
			Help:      "Relative links that resolved to no file",
		}, []string{"repository"}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried operations after transient failures",
		}, []string{"operation"}),
	}
	reg.MustRegister(pr.runDuration, pr.runOutcome, pr.stageDuration, pr.repoResults, pr.files, pr.brokenLinks, pr.retries)
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

// HTTPHandler serves the recorder's registry in the Prometheus text format.
func (p *PrometheusRecorder) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRepositoryResult(repo string, result ResultLabel) {
	if p == nil {
		return
	}
	p.repoResults.WithLabelValues(repo, string(result)).Inc()
}

func (p *PrometheusRecorder) AddFilesPublished(repo string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.files.WithLabelValues(repo).Add(float64(n))
}

func (p *PrometheusRecorder) AddBrokenLinks(repo string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.brokenLinks.WithLabelValues(repo).Add(float64(n))
}

func (p *PrometheusRecorder) IncRetry(operation string) {
	if p == nil {
		return
	}
	p.retries.WithLabelValues(operation).Inc()
}
