// Package metrics defines the Prometheus collectors of an evaluation run,
// exposes an HTTP handler for scraping and pushes to a Pushgateway when a
// batch run finishes.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus collectors of the evaluation pipeline. Each
// Metrics owns its registry so several can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	FoldsEvaluatedTotal  *prometheus.CounterVec
	QueriesRankedTotal   *prometheus.CounterVec
	DocumentsScoredTotal *prometheus.CounterVec
	FoldDuration         *prometheus.HistogramVec
	MetricMean           *prometheus.GaugeVec
	RecordsSkippedTotal  *prometheus.CounterVec
	SignificanceTStat    *prometheus.GaugeVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FoldsEvaluatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qeval_folds_evaluated_total",
				Help: "Total folds evaluated by method and metric.",
			},
			[]string{"method", "metric"},
		),
		QueriesRankedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qeval_queries_ranked_total",
				Help: "Total queries ranked against a fold corpus.",
			},
			[]string{"method"},
		),
		DocumentsScoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qeval_documents_scored_total",
				Help: "Total (query, document) pairs scored with BM25.",
			},
			[]string{"method"},
		),
		FoldDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qeval_fold_duration_seconds",
				Help:    "Wall time to load, index and rank one fold.",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"method"},
		),
		MetricMean: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "qeval_metric_mean",
				Help: "Mean pooled metric value of the last run by method, metric and k.",
			},
			[]string{"method", "metric", "k"},
		),
		RecordsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qeval_records_skipped_total",
				Help: "Malformed record lines skipped by the loader.",
			},
			[]string{"source"},
		),
		SignificanceTStat: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "qeval_significance_t_statistic",
				Help: "Paired t statistic of baseline minus candidate by method, metric and k.",
			},
			[]string{"method", "metric", "k"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		m.FoldsEvaluatedTotal,
		m.QueriesRankedTotal,
		m.DocumentsScoredTotal,
		m.FoldDuration,
		m.MetricMean,
		m.RecordsSkippedTotal,
		m.SignificanceTStat,
	)

	return m
}

// SetMean records the pooled mean for one cutoff.
func (m *Metrics) SetMean(method, metric string, k int, mean float64) {
	m.MetricMean.WithLabelValues(method, metric, strconv.Itoa(k)).Set(mean)
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Push sends the current state of the registry to a Pushgateway under job.
func (m *Metrics) Push(url, job string, grouping map[string]string) error {
	pusher := push.New(url, job).Gatherer(m.Registry)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
