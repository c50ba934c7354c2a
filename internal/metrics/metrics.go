// Package metrics provides observability for the publishing pipeline and
// the query layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks refresh outcomes and request-path durations.
type Metrics struct {
	RefreshTotal    *prometheus.CounterVec
	RefreshRejected prometheus.Counter
	RowsStaged      *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	QueryDuration   *prometheus.HistogramVec
}

// New registers all pipeline metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		RefreshTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ruea_refresh_total",
			Help: "Completed refresh attempts by outcome (ok, error)",
		}, []string{"outcome"}),
		RefreshRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ruea_refresh_rejected_total",
			Help: "Refresh requests rejected because one was already in flight",
		}),
		RowsStaged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ruea_rows_staged_total",
			Help: "Rows written into staged versions, by module",
		}, []string{"module"}),
		RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ruea_refresh_duration_seconds",
			Help:    "Duration of full stage-and-promote cycles",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ruea_query_duration_seconds",
			Help:    "Duration of public query operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

// ObserveRefresh records one completed refresh attempt.
func (m *Metrics) ObserveRefresh(start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RefreshTotal.WithLabelValues(outcome).Inc()
	m.RefreshDuration.Observe(time.Since(start).Seconds())
}

// ObserveQuery records the duration of one public query operation.
func (m *Metrics) ObserveQuery(operation string, start time.Time) {
	m.QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
