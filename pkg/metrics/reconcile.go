package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics tracks stock reconciliation batches.
type ReconcileMetrics struct {
	duration        *prometheus.HistogramVec
	productsUpdated prometheus.Counter
	productsMissing prometheus.Counter
}

// NewReconcileMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stock_reconcile_duration_seconds",
		Help:    "Duration of stock reconciliation batches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"direction"})
	updated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_reconcile_products_updated",
		Help: "Catalog products written by reconciliation batches.",
	})
	missing := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_reconcile_products_missing",
		Help: "Referenced products missing from the catalog and skipped.",
	})
	reg.MustRegister(duration, updated, missing)
	return &ReconcileMetrics{
		duration:        duration,
		productsUpdated: updated,
		productsMissing: missing,
	}
}

// ObserveBatch records the duration of one batch in the given direction.
func (r *ReconcileMetrics) ObserveBatch(direction string, duration time.Duration) {
	if r == nil || r.duration == nil {
		return
	}
	r.duration.WithLabelValues(normalizeLabel(direction)).Observe(duration.Seconds())
}

// AddUpdated counts products written in a committed batch.
func (r *ReconcileMetrics) AddUpdated(n int) {
	if r == nil || r.productsUpdated == nil || n <= 0 {
		return
	}
	r.productsUpdated.Add(float64(n))
}

// IncMissing counts a referenced product that was absent from the catalog.
func (r *ReconcileMetrics) IncMissing() {
	if r == nil || r.productsMissing == nil {
		return
	}
	r.productsMissing.Inc()
}
