package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// RepriceRunsTotal counts repricing runs by trigger and outcome.
	RepriceRunsTotal *prometheus.CounterVec
	// RepriceDuration records repricing run latency in milliseconds.
	RepriceDuration *prometheus.HistogramVec
	// ListingSubmissionsTotal counts price submissions by source and outcome.
	ListingSubmissionsTotal *prometheus.CounterVec
	// ListingsSweptTotal counts expired listings removed by the sweeper.
	ListingsSweptTotal prometheus.Counter
	// SharedOrderViewsTotal counts anonymous views of shared build orders.
	SharedOrderViewsTotal prometheus.Counter
	// CSVExportsTotal counts build order CSV downloads.
	CSVExportsTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		RepriceRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reprice_runs_total",
			Help:      "Count of repricing runs by trigger and outcome.",
		}, []string{"trigger", "result"})
		RepriceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reprice_duration_ms",
			Help:      "Latency of repricing runs in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"trigger"})
		ListingSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_submissions_total",
			Help:      "Count of price submissions by source and outcome.",
		}, []string{"source", "result"})
		ListingsSweptTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_swept_total",
			Help:      "Number of expired listings removed by the sweeper.",
		})
		SharedOrderViewsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shared_order_views_total",
			Help:      "Number of anonymous shared build order views.",
		})
		CSVExportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "csv_exports_total",
			Help:      "Number of build order CSV exports.",
		})

		mustRegisterCollector(reg, RepriceRunsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RepriceRunsTotal = v
			}
		})
		mustRegisterCollector(reg, RepriceDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				RepriceDuration = v
			}
		})
		mustRegisterCollector(reg, ListingSubmissionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ListingSubmissionsTotal = v
			}
		})
		mustRegisterCollector(reg, ListingsSweptTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ListingsSweptTotal = v
			}
		})
		mustRegisterCollector(reg, SharedOrderViewsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SharedOrderViewsTotal = v
			}
		})
		mustRegisterCollector(reg, CSVExportsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CSVExportsTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
