package bootstrap

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "songd",
			Subsystem: "bootstrap",
			Name:      "stage_duration_seconds",
			Help:      "Duration of initialization stages in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"component"},
	)

	stageOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "songd",
			Subsystem: "bootstrap",
			Name:      "stage_outcomes_total",
			Help:      "Initialization stage outcomes by component and result",
		},
		[]string{"component", "result"},
	)
)

func init() {
	prometheus.MustRegister(stageDuration, stageOutcomes)
}

func observeStage(component string, ok bool, d time.Duration) {
	stageDuration.WithLabelValues(component).Observe(d.Seconds())
	result := "ok"
	if !ok {
		result = "failed"
	}
	stageOutcomes.WithLabelValues(component, result).Inc()
}
