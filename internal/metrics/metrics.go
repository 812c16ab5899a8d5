// Package metrics exposes prometheus instrumentation for calculations,
// exports and preference changes.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "emi_"

	// ResultSuccess labels an operation that completed.
	ResultSuccess = "success"
	// ResultInvalid labels an operation rejected for bad input.
	ResultInvalid = "invalid"
	// ResultError labels an operation that failed for any other reason.
	ResultError = "error"
)

var (
	registerOnce sync.Once

	calculationsTotal  *prometheus.CounterVec
	calculationLatency *prometheus.HistogramVec
	calculationPeriods prometheus.Histogram
	exportsTotal       *prometheus.CounterVec
	themeChangesTotal  *prometheus.CounterVec
)

// Init registers the metrics with the default registerer. It is safe to
// call more than once.
func Init() {
	InitWith(prometheus.DefaultRegisterer)
}

// InitWith registers the metrics with reg. Only the first call has effect.
func InitWith(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		calculationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "calculations_total",
				Help: "Total schedule calculations by result",
			},
			[]string{"result"},
		)
		calculationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "calculation_duration_seconds",
				Help:    "Schedule calculation latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"result"},
		)
		calculationPeriods = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "calculation_periods",
				Help:    "Number of periods in computed schedules",
				Buckets: []float64{6, 12, 24, 36, 60, 120, 240, 360, 480},
			},
		)
		exportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Total schedule exports by format and result",
			},
			[]string{"format", "result"},
		)
		themeChangesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "theme_changes_total",
				Help: "Total stored theme preference changes by theme",
			},
			[]string{"theme"},
		)

		reg.MustRegister(
			calculationsTotal,
			calculationLatency,
			calculationPeriods,
			exportsTotal,
			themeChangesTotal,
		)
	})
}

// ObserveCalculation records a calculation result, its duration and, for
// successful runs, the number of periods produced.
func ObserveCalculation(result string, duration time.Duration, periods int) {
	if result == "" {
		result = ResultSuccess
	}
	if calculationsTotal != nil {
		calculationsTotal.WithLabelValues(result).Inc()
	}
	if calculationLatency != nil {
		calculationLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if calculationPeriods != nil && result == ResultSuccess {
		calculationPeriods.Observe(float64(periods))
	}
}

// IncExport counts an export attempt.
func IncExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if exportsTotal != nil {
		exportsTotal.WithLabelValues(format, result).Inc()
	}
}

// IncThemeChange counts a stored theme change.
func IncThemeChange(theme string) {
	if theme == "" {
		theme = "unknown"
	}
	if themeChangesTotal != nil {
		themeChangesTotal.WithLabelValues(theme).Inc()
	}
}
