package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup outcomes for ForecastCache.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Metrics holds the Prometheus collectors for the forecasting service
type Metrics struct {
	Forecasts        *prometheus.CounterVec
	Fallbacks        *prometheus.CounterVec
	ForecastCache    *prometheus.CounterVec
	SalesRecorded    prometheus.Counter
	ForecastDuration prometheus.Histogram
}

// New creates all collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Forecasts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_forecasts_total",
				Help: "Number of forecasts computed, by strategy",
			},
			[]string{"model"},
		),
		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_forecast_fallbacks_total",
				Help: "Number of forecasts that fell back to a simpler strategy, by requested strategy",
			},
			[]string{"model"},
		),
		ForecastCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_forecast_cache_total",
				Help: "Forecast cache lookups by result",
			},
			[]string{"result"},
		),
		SalesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockcast_sales_recorded_total",
			Help: "Number of sale records stored",
		}),
		ForecastDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockcast_forecast_duration_seconds",
			Help:    "Time spent computing a product forecast",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
}

// ObserveForecast records one computed forecast.
func (m *Metrics) ObserveForecast(model string, degraded bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Forecasts.WithLabelValues(model).Inc()
	if degraded {
		m.Fallbacks.WithLabelValues(model).Inc()
	}
	m.ForecastDuration.Observe(elapsed.Seconds())
}

// ObserveCache records a forecast cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	m.ForecastCache.WithLabelValues(result).Inc()
}

// ObserveSale records a stored sale.
func (m *Metrics) ObserveSale() {
	if m == nil {
		return
	}
	m.SalesRecorded.Inc()
}
