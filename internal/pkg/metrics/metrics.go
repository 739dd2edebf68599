package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Saga holds the order-placement saga counters and duration histogram.
type Saga struct {
	registry    *prometheus.Registry
	started     prometheus.Counter
	completed   prometheus.Counter
	failed      prometheus.Counter
	compensated prometheus.Counter
	duration    prometheus.Histogram
}

func NewSaga() *Saga {
	registry := prometheus.NewRegistry()
	s := &Saga{
		registry: registry,
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saga_started_total",
			Help: "Order sagas started.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saga_completed_total",
			Help: "Order sagas that committed.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saga_failed_total",
			Help: "Order sagas that ended FAILED without needing compensation.",
		}),
		compensated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saga_compensated_total",
			Help: "Order sagas that ran compensation before failing.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "saga_duration_seconds",
			Help:    "Wall-clock duration of a saga run.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		}),
	}
	registry.MustRegister(s.started, s.completed, s.failed, s.compensated, s.duration)
	return s
}

func (s *Saga) ObserveStarted() { s.started.Inc() }

func (s *Saga) ObserveCompleted(d time.Duration) {
	s.completed.Inc()
	s.duration.Observe(d.Seconds())
}

func (s *Saga) ObserveFailed(d time.Duration, compensated bool) {
	if compensated {
		s.compensated.Inc()
	} else {
		s.failed.Inc()
	}
	s.duration.Observe(d.Seconds())
}

// Handler exposes the registry in prometheus text format.
func (s *Saga) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
