package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver exports events as counters and a value histogram.
type PrometheusObserver struct {
	events *prometheus.CounterVec
	values *prometheus.HistogramVec
}

// NewPrometheusObserver registers its collectors on reg. A nil reg uses the
// default registerer.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tutorcore_events_total",
				Help: "Total number of integration events by name, component and outcome",
			},
			[]string{"name", "component", "outcome"},
		),
		values: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tutorcore_event_value",
				Help:    "Observed event values (durations in seconds, sizes in bytes)",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"name"},
		),
	}
	if err := reg.Register(o.events); err != nil {
		return nil, err
	}
	if err := reg.Register(o.values); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *PrometheusObserver) RecordEvent(ev MetricsEvent) {
	component, outcome := "", ""
	if ev.Tags != nil {
		component = ev.Tags["component"]
		outcome = ev.Tags["outcome"]
	}
	o.events.WithLabelValues(ev.Name, component, outcome).Inc()
	if ev.Value != 0 {
		o.values.WithLabelValues(ev.Name).Observe(ev.Value)
	}
}
