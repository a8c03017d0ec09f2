package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusTelemetry turns events into counters and a pass-duration
// histogram registered on Registry.
type PrometheusTelemetry struct {
	Registry *prometheus.Registry

	events       *prometheus.CounterVec
	passDuration prometheus.Histogram
	symbols      prometheus.Gauge
}

// NewPrometheusTelemetry registers yamlnav metrics on reg, or on a fresh
// registry when reg is nil.
func NewPrometheusTelemetry(reg *prometheus.Registry) *PrometheusTelemetry {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &PrometheusTelemetry{
		Registry: reg,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yamlnav",
			Name:      "events_total",
			Help:      "Document tracker events by type",
		}, []string{"type"}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "yamlnav",
			Name:      "pass_duration_seconds",
			Help:      "Time from snapshot read to extracted symbol list",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		symbols: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "yamlnav",
			Name:      "last_pass_symbols",
			Help:      "Symbols produced by the most recent finished pass",
		}),
	}
}

// Emit records the event.
func (p *PrometheusTelemetry) Emit(event Event) {
	p.events.WithLabelValues(string(event.Type)).Inc()
	if event.Type == EventPassFinished {
		p.passDuration.Observe(event.Duration.Seconds())
		p.symbols.Set(float64(event.Symbols))
	}
}
