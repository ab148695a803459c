package observability

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records tree events as Prometheus collectors.
type Metrics struct {
	Events       *prometheus.CounterVec
	LoadDuration *prometheus.HistogramVec
	Selected     *prometheus.GaugeVec
	Expanded     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg (nil skips registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canopy_events_total",
				Help: "Total number of tree events by type",
			},
			[]string{"tree", "type"},
		),
		LoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "canopy_load_duration_seconds",
				Help:    "Duration of lazy child loads",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tree", "outcome"},
		),
		Selected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "canopy_checked_values",
				Help: "Size of the visible checked set",
			},
			[]string{"tree"},
		),
		Expanded: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "canopy_expanded_values",
				Help: "Number of expanded nodes",
			},
			[]string{"tree"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Events, m.LoadDuration, m.Selected, m.Expanded)
	}
	return m
}

// Observe records a single event for the named tree.
func (m *Metrics) Observe(tree string, e *domain.Event) {
	m.Events.WithLabelValues(tree, string(e.Type)).Inc()
	switch e.Type {
	case domain.EventChange:
		m.Selected.WithLabelValues(tree).Set(float64(len(e.Values)))
	case domain.EventExpand:
		m.Expanded.WithLabelValues(tree).Set(float64(len(e.Values)))
	case domain.EventLoad:
		m.LoadDuration.WithLabelValues(tree, "ok").Observe(e.Elapsed.Seconds())
	case domain.EventLoadError:
		m.LoadDuration.WithLabelValues(tree, "error").Observe(e.Elapsed.Seconds())
	}
}

// Hooks returns hooks that feed every event of the named tree into m.
func (m *Metrics) Hooks(tree string) domain.Hooks {
	h := func(_ context.Context, e *domain.Event) { m.Observe(tree, e) }
	return domain.Hooks{
		OnChange:    h,
		OnExpand:    h,
		OnActive:    h,
		OnLoad:      h,
		OnLoadError: h,
	}
}
