package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"langarhall/internal/occupancy"
)

const namespace = "langarhall"

// Metrics holds the collectors for one monitoring process.
type Metrics struct {
	registry *prometheus.Registry

	occupancy        prometheus.Gauge
	hallCapacity     prometheus.Gauge
	capacityExceeded prometheus.Gauge
	resources        *prometheus.GaugeVec
	commits          prometheus.Counter
	resets           prometheus.Counter
	detectorErrors   prometheus.Counter
	framesProcessed  prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		occupancy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "occupancy",
			Help:      "Smoothed hall occupancy at the last commit",
		}),
		hallCapacity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hall_capacity",
			Help:      "Configured hall capacity threshold",
		}),
		capacityExceeded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capacity_exceeded",
			Help:      "1 when the last committed occupancy is above hall capacity",
		}),
		resources: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resource_required",
			Help:      "Quantity of each resource required for the current occupancy",
		}, []string{"resource"}),
		commits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Samples committed into the trailing window",
		}),
		resets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Explicit tracker resets",
		}),
		detectorErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_errors_total",
			Help:      "Frames skipped because the detector failed or returned invalid input",
		}),
		framesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames passed through the detector",
		}),
	}
}

// ObserveSnapshot records a committed (or reset) snapshot.
func (m *Metrics) ObserveSnapshot(snap occupancy.Snapshot) {
	m.occupancy.Set(float64(snap.Occupancy))
	m.hallCapacity.Set(float64(snap.HallCapacity))
	if snap.CapacityExceeded {
		m.capacityExceeded.Set(1)
	} else {
		m.capacityExceeded.Set(0)
	}
	for _, row := range snap.Resources.Rows() {
		m.resources.WithLabelValues(row.Name).Set(row.Quantity)
	}
}

func (m *Metrics) IncCommits()        { m.commits.Inc() }
func (m *Metrics) IncResets()         { m.resets.Inc() }
func (m *Metrics) IncDetectorErrors() { m.detectorErrors.Inc() }
func (m *Metrics) IncFrames()         { m.framesProcessed.Inc() }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
