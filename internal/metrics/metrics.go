// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reframe"

type Metrics struct {
	Handshakes    *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
	Completions   prometheus.Counter
	EntriesSaved  *prometheus.CounterVec
	ActiveWizards prometheus.GaugeFunc

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry. activeWizards reports
// the number of live wizards and may be nil.
func New(activeWizards func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_resolutions_total",
			Help:      "Session resolutions by outcome.",
		}, []string{"outcome"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_transitions_total",
			Help:      "Wizard actions by action and whether they were applied.",
		}, []string{"action", "result"}),
		Completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_completions_total",
			Help:      "Wizards that reached the completion screen.",
		}),
		EntriesSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_saved_total",
			Help:      "Thought log writes by result.",
		}, []string{"result"}),
		gatherer: reg,
	}

	if activeWizards == nil {
		activeWizards = func() int { return 0 }
	}
	m.ActiveWizards = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_wizards",
		Help:      "Wizards currently held in memory.",
	}, func() float64 { return float64(activeWizards()) })

	reg.MustRegister(m.Handshakes, m.Transitions, m.Completions, m.EntriesSaved, m.ActiveWizards)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func Result(applied bool) string {
	if applied {
		return "applied"
	}
	return "refused"
}
