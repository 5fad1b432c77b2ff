// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package panel

import (
	"github.com/decred/votepanel/voter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "votepanel"

type metrics struct {
	evaluations *prometheus.CounterVec // By panel state
	plans       *prometheus.CounterVec // By action
	sweeps      prometheus.Counter
}

// newMetrics returns the panel metrics. The metrics are registered with reg
// unless it is nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "panel_evaluations_total",
			Help:      "number of vote panels evaluated",
		}, []string{"state"}),
		plans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "panel_plans_total",
			Help:      "number of vote action plans returned",
		}, []string{"action"}),
		sweeps: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "vote_records_swept_total",
			Help:      "number of expired vote records deleted",
		}),
	}
}

func (m *metrics) evaluated(s voter.PanelState) {
	m.evaluations.WithLabelValues(s.String()).Inc()
}

func (m *metrics) planned(a voter.Action) {
	m.plans.WithLabelValues(string(a)).Inc()
}

func (m *metrics) swept(n int) {
	m.sweeps.Add(float64(n))
}
