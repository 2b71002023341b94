// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package metrics

import (
	"time"

	"github.com/siemens/oping/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "oping"

// Metrics contains the Prometheus metrics of ping sessions.
type Metrics struct {
	Sends        prometheus.Counter
	SendErrors   prometheus.Counter
	SendDuration prometheus.Histogram
	Hosts        prometheus.Gauge

	Replies *prometheus.CounterVec   // by address family
	Drops   *prometheus.CounterVec   // by address family
	Latency *prometheus.HistogramVec // by address family, in seconds
}

// New returns a new Metrics object with all metrics registered with the
// specified registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Sends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Total number of sends to all hosts of a session",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Total number of failed sends",
		}),
		SendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Histogram of how long sends blocked, in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		Hosts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hosts",
			Help:      "Number of hosts pinged in the latest send",
		}),
		Replies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Total echo replies received by address family",
		}, []string{"family"}),
		Drops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drops_total",
			Help:      "Total echo requests without reply in time by address family",
		}, []string{"family"}),
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_seconds",
			Help:      "Histogram of echo round-trip times in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"family"}),
	}
}

// RecordSend records a completed send to the specified number of hosts.
func (m *Metrics) RecordSend(hosts int, duration time.Duration, err error) {
	m.Sends.Inc()
	m.Hosts.Set(float64(hosts))
	m.SendDuration.Observe(duration.Seconds())
	if err != nil {
		m.SendErrors.Inc()
	}
}

// RecordItem records the outcome for a single host of the latest send.
// Dropped is cumulative per host, so only a zero latency counts as a drop
// of the latest send.
func (m *Metrics) RecordItem(item types.PingItem) {
	family := item.Family.String()
	if item.LatencyMs <= 0 {
		m.Drops.WithLabelValues(family).Inc()
		return
	}
	m.Replies.WithLabelValues(family).Inc()
	m.Latency.WithLabelValues(family).Observe(item.LatencyMs / 1000)
}
