// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides metrics collection for the decay loop (C6) and
// the components it drives each tick.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the interface for decay-loop metrics collection.
type Collector interface {
	// RecordTick records one full decay-loop iteration (§4.6 steps 1-7).
	RecordTick(duration time.Duration, err error)

	// RecordDecay records the decay factor applied this tick (§4.3).
	RecordDecay(factor float64)

	// RecordReset records a scheduled reset_all invocation (§4.3).
	RecordReset()

	// RecordCharge records one running job charged by the accountant (§4.2).
	RecordCharge(cpuSeconds float64)

	// RecordJobsPrioritized records how many pending jobs were recomputed
	// in a tick (§4.5/§4.6).
	RecordJobsPrioritized(n int)

	// RecordTickets records the ticket-pool apportionment result (§4.4).
	RecordTickets(maxTickets uint64)
}

// PrometheusCollector implements Collector backed by prometheus client_golang
// gauges/counters/histograms, registered under the "slurm_priority_" prefix.
type PrometheusCollector struct {
	tickDuration   prometheus.Histogram
	tickErrors     prometheus.Counter
	decayFactor    prometheus.Gauge
	resetsTotal    prometheus.Counter
	chargedSeconds prometheus.Counter
	chargesTotal   prometheus.Counter
	jobsPrioritized prometheus.Counter
	maxTickets     prometheus.Gauge
}

// NewPrometheusCollector builds and registers a PrometheusCollector against reg.
// If reg is nil, the collector's metrics are created but not registered
// (useful for tests that don't want global registry pollution).
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slurm_priority_tick_duration_seconds",
			Help:    "Duration of a single decay-loop tick.",
			Buckets: prometheus.DefBuckets,
		}),
		tickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slurm_priority_tick_errors_total",
			Help: "Number of decay-loop ticks that aborted with an error.",
		}),
		decayFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slurm_priority_decay_factor",
			Help: "Decay factor applied on the most recent tick.",
		}),
		resetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slurm_priority_resets_total",
			Help: "Number of scheduled usage resets performed.",
		}),
		chargedSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slurm_priority_charged_cpu_seconds_total",
			Help: "Cumulative CPU-seconds (tick window length times job CPUs, before decay) of charged running jobs.",
		}),
		chargesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slurm_priority_charges_total",
			Help: "Number of running-job charges applied by the accountant.",
		}),
		jobsPrioritized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slurm_priority_jobs_prioritized_total",
			Help: "Number of pending jobs recomputed across all ticks.",
		}),
		maxTickets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slurm_priority_max_tickets",
			Help: "Largest ticket count observed at any user leaf this cycle.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			c.tickDuration, c.tickErrors, c.decayFactor, c.resetsTotal,
			c.chargedSeconds, c.chargesTotal, c.jobsPrioritized, c.maxTickets,
		)
	}
	return c
}

func (c *PrometheusCollector) RecordTick(duration time.Duration, err error) {
	c.tickDuration.Observe(duration.Seconds())
	if err != nil {
		c.tickErrors.Inc()
	}
}

func (c *PrometheusCollector) RecordDecay(factor float64)   { c.decayFactor.Set(factor) }
func (c *PrometheusCollector) RecordReset()                 { c.resetsTotal.Inc() }
func (c *PrometheusCollector) RecordCharge(cpuSeconds float64) {
	c.chargedSeconds.Add(cpuSeconds)
	c.chargesTotal.Inc()
}
func (c *PrometheusCollector) RecordJobsPrioritized(n int) {
	c.jobsPrioritized.Add(float64(n))
}
func (c *PrometheusCollector) RecordTickets(maxTickets uint64) {
	c.maxTickets.Set(float64(maxTickets))
}

// NoOpCollector is a no-op implementation of Collector, used when the host
// controller has no metrics sink configured.
type NoOpCollector struct{}

func (NoOpCollector) RecordTick(time.Duration, error)   {}
func (NoOpCollector) RecordDecay(float64)               {}
func (NoOpCollector) RecordReset()                      {}
func (NoOpCollector) RecordCharge(float64)              {}
func (NoOpCollector) RecordJobsPrioritized(int)         {}
func (NoOpCollector) RecordTickets(uint64)               {}

// defaultCollector is the package-level sink used when the caller doesn't
// wire one in explicitly.
var defaultCollector Collector = NoOpCollector{}

// SetDefaultCollector sets the default metrics collector.
func SetDefaultCollector(collector Collector) {
	if collector == nil {
		collector = NoOpCollector{}
	}
	defaultCollector = collector
}

// GetDefaultCollector returns the default metrics collector.
func GetDefaultCollector() Collector {
	return defaultCollector
}
