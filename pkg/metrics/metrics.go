// Package metrics exposes bridge instrumentation in Prometheus format.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge's Prometheus collectors behind a private
// registry, so tests and embedded servers never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	// Attach lifecycle.
	AttachAttempts *prometheus.CounterVec
	AttachDuration prometheus.Histogram

	// Polling.
	AdvanceTotal    *prometheus.CounterVec
	AdvanceDuration prometheus.Histogram
	SensorReadsTotal *prometheus.CounterVec

	// State.
	BridgeReady   prometheus.Gauge
	SensorsBound  *prometheus.GaugeVec
	SnapshotsTotal prometheus.Counter
}

// New creates and registers the bridge collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		AttachAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensor_bridge",
			Name:      "attach_attempts_total",
			Help:      "Driver pool attach attempts by result.",
		}, []string{"result"}),

		AttachDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sensor_bridge",
			Name:      "attach_duration_seconds",
			Help:      "Time spent resolving and validating the driver pool.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),

		AdvanceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensor_bridge",
			Name:      "advance_total",
			Help:      "Polling steps by result.",
		}, []string{"result"}),

		AdvanceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sensor_bridge",
			Name:      "advance_duration_seconds",
			Help:      "Duration of one polling step across all sensors.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),

		SensorReadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensor_bridge",
			Name:      "sensor_reads_total",
			Help:      "Individual sensor reads by category and result.",
		}, []string{"category", "result"}),

		BridgeReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensor_bridge",
			Name:      "ready",
			Help:      "1 when every enabled category is attached.",
		}),

		SensorsBound: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sensor_bridge",
			Name:      "sensors_bound",
			Help:      "Sensors bound per category in the current attach generation.",
		}, []string{"category"}),

		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensor_bridge",
			Name:      "snapshots_published_total",
			Help:      "Snapshots handed to the streaming layer.",
		}),
	}

	m.registry.MustRegister(
		m.AttachAttempts,
		m.AttachDuration,
		m.AdvanceTotal,
		m.AdvanceDuration,
		m.SensorReadsTotal,
		m.BridgeReady,
		m.SensorsBound,
		m.SnapshotsTotal,
	)
	return m
}

// Handler returns the /metrics HTTP handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterClientCount tracks the streaming server's WebSocket client count
// through a gauge sampled at scrape time.
func (m *Metrics) RegisterClientCount(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "sensor_bridge",
		Name:      "websocket_clients",
		Help:      "Connected WebSocket clients.",
	}, func() float64 {
		return float64(count())
	}))
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveAttach records one attach attempt.
func (m *Metrics) ObserveAttach(d time.Duration, err error) {
	m.AttachAttempts.WithLabelValues(resultLabel(err)).Inc()
	m.AttachDuration.Observe(d.Seconds())
	if err != nil {
		m.BridgeReady.Set(0)
	} else {
		m.BridgeReady.Set(1)
	}
}

// ObserveAdvance records one polling step.
func (m *Metrics) ObserveAdvance(d time.Duration, err error) {
	m.AdvanceTotal.WithLabelValues(resultLabel(err)).Inc()
	m.AdvanceDuration.Observe(d.Seconds())
}

// ObserveRead records one sensor read.
func (m *Metrics) ObserveRead(category string, err error) {
	m.SensorReadsTotal.WithLabelValues(category, resultLabel(err)).Inc()
}

// SetBound records the sensor count bound for a category.
func (m *Metrics) SetBound(category string, n int) {
	m.SensorsBound.WithLabelValues(category).Set(float64(n))
}
