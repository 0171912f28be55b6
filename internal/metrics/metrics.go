// Package metrics exposes Prometheus counters and gauges for the relay,
// grounded on other_examples/2a493783_warpcomdev-asicamera2's jpeg-pool.go,
// which instruments a comparable frame-compression pipeline with
// promauto-registered vectors keyed by camera name.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesProduced counts successfully encoded frames per camera.
	FramesProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camera_relay_frames_produced_total",
			Help: "Frames successfully encoded and broadcast, per camera.",
		},
		[]string{"camera"},
	)

	// FramesDropped counts per-client drops caused by a full ClientSink
	// (I3: slow-consumer isolation).
	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camera_relay_frames_dropped_total",
			Help: "Frames dropped for a single slow client (queue full).",
		},
		[]string{"camera"},
	)

	// ReadErrors counts transient upstream read failures.
	ReadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camera_relay_read_errors_total",
			Help: "Transient upstream read errors, per camera.",
		},
		[]string{"camera"},
	)

	// ActiveClients gauges the current subscriber count per camera.
	ActiveClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "camera_relay_active_clients",
			Help: "Current subscribed HTTP clients, per camera.",
		},
		[]string{"camera"},
	)
)
