// Package metrics holds the Prometheus collectors for boot animation generation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bootanim_generations_total",
		Help: "Total number of generation runs, by final status",
	}, []string{"status"})

	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bootanim_generation_duration_seconds",
		Help:    "Wall time of a generation run from start to archive",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bootanim_frames_total",
		Help: "Total number of frames produced, by extraction strategy",
	}, []string{"strategy"})

	SeekTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bootanim_seek_timeouts_total",
		Help: "Total number of seeks that exceeded the per-frame bound",
	})

	ActiveGenerations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bootanim_active_generations",
		Help: "Number of generation runs currently in flight",
	})
)
