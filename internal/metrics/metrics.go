// Package metrics exposes Prometheus collectors for frame pacing and drawing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spillmap",
		Subsystem: "frames",
		Name:      "produced_total",
		Help:      "Frames handed to the scheduler",
	}, []string{"view"})

	FramesReplayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spillmap",
		Subsystem: "frames",
		Name:      "replayed_total",
		Help:      "Frames served from already loaded images",
	}, []string{"view"})

	FramesDisplayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spillmap",
		Subsystem: "frames",
		Name:      "displayed_total",
		Help:      "Frames promoted to the displayed frame",
	}, []string{"view"})

	FrameShowMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spillmap",
		Subsystem: "frames",
		Name:      "show_misses_total",
		Help:      "Show actions whose frame could not be found",
	}, []string{"view"})

	ImageLoadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spillmap",
		Subsystem: "images",
		Name:      "load_failures_total",
		Help:      "Frame and background images that failed or timed out",
	}, []string{"view", "kind"})

	DisplayDelay = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spillmap",
		Subsystem: "frames",
		Name:      "display_delay_seconds",
		Help:      "Delay scheduled between load completion and display",
		Buckets:   []float64{0, 0.025, 0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 1},
	}, []string{"view"})

	SpillsDrawn = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spillmap",
		Subsystem: "drawing",
		Name:      "spills_drawn_total",
		Help:      "Completed spill drag gestures",
	}, []string{"view"})

	ModeChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spillmap",
		Subsystem: "cursor",
		Name:      "mode_changes_total",
		Help:      "Cursor mode transitions by target mode",
	}, []string{"view", "mode"})
)

// ObserveDelay records a scheduled display delay.
func ObserveDelay(view string, d time.Duration) {
	DisplayDelay.WithLabelValues(view).Observe(d.Seconds())
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
