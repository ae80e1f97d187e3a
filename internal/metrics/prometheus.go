// Package metrics counts pipeline work. A batch run has no scrape window, so
// the registry is written as a node-exporter textfile when the run ends.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	registry *prometheus.Registry

	VideosProcessed *prometheus.CounterVec
	Frames          *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	VocabularySize  prometheus.Histogram
	SinkErrors      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		VideosProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "framevocab_videos_processed_total",
			Help: "Videos processed, by terminal status and failure reason",
		}, []string{"status", "reason"}),
		Frames: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "framevocab_frames_total",
			Help: "Sampled frames, by result (extracted, extract_failed, recognized, recognize_failed)",
		}, []string{"result"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "framevocab_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, []string{"stage"}),
		VocabularySize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "framevocab_vocabulary_size",
			Help:    "Number of distinct tokens per successful video",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		SinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "framevocab_sink_errors_total",
			Help: "Failed outcome publications, by sink",
		}, []string{"sink"}),
	}
}

// Gatherer exposes the registry for tests and exporters.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
