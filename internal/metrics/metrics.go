package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	ImagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_pipeline_processed_total",
			Help: "Total number of images that reached a terminal state",
		},
		[]string{"status"},
	)

	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_pipeline_processing_duration_seconds",
			Help:    "Time spent processing one image",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_pipeline_queue_depth",
			Help: "Number of ids waiting in the job queue",
		},
	)
)

// API metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_pipeline_uploads_total",
			Help: "Total number of upload requests",
		},
		[]string{"result"},
	)
)
