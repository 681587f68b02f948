// Package metrics exports service metrics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eyescreen_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eyescreen_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"route", "method"},
	)

	// AnalysesTotal counts finished lazy-eye analyses by input source and
	// risk level.
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eyescreen_analyses_total",
			Help: "Total number of completed lazy-eye analyses",
		},
		[]string{"source", "risk_level"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eyescreen_analysis_duration_seconds",
			Help:    "Wall time of a full video analysis in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	FramesAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eyescreen_frames_analyzed_total",
			Help: "Total number of sampled frames fed to the window controller",
		},
	)

	DetectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eyescreen_lazy_eye_detections_total",
			Help: "Total number of positive lazy-eye windows",
		},
	)

	FaceDetectionRate = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eyescreen_face_detection_rate_percent",
			Help:    "Per-analysis share of sampled frames with a detected face",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	LeukocoriaChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eyescreen_leukocoria_checks_total",
			Help: "Total number of leukocoria photo checks",
		},
		[]string{"backend", "result"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eyescreen_report_cache_hits_total",
			Help: "Total number of report cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eyescreen_report_cache_misses_total",
			Help: "Total number of report cache misses",
		},
	)

	LiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eyescreen_live_sessions",
			Help: "Number of open live screening websocket sessions",
		},
	)

	SweptFiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eyescreen_upload_files_swept_total",
			Help: "Total number of stale upload files removed",
		},
	)
)

// ObserveAnalysis records the outcome of one finished analysis.
func ObserveAnalysis(source, riskLevel string, framesAnalyzed, detections int, faceRate, seconds float64) {
	AnalysesTotal.WithLabelValues(source, riskLevel).Inc()
	FramesAnalyzed.Add(float64(framesAnalyzed))
	DetectionsTotal.Add(float64(detections))
	FaceDetectionRate.Observe(faceRate)
	if seconds > 0 {
		AnalysisDuration.Observe(seconds)
	}
}
