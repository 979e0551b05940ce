package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics contains all Prometheus metrics for a transcription run
type Metrics struct {
	registry *prometheus.Registry

	// Chunk metrics
	ChunksProcessed prometheus.Counter
	AudioSeconds    prometheus.Counter
	ChunkDuration   prometheus.Histogram

	// Inference metrics
	InferenceDuration prometheus.Histogram
	InferenceFailures prometheus.Counter
	SegmentsEmitted   prometheus.Counter

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	RunDuration prometheus.Gauge
}

// NewMetrics creates all metrics on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ChunksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_chunks_processed_total",
			Help: "Total number of audio chunks sent to the inference backend",
		}),
		AudioSeconds: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_audio_seconds_total",
			Help: "Seconds of audio transcribed",
		}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcribe_chunk_duration_seconds",
			Help:    "Real duration of processed chunks",
			Buckets: prometheus.LinearBuckets(5, 5, 12), // 5s to 60s
		}),

		InferenceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcribe_inference_duration_seconds",
			Help:    "Time spent in the inference backend per chunk",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}),
		InferenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_inference_failures_total",
			Help: "Total number of failed inference calls",
		}),
		SegmentsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_segments_emitted_total",
			Help: "Total number of transcript segments printed",
		}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_cache_hits_total",
			Help: "Chunks served from the result cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcribe_cache_misses_total",
			Help: "Chunks not found in the result cache",
		}),

		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "transcribe_run_duration_seconds",
			Help: "Wall-clock duration of the last run",
		}),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordChunk records a successfully transcribed chunk
func (m *Metrics) RecordChunk(audioSeconds float64, inference time.Duration, segments int) {
	m.ChunksProcessed.Inc()
	m.AudioSeconds.Add(audioSeconds)
	m.ChunkDuration.Observe(audioSeconds)
	m.InferenceDuration.Observe(inference.Seconds())
	m.SegmentsEmitted.Add(float64(segments))
}

// RecordInferenceFailure increments the inference failures counter
func (m *Metrics) RecordInferenceFailure() {
	m.InferenceFailures.Inc()
}

// RecordCacheHit increments the cache hits counter
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss increments the cache misses counter
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// SetRunDuration records how long the whole run took
func (m *Metrics) SetRunDuration(d time.Duration) {
	m.RunDuration.Set(d.Seconds())
}

// WriteTextfile writes the registry in the text exposition format for the
// node exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Push sends the registry to a Pushgateway under the given job name
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if job == "" {
		job = "transcribe"
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
