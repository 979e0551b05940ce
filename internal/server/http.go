package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/speech-transcriber/internal/transcription"
)

// Config contains stub server configuration
type Config struct {
	Address string
	Port    int
	Text    string // returned for every chunk
}

// StubServer answers transcription requests with a fixed transcript
type StubServer struct {
	server   *http.Server
	logger   *slog.Logger
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	served   atomic.Uint64

	startTime time.Time
}

// NewStubServer creates the server and its routes
func NewStubServer(cfg Config, logger *slog.Logger) *StubServer {
	if logger == nil {
		logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	s := &StubServer{
		logger:   logger,
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stub_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stub_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		startTime: time.Now(),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      s.routes(cfg.Text),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, for tests and embedding
func (s *StubServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *StubServer) routes(text string) http.Handler {
	mux := http.NewServeMux()

	stub := &transcription.StubHandler{Text: text, Logger: s.logger}
	mux.HandleFunc("/transcribe", s.withMetrics("/transcribe", func(w http.ResponseWriter, r *http.Request) {
		stub.ServeHTTP(w, r)
		s.served.Add(1)
	}))
	mux.HandleFunc("/health", s.withMetrics("/health", s.handleHealth))

	// Prometheus metrics endpoint (not instrumented itself)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return mux
}

// withMetrics wraps an HTTP handler with metrics collection
func (s *StubServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		s.requests.WithLabelValues(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode)).Inc()
		s.duration.WithLabelValues(r.Method, endpoint).Observe(time.Since(startTime).Seconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start serves in the background
func (s *StubServer) Start() error {
	s.logger.Info("Starting stub transcription server",
		slog.String("address", s.server.Addr),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the server
func (s *StubServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping stub transcription server...")

	return s.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (s *StubServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC(),
		"uptime":          time.Since(s.startTime).String(),
		"chunks_answered": s.served.Load(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
