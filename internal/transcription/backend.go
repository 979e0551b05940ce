package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

const (
	BackendOpenVINO = "openvino"
	BackendHTTP     = "http"
	BackendOpenAI   = "openai"
	BackendGCP      = "gcp"
)

// Options selects and configures one inference backend
type Options struct {
	Backend  string
	OpenVINO OpenVINOConfig
	HTTP     HTTPConfig
	OpenAI   OpenAIConfig
	GCP      GCPConfig
}

// New builds the configured backend. Construction failures (bad model
// directory, unsupported device, missing credentials) are returned before any
// audio is processed.
func New(ctx context.Context, opts Options, logger *slog.Logger) (Backend, error) {
	var (
		backend Backend
		err     error
	)

	name := opts.backendName()

	switch name {
	case BackendOpenVINO:
		var w *OpenVINOWorker
		if w, err = NewOpenVINOWorker(ctx, opts.OpenVINO, logger); err == nil {
			backend = w
		}
	case BackendHTTP:
		var c *Client
		if c, err = NewClient(opts.HTTP); err == nil {
			backend = c
		}
	case BackendOpenAI:
		var o *OpenAIBackend
		if o, err = NewOpenAIBackend(opts.OpenAI); err == nil {
			backend = o
		}
	case BackendGCP:
		var g *GCPBackend
		if g, err = NewGCPBackend(ctx, opts.GCP); err == nil {
			backend = g
		}
	default:
		return nil, fmt.Errorf("unknown backend %q (supported: openvino, http, openai, gcp)", opts.Backend)
	}

	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", name, err)
	}
	return backend, nil
}

// CacheIdentity names the backend together with the model and settings that
// determine its output, so cached results from one model are never served
// for another.
func (o Options) CacheIdentity() string {
	parts := []string{o.backendName()}

	switch parts[0] {
	case BackendOpenVINO:
		modelDir := o.OpenVINO.ModelDir
		if abs, err := filepath.Abs(modelDir); err == nil {
			modelDir = abs
		}
		parts = append(parts, "model="+modelDir, "device="+o.OpenVINO.Device)
	case BackendHTTP:
		parts = append(parts, "endpoint="+o.HTTP.Endpoint, "model="+o.HTTP.Model, "device="+o.HTTP.Device)
	case BackendOpenAI:
		parts = append(parts, "base_url="+o.OpenAI.BaseURL, "model="+o.OpenAI.Model)
	case BackendGCP:
		parts = append(parts, "model="+o.GCP.Model, "language="+o.GCP.LanguageCode)
	}

	return strings.Join(parts, "|")
}

func (o Options) backendName() string {
	name := strings.ToLower(strings.TrimSpace(o.Backend))
	if name == "" {
		return BackendOpenVINO
	}
	return name
}
