package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"lukechampine.com/blake3"

	"github.com/skypro1111/speech-transcriber/internal/audio"
	"github.com/skypro1111/speech-transcriber/internal/metrics"
	"github.com/skypro1111/speech-transcriber/internal/transcription"
)

// Key derives the cache key of one chunk
func Key(namespace string, cfg transcription.GenerationConfig, samples []float32) string {
	h := blake3.New(32, nil)

	h.Write([]byte(namespace))
	h.Write([]byte{0})
	cfgJSON, _ := json.Marshal(cfg)
	h.Write(cfgJSON)
	h.Write([]byte{0})
	h.Write(audio.EncodeFloat32(samples))

	return hex.EncodeToString(h.Sum(nil))
}

// Transcriber serves chunks from a Store and fills it on misses. Cache
// failures are logged and never fail the run.
type Transcriber struct {
	next      transcription.Transcriber
	store     *Store
	namespace string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Wrap decorates next with the store. namespace must identify everything that
// changes the backend's output (backend, model, device, endpoint), since
// entries are only separated by it. m may be nil.
func Wrap(next transcription.Transcriber, store *Store, namespace string, logger *slog.Logger, m *metrics.Metrics) *Transcriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{
		next:      next,
		store:     store,
		namespace: namespace,
		logger:    logger.With(slog.String("component", "cache")),
		metrics:   m,
	}
}

// Transcribe returns the cached result or calls the wrapped transcriber
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, cfg transcription.GenerationConfig) (*transcription.Result, error) {
	key := Key(t.namespace, cfg, samples)

	cached, ok, err := t.store.Get(ctx, key)
	if err != nil {
		t.logger.Warn("Cache lookup failed", slog.String("error", err.Error()))
	}
	if ok {
		t.logger.Debug("Cache hit", slog.String("key", key[:16]))
		if t.metrics != nil {
			t.metrics.RecordCacheHit()
		}
		return cached, nil
	}
	if t.metrics != nil {
		t.metrics.RecordCacheMiss()
	}

	result, err := t.next.Transcribe(ctx, samples, cfg)
	if err != nil {
		return nil, err
	}

	if result != nil {
		if err := t.store.Put(ctx, key, t.namespace, result); err != nil {
			t.logger.Warn("Cache store failed", slog.String("error", err.Error()))
		}
	}
	return result, nil
}
