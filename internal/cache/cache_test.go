package cache

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skypro1111/speech-transcriber/internal/metrics"
	"github.com/skypro1111/speech-transcriber/internal/transcription"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache", "results.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestKey(t *testing.T) {
	cfg := transcription.DefaultGenerationConfig()
	samples := []float32{0.1, -0.2, 0.3}

	key := Key("openvino:NPU", cfg, samples)
	if len(key) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(key))
	}
	if key != Key("openvino:NPU", cfg, []float32{0.1, -0.2, 0.3}) {
		t.Error("Expected key to be deterministic")
	}

	other := cfg
	other.Language = "en"

	tests := []struct {
		name      string
		namespace string
		cfg       transcription.GenerationConfig
		samples   []float32
	}{
		{name: "namespace", namespace: "openai:whisper-1", cfg: cfg, samples: samples},
		{name: "config", namespace: "openvino:NPU", cfg: other, samples: samples},
		{name: "samples", namespace: "openvino:NPU", cfg: cfg, samples: []float32{0.1, -0.2, 0.30001}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Key(tt.namespace, tt.cfg, tt.samples) == key {
				t.Errorf("Expected %s to change the key", tt.name)
			}
		})
	}
}

func TestStoreGetPut(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("Expected miss without error, got ok=%v err=%v", ok, err)
	}

	result := &transcription.Result{
		Text:     "hello",
		Segments: []transcription.Segment{{Start: 1.0, End: 2.5, Text: " hello "}},
	}
	if err := store.Put(ctx, "k1", "test", result); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := store.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("Expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Text != "hello" || len(got.Segments) != 1 || got.Segments[0] != result.Segments[0] {
		t.Errorf("Unexpected cached result: %+v", got)
	}

	// Replacing keeps a single row
	if err := store.Put(ctx, "k1", "test", &transcription.Result{Text: "again"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if n, err := store.Len(ctx); err != nil || n != 1 {
		t.Errorf("Expected 1 row, got %d (err %v)", n, err)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestWrapServesRepeatedChunks(t *testing.T) {
	calls := 0
	next := transcription.TranscriberFunc(func(ctx context.Context, samples []float32, cfg transcription.GenerationConfig) (*transcription.Result, error) {
		calls++
		return &transcription.Result{Segments: []transcription.Segment{{Start: 0, End: 1, Text: "x"}}}, nil
	})

	m := metrics.NewMetrics()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cached := Wrap(next, openTestStore(t), "fake", logger, m)

	cfg := transcription.DefaultGenerationConfig()
	for i := 0; i < 3; i++ {
		result, err := cached.Transcribe(context.Background(), []float32{0.5, 0.25}, cfg)
		if err != nil {
			t.Fatalf("Transcribe failed: %v", err)
		}
		if len(result.Segments) != 1 || result.Segments[0].Text != "x" {
			t.Errorf("Unexpected result: %+v", result)
		}
	}

	if calls != 1 {
		t.Errorf("Expected 1 backend call, got %d", calls)
	}
	if got := testutil.ToFloat64(m.CacheHits); got != 2 {
		t.Errorf("Expected 2 cache hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheMisses); got != 1 {
		t.Errorf("Expected 1 cache miss, got %v", got)
	}
}

func TestWrapDoesNotCacheErrors(t *testing.T) {
	errBackend := errors.New("backend down")
	calls := 0
	next := transcription.TranscriberFunc(func(ctx context.Context, samples []float32, cfg transcription.GenerationConfig) (*transcription.Result, error) {
		calls++
		return nil, errBackend
	})

	store := openTestStore(t)
	cached := Wrap(next, store, "fake", nil, nil)

	for i := 0; i < 2; i++ {
		if _, err := cached.Transcribe(context.Background(), []float32{1}, transcription.DefaultGenerationConfig()); !errors.Is(err, errBackend) {
			t.Errorf("Expected backend error, got %v", err)
		}
	}

	if calls != 2 {
		t.Errorf("Expected every call to reach the backend, got %d", calls)
	}
	if n, _ := store.Len(context.Background()); n != 0 {
		t.Errorf("Expected empty cache, got %d rows", n)
	}
}
