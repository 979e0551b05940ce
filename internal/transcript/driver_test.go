package transcript

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skypro1111/speech-transcriber/internal/metrics"
	"github.com/skypro1111/speech-transcriber/internal/transcription"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// firstChunkOnly returns one segment for the first chunk and nothing afterwards
func firstChunkOnly() (transcription.TranscriberFunc, *[]int) {
	var lengths []int
	fn := func(ctx context.Context, samples []float32, cfg transcription.GenerationConfig) (*transcription.Result, error) {
		lengths = append(lengths, len(samples))
		if len(lengths) == 1 {
			return &transcription.Result{
				Text:     "hello",
				Segments: []transcription.Segment{{Start: 1.0, End: 2.5, Text: " hello "}},
			}, nil
		}
		return &transcription.Result{}, nil
	}
	return fn, &lengths
}

func TestDriverEndToEnd(t *testing.T) {
	fn, lengths := firstChunkOnly()
	var out bytes.Buffer

	driver, err := NewDriver(DefaultConfig(), fn, &out, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}

	summary, err := driver.Run(context.Background(), make([]float32, 720000))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	expected := "00:01.000 --> 00:02.500\nhello\n\n"
	if out.String() != expected {
		t.Errorf("Expected output %q, got %q", expected, out.String())
	}

	if len(*lengths) != 2 || (*lengths)[0] != 480000 || (*lengths)[1] != 240000 {
		t.Errorf("Expected chunks of 480000 and 240000 samples, got %v", *lengths)
	}

	if summary.Chunks != 2 || summary.Segments != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if driver.State() != StateDone {
		t.Errorf("Expected state done, got %s", driver.State())
	}
}

func TestDriverElapsedIsNominal(t *testing.T) {
	tests := []struct {
		name    string
		samples int
		chunks  int
	}{
		{name: "empty", samples: 0, chunks: 0},
		{name: "single short chunk", samples: 16000, chunks: 1},
		{name: "exact multiple", samples: 960000, chunks: 2},
		{name: "short tail", samples: 960001, chunks: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			fn := transcription.TranscriberFunc(func(ctx context.Context, samples []float32, cfg transcription.GenerationConfig) (*transcription.Result, error) {
				calls++
				return nil, nil
			})

			driver, err := NewDriver(DefaultConfig(), fn, &bytes.Buffer{}, testLogger(), nil)
			if err != nil {
				t.Fatalf("NewDriver failed: %v", err)
			}

			summary, err := driver.Run(context.Background(), make([]float32, tt.samples))
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			if calls != tt.chunks {
				t.Errorf("Expected %d calls, got %d", tt.chunks, calls)
			}

			want := time.Duration(tt.chunks) * 30 * time.Second
			if driver.Elapsed() != want || summary.Elapsed != want {
				t.Errorf("Expected elapsed %v, got %v (summary %v)", want, driver.Elapsed(), summary.Elapsed)
			}
		})
	}
}

func TestDriverOffsetsSegmentsByElapsed(t *testing.T) {
	fn := transcription.TranscriberFunc(func(ctx context.Context, samples []float32, cfg transcription.GenerationConfig) (*transcription.Result, error) {
		return &transcription.Result{Segments: []transcription.Segment{
			{Start: 0.5, End: 29.999, Text: "a"},
		}}, nil
	})

	cfg := DefaultConfig()
	cfg.ChunkLength = 10
	cfg.ChunkDuration = 30 * time.Second

	var out bytes.Buffer
	driver, err := NewDriver(cfg, fn, &out, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}

	// 121 chunks put the last one past the hour mark
	if _, err := driver.Run(context.Background(), make([]float32, 1210)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	blocks := strings.Split(strings.TrimSuffix(out.String(), "\n\n"), "\n\n")
	if len(blocks) != 121 {
		t.Fatalf("Expected 121 segments, got %d", len(blocks))
	}

	checks := map[int]string{
		0:   "00:00.500 --> 00:29.999\na",
		1:   "00:30.500 --> 00:59.999",
		119: "59:30.500 --> 59:59.999",
		120: "01:00:00.500 --> 01:00:29.999",
	}
	for i, prefix := range checks {
		if !strings.HasPrefix(blocks[i], prefix) {
			t.Errorf("Segment %d: expected prefix %q, got %q", i, prefix, blocks[i])
		}
	}
}

func TestDriverPassesGenerationConfig(t *testing.T) {
	var got transcription.GenerationConfig
	fn := transcription.TranscriberFunc(func(ctx context.Context, samples []float32, cfg transcription.GenerationConfig) (*transcription.Result, error) {
		got = cfg
		return nil, nil
	})

	cfg := DefaultConfig()
	cfg.Generation.Language = "de"

	driver, err := NewDriver(cfg, fn, &bytes.Buffer{}, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	if _, err := driver.Run(context.Background(), []float32{0}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got.MaxNewTokens != 100 || got.Task != "transcribe" || !got.ReturnTimestamps || got.Language != "de" {
		t.Errorf("Unexpected generation config: %+v", got)
	}
}

func TestDriverErrorAbortsRun(t *testing.T) {
	errEngine := errors.New("resource exhausted")
	calls := 0
	fn := transcription.TranscriberFunc(func(ctx context.Context, samples []float32, cfg transcription.GenerationConfig) (*transcription.Result, error) {
		calls++
		if calls == 2 {
			return nil, errEngine
		}
		return &transcription.Result{Segments: []transcription.Segment{{Start: 0, End: 1, Text: "first"}}}, nil
	})

	m := metrics.NewMetrics()
	var out bytes.Buffer
	driver, err := NewDriver(DefaultConfig(), fn, &out, testLogger(), m)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}

	summary, err := driver.Run(context.Background(), make([]float32, 480000*3))
	if !errors.Is(err, errEngine) {
		t.Fatalf("Expected engine error, got %v", err)
	}
	if !strings.Contains(err.Error(), "chunk 1") {
		t.Errorf("Expected chunk index in error, got %v", err)
	}

	if calls != 2 {
		t.Errorf("Expected no calls after the failure, got %d", calls)
	}
	if out.String() != "00:00.000 --> 00:01.000\nfirst\n\n" {
		t.Errorf("Expected output of the first chunk to remain, got %q", out.String())
	}
	if summary.Chunks != 1 {
		t.Errorf("Expected 1 completed chunk, got %d", summary.Chunks)
	}
	if driver.State() != StateDone {
		t.Errorf("Expected state done, got %s", driver.State())
	}

	if got := testutil.ToFloat64(m.InferenceFailures); got != 1 {
		t.Errorf("Expected 1 inference failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.ChunksProcessed); got != 1 {
		t.Errorf("Expected 1 processed chunk, got %v", got)
	}
}

func TestDriverIdempotent(t *testing.T) {
	run := func() string {
		fn := transcription.TranscriberFunc(func(ctx context.Context, samples []float32, cfg transcription.GenerationConfig) (*transcription.Result, error) {
			return &transcription.Result{Segments: []transcription.Segment{
				{Start: 0.25, End: 3.125, Text: "  one "},
				{Start: 3.125, End: float64(len(samples)) / 16000, Text: "two"},
			}}, nil
		})

		var out bytes.Buffer
		driver, err := NewDriver(DefaultConfig(), fn, &out, testLogger(), nil)
		if err != nil {
			t.Fatalf("NewDriver failed: %v", err)
		}
		if _, err := driver.Run(context.Background(), make([]float32, 1000000)); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return out.String()
	}

	first := run()
	if first == "" {
		t.Fatal("Expected output")
	}
	if second := run(); second != first {
		t.Errorf("Expected identical output, got:\n%s\nvs\n%s", first, second)
	}
}

func TestDriverRunsOnce(t *testing.T) {
	fn := transcription.TranscriberFunc(func(ctx context.Context, samples []float32, cfg transcription.GenerationConfig) (*transcription.Result, error) {
		return nil, nil
	})

	driver, err := NewDriver(DefaultConfig(), fn, &bytes.Buffer{}, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	if driver.State() != StateIdle {
		t.Errorf("Expected state idle, got %s", driver.State())
	}

	if _, err := driver.Run(context.Background(), []float32{0}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := driver.Run(context.Background(), []float32{0}); err == nil {
		t.Error("Expected error on second run")
	}
}

func TestNewDriverValidation(t *testing.T) {
	fn := transcription.TranscriberFunc(func(ctx context.Context, samples []float32, cfg transcription.GenerationConfig) (*transcription.Result, error) {
		return nil, nil
	})

	tests := []struct {
		name        string
		config      Config
		transcriber transcription.Transcriber
		out         io.Writer
		errorMsg    string
	}{
		{name: "zero chunk length", config: Config{ChunkDuration: time.Second}, transcriber: fn, out: &bytes.Buffer{}, errorMsg: "chunk length"},
		{name: "zero chunk duration", config: Config{ChunkLength: 10}, transcriber: fn, out: &bytes.Buffer{}, errorMsg: "chunk duration"},
		{name: "nil transcriber", config: DefaultConfig(), transcriber: nil, out: &bytes.Buffer{}, errorMsg: "transcriber"},
		{name: "nil output writer", config: DefaultConfig(), transcriber: fn, out: nil, errorMsg: "output writer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDriver(tt.config, tt.transcriber, tt.out, nil, nil)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error message to contain '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}
