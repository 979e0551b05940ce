package transcript

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/skypro1111/speech-transcriber/internal/audio"
	"github.com/skypro1111/speech-transcriber/internal/metrics"
	"github.com/skypro1111/speech-transcriber/internal/transcription"
)

// State is the lifecycle position of a Driver
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDone
)

// String returns the state name for logging
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config contains the driver parameters
type Config struct {
	ChunkLength   int           // samples per chunk
	ChunkDuration time.Duration // nominal chunk duration used for elapsed time
	SampleRate    int           // used for chunk durations in logs and metrics
	Generation    transcription.GenerationConfig
}

// DefaultConfig returns a 30 second chunking at 16 kHz with the default generation settings
func DefaultConfig() Config {
	return Config{
		ChunkLength:   audio.ChunkLengthFor(audio.DefaultSampleRate, audio.DefaultChunkDuration),
		ChunkDuration: audio.DefaultChunkDuration,
		SampleRate:    audio.DefaultSampleRate,
		Generation:    transcription.DefaultGenerationConfig(),
	}
}

// Validate checks the driver configuration
func (c *Config) Validate() error {
	if c.ChunkLength <= 0 {
		return fmt.Errorf("chunk length must be positive, got %d", c.ChunkLength)
	}
	if c.ChunkDuration <= 0 {
		return fmt.Errorf("chunk duration must be positive, got %v", c.ChunkDuration)
	}
	return nil
}

// Summary describes a finished run
type Summary struct {
	Chunks   int
	Segments int
	Elapsed  time.Duration // nominal, chunks * chunk duration
}

// Driver runs the chunk loop and writes the transcript
type Driver struct {
	config      Config
	transcriber transcription.Transcriber
	out         io.Writer
	logger      *slog.Logger
	metrics     *metrics.Metrics

	state   State
	elapsed decimal.Decimal
}

// NewDriver creates a driver. metrics may be nil.
func NewDriver(config Config, transcriber transcription.Transcriber, out io.Writer, logger *slog.Logger, m *metrics.Metrics) (*Driver, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid driver config: %w", err)
	}
	if transcriber == nil {
		return nil, fmt.Errorf("transcriber cannot be nil")
	}
	if out == nil {
		return nil, fmt.Errorf("output writer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.SampleRate <= 0 {
		config.SampleRate = audio.DefaultSampleRate
	}

	return &Driver{
		config:      config,
		transcriber: transcriber,
		out:         out,
		logger:      logger,
		metrics:     m,
		state:       StateIdle,
		elapsed:     decimal.Zero,
	}, nil
}

// State returns the current lifecycle state
func (d *Driver) State() State {
	return d.state
}

// Elapsed returns the nominal time covered by the chunks processed so far
func (d *Driver) Elapsed() time.Duration {
	return time.Duration(d.elapsed.Shift(9).IntPart())
}

// Run transcribes samples chunk by chunk. A backend error aborts the run;
// segments already written stay written. A Driver runs once.
func (d *Driver) Run(ctx context.Context, samples []float32) (Summary, error) {
	if d.state != StateIdle {
		return Summary{}, fmt.Errorf("driver already %s", d.state)
	}
	d.state = StateRunning
	defer func() { d.state = StateDone }()

	chunker, err := audio.NewChunker(samples, audio.ChunkingConfig{ChunkLength: d.config.ChunkLength})
	if err != nil {
		return Summary{}, err
	}

	d.logger.Debug("Starting transcription",
		slog.Int("samples", len(samples)),
		slog.Int("chunks", chunker.Count()),
		slog.Int("chunk_length", d.config.ChunkLength),
	)

	step := decimal.NewFromFloat(d.config.ChunkDuration.Seconds())
	var summary Summary

	for {
		chunk, ok := chunker.Next()
		if !ok {
			break
		}

		started := time.Now()
		result, err := d.transcriber.Transcribe(ctx, chunk.Samples, d.config.Generation)
		if err != nil {
			if d.metrics != nil {
				d.metrics.RecordInferenceFailure()
			}
			return summary, fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}
		inference := time.Since(started)

		segments := 0
		if result != nil {
			segments = len(result.Segments)
			if err := d.writeSegments(result.Segments); err != nil {
				return summary, fmt.Errorf("write transcript: %w", err)
			}
		}

		chunkSeconds := float64(chunk.Len()) / float64(d.config.SampleRate)
		d.logger.Debug("Chunk transcribed",
			slog.Int("chunk", chunk.Index),
			slog.Int("offset", chunk.Offset),
			slog.Float64("duration_sec", chunkSeconds),
			slog.Int("segments", segments),
			slog.Duration("inference", inference),
		)
		if d.metrics != nil {
			d.metrics.RecordChunk(chunkSeconds, inference, segments)
		}

		// Nominal duration, even for a short final chunk
		d.elapsed = d.elapsed.Add(step)
		summary.Chunks++
		summary.Segments += segments
	}

	summary.Elapsed = d.Elapsed()
	return summary, nil
}

func (d *Driver) writeSegments(segments []transcription.Segment) error {
	for _, seg := range segments {
		start := d.elapsed.Add(toDecimal(seg.Start))
		end := d.elapsed.Add(toDecimal(seg.End))

		if _, err := fmt.Fprintf(d.out, "%s --> %s\n%s\n\n",
			FormatDecimal(start), FormatDecimal(end), strings.TrimSpace(seg.Text)); err != nil {
			return err
		}
	}
	return nil
}
