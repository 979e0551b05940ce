package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSampleRate is the rate whisper pipelines expect
const DefaultSampleRate = 16000

// DecodeError reports an audio file that could not be opened or decoded
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Loader reads audio files into normalized mono samples at SampleRate
type Loader struct {
	SampleRate int
	FFmpegPath string // empty disables conversion of non-WAV or off-rate input
	TempDir    string // empty uses the system temp dir
	Logger     *slog.Logger
}

// NewLoader creates a loader with the default 16 kHz target rate
func NewLoader(ffmpegPath string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		SampleRate: DefaultSampleRate,
		FFmpegPath: ffmpegPath,
		Logger:     logger,
	}
}

// Load decodes path and returns its samples at the loader's sample rate
func (l *Loader) Load(ctx context.Context, path string) (*Audio, error) {
	if l.SampleRate <= 0 {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("sample rate must be positive, got %d", l.SampleRate)}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("is a directory")}
	}

	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return l.loadConverted(ctx, path, "input is not a WAV file")
	}

	a, err := decodeFile(path)
	switch {
	case errors.Is(err, errNeedsConversion):
		return l.loadConverted(ctx, path, err.Error())
	case err != nil:
		return nil, &DecodeError{Path: path, Err: err}
	case a.SampleRate != l.SampleRate:
		return l.loadConverted(ctx, path, fmt.Sprintf("sample rate %d Hz differs from %d Hz", a.SampleRate, l.SampleRate))
	}

	l.logger().Debug("Audio decoded",
		slog.String("path", path),
		slog.Int("samples", len(a.Samples)),
		slog.Int("channels", a.Channels),
		slog.Int("bit_depth", a.BitDepth),
		slog.Duration("duration", a.Duration()),
	)
	return a, nil
}

// loadConverted runs the input through ffmpeg and decodes the resulting WAV
func (l *Loader) loadConverted(ctx context.Context, path, reason string) (*Audio, error) {
	if l.FFmpegPath == "" {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("%s and ffmpeg conversion is disabled", reason)}
	}

	l.logger().Info("Converting audio with ffmpeg",
		slog.String("path", path),
		slog.String("reason", reason),
		slog.Int("sample_rate", l.SampleRate),
	)

	converted, cleanup, err := ConvertToWAV(ctx, l.FFmpegPath, path, l.TempDir, l.SampleRate)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer cleanup()

	a, err := decodeFile(converted)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("decoding converted audio: %w", err)}
	}
	if a.SampleRate != l.SampleRate {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("converted audio has sample rate %d, want %d", a.SampleRate, l.SampleRate)}
	}

	return a, nil
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func decodeFile(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeWAV(f)
}
