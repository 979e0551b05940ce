package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skypro1111/speech-transcriber/internal/audio"
	"github.com/skypro1111/speech-transcriber/internal/cache"
	"github.com/skypro1111/speech-transcriber/internal/config"
	"github.com/skypro1111/speech-transcriber/internal/metrics"
	"github.com/skypro1111/speech-transcriber/internal/transcript"
	"github.com/skypro1111/speech-transcriber/internal/transcription"
)

const (
	serviceName    = "transcribe"
	serviceVersion = "1.0.0"
)

const usage = `Usage: transcribe <MODEL_DIR> <WAV_FILE_PATH>

Transcribes an audio file in 30 second chunks and prints timestamped segments.
Settings are read from the YAML file named by TRANSCRIBE_CONFIG and from the
environment (TRANSCRIBE_DEVICE, TRANSCRIBE_BACKEND, TRANSCRIBE_LANGUAGE, ...).
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case errors.Is(err, errUsage):
		os.Exit(2)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) != 2 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	modelDir, audioPath := args[0], args[1]

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closeLog := initLogger(cfg.Logging, stderr)
	defer closeLog()
	logger.Debug("Configuration loaded",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("backend", cfg.Backend),
		slog.String("device", cfg.Device),
		slog.Float64("chunk_duration_sec", cfg.Chunking.DurationSec),
		slog.Int("max_new_tokens", cfg.Generation.MaxNewTokens),
		slog.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	started := time.Now()
	appMetrics := metrics.NewMetrics()
	defer func() {
		appMetrics.SetRunDuration(time.Since(started))
		exportMetrics(cfg.Metrics, appMetrics, logger)
	}()

	progress := transcript.NewProgress(stdout)

	progress.CreatingPipeline(cfg.Device, modelDir)
	opts := backendOptions(cfg, modelDir)
	backend, err := transcription.New(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			logger.Warn("Error closing backend", slog.String("error", cerr.Error()))
		}
	}()

	var transcriber transcription.Transcriber = backend
	if cfg.Cache.Enabled {
		store, err := cache.Open(ctx, cfg.Cache.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		transcriber = cache.Wrap(backend, store, opts.CacheIdentity(), logger, appMetrics)
	}

	progress.ReadingAudio(audioPath)
	loader := audio.NewLoader(cfg.Audio.FFmpegPath, logger)
	loader.SampleRate = cfg.Audio.SampleRate
	loader.TempDir = cfg.Audio.TempDir

	decoded, err := loader.Load(ctx, audioPath)
	if err != nil {
		return err
	}

	chunkDuration := cfg.Chunking.GetChunkDuration()
	generation := transcription.DefaultGenerationConfig()
	generation.MaxNewTokens = cfg.Generation.MaxNewTokens
	generation.Language = cfg.Generation.Language

	driver, err := transcript.NewDriver(transcript.Config{
		ChunkLength:   audio.ChunkLengthFor(decoded.SampleRate, chunkDuration),
		ChunkDuration: chunkDuration,
		SampleRate:    decoded.SampleRate,
		Generation:    generation,
	}, transcriber, stdout, logger, appMetrics)
	if err != nil {
		return err
	}

	progress.Generating()
	summary, err := driver.Run(ctx, decoded.Samples)
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}
	progress.Done()

	logger.Info("Transcription finished",
		slog.String("backend", backend.Name()),
		slog.Int("chunks", summary.Chunks),
		slog.Int("segments", summary.Segments),
		slog.Duration("audio", decoded.Duration()),
		slog.Duration("took", time.Since(started)),
	)
	return nil
}

func backendOptions(cfg *config.Config, modelDir string) transcription.Options {
	return transcription.Options{
		Backend: cfg.Backend,
		OpenVINO: transcription.OpenVINOConfig{
			Python:   cfg.OpenVINO.Python,
			ModelDir: modelDir,
			Device:   cfg.Device,
			TempDir:  cfg.Audio.TempDir,
		},
		HTTP: transcription.HTTPConfig{
			Endpoint:     cfg.HTTP.Endpoint,
			APIKey:       cfg.HTTP.APIKey,
			Timeout:      cfg.HTTP.GetTimeoutDuration(),
			MaxRetries:   cfg.HTTP.MaxRetries,
			RetryBackoff: cfg.HTTP.GetRetryBackoff(),
			SampleRate:   cfg.Audio.SampleRate,
			Model:        firstNonEmpty(cfg.HTTP.Model, modelDir),
			Device:       cfg.Device,
		},
		OpenAI: transcription.OpenAIConfig{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			SampleRate: cfg.Audio.SampleRate,
		},
		GCP: transcription.GCPConfig{
			Credentials:  cfg.GCP.Credentials,
			LanguageCode: cfg.GCP.LanguageCode,
			Model:        cfg.GCP.Model,
			SampleRate:   cfg.Audio.SampleRate,
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// exportMetrics writes the run's metrics wherever configured; failures are only logged
func exportMetrics(cfg config.MetricsConfig, m *metrics.Metrics, logger *slog.Logger) {
	if cfg.TextfilePath != "" {
		if err := m.WriteTextfile(cfg.TextfilePath); err != nil {
			logger.Warn("Metrics export failed", slog.String("error", err.Error()))
		}
	}

	if cfg.PushgatewayURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GetPushTimeout())
		defer cancel()
		if err := m.Push(ctx, cfg.PushgatewayURL, cfg.Job); err != nil {
			logger.Warn("Metrics push failed", slog.String("error", err.Error()))
		}
	}
}

// initLogger creates and configures the structured logger based on configuration.
// The returned func closes the log file, if one was opened.
func initLogger(cfg config.LoggingConfig, stderr io.Writer) (*slog.Logger, func()) {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// stdout carries the transcript, so logs default to stderr
	var output io.Writer
	closeLog := func() {}
	switch cfg.Output {
	case "stderr", "":
		output = stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = stderr
		} else {
			output = file
			closeLog = func() {
				if err := file.Close(); err != nil {
					fmt.Fprintf(stderr, "Failed to close log file %s: %v\n", cfg.Output, err)
				}
			}
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler), closeLog
}
