package transcription

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/skypro1111/speech-transcriber/internal/audio"
)

//go:embed assets/openvino_worker.py
var openVINOWorkerScript []byte

// OpenVINOConfig configures the whisper pipeline worker
type OpenVINOConfig struct {
	Python   string // interpreter with openvino_genai installed
	ModelDir string
	Device   string // CPU, GPU or NPU
	TempDir  string
}

// OpenVINOWorker runs a WhisperPipeline in a long-lived Python process and
// exchanges line-delimited JSON with it. Calls must not be made concurrently.
type OpenVINOWorker struct {
	config OpenVINOConfig
	logger *slog.Logger

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	decoder *json.Decoder
	workDir string
	nextID  int
	stderr  chan struct{}
}

type workerRequest struct {
	ID          int              `json:"id"`
	SamplesPath string           `json:"samples_path"`
	Config      GenerationConfig `json:"config"`
}

type workerMessage struct {
	ID     int    `json:"id"`
	Event  string `json:"event,omitempty"`
	Error  string `json:"error,omitempty"`
	Text   string `json:"text"`
	Chunks []struct {
		StartTS float64 `json:"start_ts"`
		EndTS   float64 `json:"end_ts"`
		Text    string  `json:"text"`
	} `json:"chunks"`
}

// NewOpenVINOWorker starts the worker and blocks until the pipeline is built
func NewOpenVINOWorker(ctx context.Context, config OpenVINOConfig, logger *slog.Logger) (*OpenVINOWorker, error) {
	if config.ModelDir == "" {
		return nil, fmt.Errorf("model directory cannot be empty")
	}
	if info, err := os.Stat(config.ModelDir); err != nil {
		return nil, fmt.Errorf("model directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("model directory %s is not a directory", config.ModelDir)
	}
	if config.Python == "" {
		config.Python = "python3"
	}
	if config.Device == "" {
		config.Device = "CPU"
	}
	if logger == nil {
		logger = slog.Default()
	}

	workDir, err := os.MkdirTemp(config.TempDir, "openvino-worker-")
	if err != nil {
		return nil, fmt.Errorf("failed to create worker dir: %w", err)
	}

	scriptPath := filepath.Join(workDir, "openvino_worker.py")
	if err := os.WriteFile(scriptPath, openVINOWorkerScript, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("write worker script: %w", err)
	}

	w := &OpenVINOWorker{
		config:  config,
		logger:  logger.With(slog.String("backend", "openvino")),
		workDir: workDir,
		stderr:  make(chan struct{}),
	}

	if err := w.start(ctx, scriptPath); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	return w, nil
}

func (w *OpenVINOWorker) start(ctx context.Context, scriptPath string) error {
	cmd := exec.CommandContext(ctx, w.config.Python, scriptPath,
		"--model-dir", w.config.ModelDir,
		"--device", w.config.Device,
	)
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("worker stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", w.config.Python, err)
	}

	w.cmd = cmd
	w.stdin = stdin
	w.decoder = json.NewDecoder(bufio.NewReader(stdout))

	// Runtime and model loader output goes to the debug log
	go func() {
		defer close(w.stderr)
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			w.logger.Debug("worker", slog.String("line", scanner.Text()))
		}
	}()

	var ready workerMessage
	if err := w.decoder.Decode(&ready); err != nil {
		waitErr := w.wait()
		return fmt.Errorf("pipeline creation failed: worker exited before ready: %w", errors.Join(err, waitErr))
	}
	if ready.Event == "error" {
		_ = w.wait()
		return fmt.Errorf("pipeline creation failed: %s", ready.Error)
	}
	if ready.Event != "ready" {
		_ = w.wait()
		return fmt.Errorf("pipeline creation failed: unexpected worker event %q", ready.Event)
	}

	w.logger.Info("Whisper pipeline ready",
		slog.String("model_dir", w.config.ModelDir),
		slog.String("device", w.config.Device),
	)
	return nil
}

// Name identifies the backend in logs and cache keys
func (w *OpenVINOWorker) Name() string {
	return "openvino:" + w.config.Device
}

// Transcribe runs the pipeline on one chunk
func (w *OpenVINOWorker) Transcribe(ctx context.Context, samples []float32, cfg GenerationConfig) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.nextID++
	id := w.nextID

	samplesPath := filepath.Join(w.workDir, fmt.Sprintf("chunk-%06d.f32", id))
	if err := os.WriteFile(samplesPath, audio.EncodeFloat32(samples), 0o600); err != nil {
		return nil, fmt.Errorf("write chunk samples: %w", err)
	}
	defer os.Remove(samplesPath)

	cfg.Language = whisperLanguageToken(cfg.Language)
	req := workerRequest{ID: id, SamplesPath: samplesPath, Config: cfg}
	enc := json.NewEncoder(w.stdin)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(req); err != nil {
		return nil, fmt.Errorf("send request to worker: %w", err)
	}

	var msg workerMessage
	if err := w.decoder.Decode(&msg); err != nil {
		return nil, fmt.Errorf("read worker response: %w", err)
	}
	if msg.Error != "" {
		return nil, fmt.Errorf("whisper pipeline: %s", msg.Error)
	}
	if msg.ID != id {
		return nil, fmt.Errorf("worker answered request %d, expected %d", msg.ID, id)
	}

	result := &Result{Text: strings.TrimSpace(msg.Text)}
	for _, c := range msg.Chunks {
		result.Segments = append(result.Segments, Segment{Start: c.StartTS, End: c.EndTS, Text: c.Text})
	}
	return result, nil
}

// Close stops the worker and removes its scratch directory
func (w *OpenVINOWorker) Close() error {
	defer os.RemoveAll(w.workDir)

	if w.stdin != nil {
		_ = w.stdin.Close()
	}
	return w.wait()
}

func (w *OpenVINOWorker) wait() error {
	if w.cmd == nil {
		return nil
	}
	// Drain stderr before Wait closes the pipe
	<-w.stderr
	err := w.cmd.Wait()
	w.cmd = nil
	if err != nil {
		return fmt.Errorf("worker exited: %w", err)
	}
	return nil
}
