package transcription

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/skypro1111/speech-transcriber/internal/audio"
)

// OpenAIConfig configures the OpenAI-compatible audio API backend
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // empty uses api.openai.com; set for compatible servers
	Model      string
	SampleRate int
}

// OpenAIBackend transcribes chunks through the audio transcriptions endpoint
type OpenAIBackend struct {
	client     *openai.Client
	model      string
	sampleRate int
}

// NewOpenAIBackend creates an OpenAI audio client
func NewOpenAIBackend(config OpenAIConfig) (*OpenAIBackend, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai api key cannot be empty")
	}
	if config.Model == "" {
		config.Model = openai.Whisper1
	}
	if config.SampleRate <= 0 {
		config.SampleRate = audio.DefaultSampleRate
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIBackend{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      config.Model,
		sampleRate: config.SampleRate,
	}, nil
}

// Name identifies the backend in logs and cache keys
func (o *OpenAIBackend) Name() string {
	return "openai:" + o.model
}

// Transcribe uploads the chunk as WAV and requests segment timestamps.
// MaxNewTokens has no equivalent in this API and is ignored.
func (o *OpenAIBackend) Transcribe(ctx context.Context, samples []float32, cfg GenerationConfig) (*Result, error) {
	wavData, err := audio.EncodeWAV(samples, o.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunk: %w", err)
	}

	req := openai.AudioRequest{
		Model:    o.model,
		FilePath: "chunk.wav",
		Reader:   bytes.NewReader(wavData),
		Format:   openai.AudioResponseFormatJSON,
		Language: plainLanguage(cfg.Language),
	}
	if cfg.ReturnTimestamps {
		req.Format = openai.AudioResponseFormatVerboseJSON
		req.TimestampGranularities = []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		}
	}

	var resp openai.AudioResponse
	switch cfg.Task {
	case TaskTranslate:
		// the translation endpoint always targets English
		req.Language = ""
		resp, err = o.client.CreateTranslation(ctx, req)
	case TaskTranscribe, "":
		resp, err = o.client.CreateTranscription(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported task %q", cfg.Task)
	}
	if err != nil {
		return nil, fmt.Errorf("openai audio request: %w", err)
	}

	result := &Result{Text: resp.Text}
	for _, s := range resp.Segments {
		result.Segments = append(result.Segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return result, nil
}

// Close is a no-op; the HTTP client holds no dedicated resources
func (o *OpenAIBackend) Close() error {
	return nil
}
