package transcription

import (
	"context"
	"strings"
)

const (
	TaskTranscribe = "transcribe"
	TaskTranslate  = "translate"

	// DefaultMaxNewTokens bounds decoding per chunk; raise it for dense speech
	DefaultMaxNewTokens = 100
)

// GenerationConfig is passed through to the inference engine unchanged
type GenerationConfig struct {
	MaxNewTokens     int    `json:"max_new_tokens"`
	Task             string `json:"task"`
	Language         string `json:"language,omitempty"` // empty lets the model detect the language
	ReturnTimestamps bool   `json:"return_timestamps"`
}

// DefaultGenerationConfig returns the settings the transcription driver runs with
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxNewTokens:     DefaultMaxNewTokens,
		Task:             TaskTranscribe,
		ReturnTimestamps: true,
	}
}

// Segment is a span of recognized text. Start and End are seconds relative to the chunk.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the outcome of transcribing one chunk
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
}

// Transcriber converts a chunk of mono float32 samples to timestamped text
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, cfg GenerationConfig) (*Result, error)
}

// TranscriberFunc adapts a function to the Transcriber interface
type TranscriberFunc func(ctx context.Context, samples []float32, cfg GenerationConfig) (*Result, error)

// Transcribe calls f
func (f TranscriberFunc) Transcribe(ctx context.Context, samples []float32, cfg GenerationConfig) (*Result, error) {
	return f(ctx, samples, cfg)
}

// Backend is a Transcriber that owns external resources
type Backend interface {
	Transcriber
	Name() string
	Close() error
}

// whisperLanguageToken converts "en" into the "<|en|>" form whisper pipelines expect
func whisperLanguageToken(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.HasPrefix(lang, "<|") {
		return lang
	}
	return "<|" + lang + "|>"
}

// plainLanguage strips the whisper token wrapper, "<|en|>" becomes "en"
func plainLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	lang = strings.TrimPrefix(lang, "<|")
	return strings.TrimSuffix(lang, "|>")
}
