package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the YAML config path
const EnvConfigPath = "TRANSCRIBE_CONFIG"

// Config represents the complete transcriber configuration
type Config struct {
	Device     string           `yaml:"device"`
	Backend    string           `yaml:"backend"`
	Audio      AudioConfig      `yaml:"audio"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Generation GenerationConfig `yaml:"generation"`
	OpenVINO   OpenVINOConfig   `yaml:"openvino"`
	HTTP       HTTPConfig       `yaml:"http"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	GCP        GCPConfig        `yaml:"gcp"`
	Cache      CacheConfig      `yaml:"cache"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AudioConfig contains audio loading parameters
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	FFmpegPath string `yaml:"ffmpeg_path"` // empty disables conversion of non-WAV input
	TempDir    string `yaml:"temp_dir"`
}

// ChunkingConfig contains chunking parameters
type ChunkingConfig struct {
	DurationSec float64 `yaml:"duration_sec"`
}

// GenerationConfig contains the settings passed to the inference backend
type GenerationConfig struct {
	MaxNewTokens int    `yaml:"max_new_tokens"`
	Language     string `yaml:"language"` // empty lets the model detect it
}

// OpenVINOConfig contains the whisper pipeline worker settings
type OpenVINOConfig struct {
	Python string `yaml:"python"`
}

// HTTPConfig contains the remote transcription service settings
type HTTPConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Timeout        int    `yaml:"timeout"` // seconds
	MaxRetries     int    `yaml:"max_retries"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms"`
}

// OpenAIConfig contains the OpenAI audio API settings
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// GCPConfig contains the Google Cloud Speech-to-Text settings
type GCPConfig struct {
	Credentials  string `yaml:"credentials"`
	LanguageCode string `yaml:"language_code"`
	Model        string `yaml:"model"`
}

// CacheConfig contains the chunk result cache settings
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig contains the metrics export settings
type MetricsConfig struct {
	TextfilePath   string `yaml:"textfile_path"`
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
	PushTimeout    int    `yaml:"push_timeout"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Device:  "NPU",
		Backend: "openvino",
		Audio: AudioConfig{
			SampleRate: 16000,
			FFmpegPath: "ffmpeg",
		},
		Chunking: ChunkingConfig{
			DurationSec: 30,
		},
		Generation: GenerationConfig{
			MaxNewTokens: 100,
		},
		OpenVINO: OpenVINOConfig{
			Python: "python3",
		},
		HTTP: HTTPConfig{
			Timeout:        60,
			MaxRetries:     0,
			RetryBackoffMs: 500,
		},
		GCP: GCPConfig{
			LanguageCode: "en-US",
		},
		Cache: CacheConfig{
			Path: ".transcribe-cache.db",
		},
		Metrics: MetricsConfig{
			Job:         "transcribe",
			PushTimeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file over the defaults, then applies
// environment overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// LoadFromEnv loads .env if present, then the file named by TRANSCRIBE_CONFIG,
// or the defaults when it is unset
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path := os.Getenv(EnvConfigPath); path != "" {
		return Load(path)
	}

	config := Default()
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// ApplyEnv overrides settings from environment variables
func (c *Config) ApplyEnv() {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	setString(&c.Device, "TRANSCRIBE_DEVICE")
	setString(&c.Backend, "TRANSCRIBE_BACKEND")
	setString(&c.Generation.Language, "TRANSCRIBE_LANGUAGE")
	setString(&c.Logging.Level, "TRANSCRIBE_LOG_LEVEL")
	setString(&c.HTTP.APIKey, "TRANSCRIBE_HTTP_API_KEY")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.GCP.Credentials, "GOOGLE_APPLICATION_CREDENTIALS")
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Device) == "" {
		return fmt.Errorf("device cannot be empty")
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Chunking.Validate(); err != nil {
		return fmt.Errorf("chunking config: %w", err)
	}

	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation config: %w", err)
	}

	switch strings.ToLower(c.Backend) {
	case "openvino":
	case "http":
		if err := c.HTTP.Validate(); err != nil {
			return fmt.Errorf("http config: %w", err)
		}
	case "openai":
		if err := c.OpenAI.Validate(); err != nil {
			return fmt.Errorf("openai config: %w", err)
		}
	case "gcp":
	default:
		return fmt.Errorf("backend must be one of [openvino, http, openai, gcp], got '%s'", c.Backend)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz for whisper models, got %d", a.SampleRate)
	}

	return nil
}

// Validate validates chunking configuration
func (c *ChunkingConfig) Validate() error {
	if c.DurationSec < 1 || c.DurationSec > 60 {
		return fmt.Errorf("duration_sec must be between 1 and 60 seconds, got %g", c.DurationSec)
	}

	return nil
}

// Validate validates generation configuration
func (g *GenerationConfig) Validate() error {
	if g.MaxNewTokens < 1 {
		return fmt.Errorf("max_new_tokens must be at least 1, got %d", g.MaxNewTokens)
	}

	return nil
}

// Validate validates HTTP transcription configuration
func (h *HTTPConfig) Validate() error {
	if h.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if h.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", h.Timeout)
	}

	if h.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", h.MaxRetries)
	}

	if h.RetryBackoffMs < 0 {
		return fmt.Errorf("retry_backoff_ms cannot be negative, got %d", h.RetryBackoffMs)
	}

	return nil
}

// Validate validates OpenAI configuration
func (o *OpenAIConfig) Validate() error {
	if o.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty (set OPENAI_API_KEY)")
	}

	return nil
}

// Validate validates cache configuration
func (c *CacheConfig) Validate() error {
	if c.Enabled && c.Path == "" {
		return fmt.Errorf("path cannot be empty when the cache is enabled")
	}

	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.PushgatewayURL != "" && m.PushTimeout < 1 {
		return fmt.Errorf("push_timeout must be at least 1 second, got %d", m.PushTimeout)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Anything other than stdout or stderr is a file path
	return nil
}

// GetChunkDuration returns the nominal chunk duration as a time.Duration
func (c *ChunkingConfig) GetChunkDuration() time.Duration {
	return time.Duration(c.DurationSec * float64(time.Second))
}

// GetTimeoutDuration returns the HTTP request timeout as a time.Duration
func (h *HTTPConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(h.Timeout) * time.Second
}

// GetRetryBackoff returns the first retry delay as a time.Duration
func (h *HTTPConfig) GetRetryBackoff() time.Duration {
	return time.Duration(h.RetryBackoffMs) * time.Millisecond
}

// GetPushTimeout returns the Pushgateway timeout as a time.Duration
func (m *MetricsConfig) GetPushTimeout() time.Duration {
	return time.Duration(m.PushTimeout) * time.Second
}
