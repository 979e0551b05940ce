package transcription

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/skypro1111/speech-transcriber/internal/audio"
)

// GCPConfig configures the Google Cloud Speech-to-Text backend
type GCPConfig struct {
	Credentials  string // file path or inline JSON; empty uses application default credentials
	LanguageCode string // BCP-47 fallback when no language hint is given
	Model        string
	SampleRate   int
}

// GCPBackend sends each chunk to the synchronous Recognize API, which
// accepts up to one minute of audio per request.
type GCPBackend struct {
	client *speech.Client
	config GCPConfig
}

// NewGCPBackend creates a Speech-to-Text client
func NewGCPBackend(ctx context.Context, config GCPConfig) (*GCPBackend, error) {
	if config.LanguageCode == "" {
		config.LanguageCode = "en-US"
	}
	if config.SampleRate <= 0 {
		config.SampleRate = audio.DefaultSampleRate
	}

	client, err := speech.NewClient(ctx, clientOptions(config.Credentials)...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &GCPBackend{client: client, config: config}, nil
}

func clientOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

// Name identifies the backend in logs and cache keys
func (g *GCPBackend) Name() string {
	if g.config.Model != "" {
		return "gcp:" + g.config.Model
	}
	return "gcp"
}

// Transcribe recognizes one chunk. Translation and MaxNewTokens are not supported by the API.
func (g *GCPBackend) Transcribe(ctx context.Context, samples []float32, cfg GenerationConfig) (*Result, error) {
	if cfg.Task == TaskTranslate {
		return nil, fmt.Errorf("gcp backend does not support task %q", cfg.Task)
	}

	languageCode := plainLanguage(cfg.Language)
	if languageCode == "" {
		languageCode = g.config.LanguageCode
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(g.config.SampleRate),
			AudioChannelCount:          1,
			LanguageCode:               languageCode,
			Model:                      g.config.Model,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      cfg.ReturnTimestamps,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.EncodePCM16(samples)},
		},
	}

	resp, err := g.client.Recognize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("speech recognize: %w", err)
	}

	return resultFromRecognize(resp), nil
}

// resultFromRecognize turns each recognition result into one segment. A segment
// starts at its first word when word offsets are present, otherwise where the
// previous result ended.
func resultFromRecognize(resp *speechpb.RecognizeResponse) *Result {
	result := &Result{}
	if resp == nil {
		return result
	}

	var texts []string
	prevEnd := 0.0
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		text := strings.TrimSpace(alt.GetTranscript())

		end := durationSeconds(r.GetResultEndTime())
		start := prevEnd
		if words := alt.GetWords(); len(words) > 0 {
			start = durationSeconds(words[0].GetStartTime())
			if last := durationSeconds(words[len(words)-1].GetEndTime()); last > 0 {
				end = last
			}
		}
		if end < start {
			end = start
		}
		prevEnd = end

		if text == "" {
			continue
		}
		texts = append(texts, text)
		result.Segments = append(result.Segments, Segment{Start: start, End: end, Text: text})
	}

	result.Text = strings.Join(texts, " ")
	return result
}

func durationSeconds(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return d.AsDuration().Seconds()
}

// Close releases the gRPC connection
func (g *GCPBackend) Close() error {
	return g.client.Close()
}
