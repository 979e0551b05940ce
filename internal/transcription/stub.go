package transcription

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/skypro1111/speech-transcriber/internal/audio"
)

// StubHandler answers the HTTP backend protocol without a model: every chunk
// gets one segment spanning its whole duration with a fixed text. It is served
// by cmd/stub-server for dry runs.
type StubHandler struct {
	Text   string
	Logger *slog.Logger
}

// ServeHTTP implements http.Handler
func (h *StubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	decoded, err := audio.DecodeWAV(bytes.NewReader(data))
	if err != nil {
		http.Error(w, "Error decoding audio file: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	duration := decoded.Duration().Seconds()

	requestID := r.FormValue("request_id")
	logger.Info("Transcription request received",
		slog.String("request_id", requestID),
		slog.String("filename", header.Filename),
		slog.Int("audio_bytes", len(data)),
		slog.Float64("duration_sec", duration),
		slog.String("task", r.FormValue("task")),
		slog.String("language", r.FormValue("language")),
		slog.String("model", r.FormValue("model")),
	)

	resp := TranscriptionResponse{
		RequestID: requestID,
		Text:      h.Text,
		Language:  r.FormValue("language"),
		Duration:  duration,
	}
	if h.Text != "" && duration > 0 && r.FormValue("return_timestamps") != "false" {
		resp.Segments = []Segment{{Start: 0, End: duration, Text: h.Text}}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
