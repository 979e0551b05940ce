package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ConvertToWAV resamples any ffmpeg-readable input to mono 16-bit PCM WAV at sampleRate.
// The file is written to a fresh directory under tmpDir; the returned cleanup func removes it.
func ConvertToWAV(ctx context.Context, ffmpegPath, inputPath, tmpDir string, sampleRate int) (string, func(), error) {
	if ffmpegPath == "" {
		return "", nil, fmt.Errorf("ffmpeg path is not configured")
	}
	if sampleRate <= 0 {
		return "", nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dir, err := os.MkdirTemp(tmpDir, "transcribe-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	out := filepath.Join(dir, base+".wav")

	// ffmpeg -y -i input -ar 16000 -ac 1 -c:a pcm_s16le -f wav output
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-y", "-i", inputPath,
		"-ar", strconv.Itoa(sampleRate), "-ac", "1",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		cleanup()
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", nil, fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return "", nil, fmt.Errorf("ffmpeg: %w", err)
	}

	return out, cleanup, nil
}
