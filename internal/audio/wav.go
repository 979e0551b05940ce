package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// errNeedsConversion marks a valid WAV stream the decoder cannot read directly
// (float or compressed encodings); the loader hands those to ffmpeg.
var errNeedsConversion = errors.New("wav encoding requires conversion")

// WAVHeader represents the header structure of a canonical 44-byte WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16  // Number of channels
	SampleRate    uint32  // Sample rate
	ByteRate      uint32  // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16  // NumChannels * BitsPerSample / 8
	BitsPerSample uint16  // Bits per sample
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// Audio is a decoded, mono, normalized sample sequence. It is not modified after decoding.
type Audio struct {
	Samples    []float32
	SampleRate int
	// Channels and BitDepth describe the decoded source before downmixing.
	Channels int
	BitDepth int
}

// Duration returns the length of the sample sequence
func (a *Audio) Duration() time.Duration {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(a.Samples)) / float64(a.SampleRate) * float64(time.Second))
}

// DecodeWAV decodes a PCM WAV stream into mono samples in [-1, 1).
// Multi-channel audio is downmixed by averaging the channels of each frame.
func DecodeWAV(r io.ReadSeeker) (*Audio, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to seek WAV stream: %w", err)
	}

	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("invalid WAV file: %w", err)
		}
		return nil, fmt.Errorf("invalid WAV file: missing RIFF/WAVE header or fmt chunk")
	}

	switch d.WavAudioFormat {
	case wavFormatPCM:
	case wavFormatExtensible:
		// The decoder drops the extension block, so the sub-format is read
		// separately and the stream is decoded again from the start.
		if _, err := r.Seek(start, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to seek WAV stream: %w", err)
		}
		sub, err := extensibleSubFormat(r)
		if err != nil {
			return nil, fmt.Errorf("invalid WAV file: %w", err)
		}
		if sub != wavFormatPCM {
			return nil, fmt.Errorf("extensible sub-format %d: %w", sub, errNeedsConversion)
		}
		if _, err := r.Seek(start, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to seek WAV stream: %w", err)
		}
		d = wav.NewDecoder(r)
		if !d.IsValidFile() {
			return nil, fmt.Errorf("invalid WAV file: %w", d.Err())
		}
	default:
		return nil, fmt.Errorf("audio format %d: %w", d.WavAudioFormat, errNeedsConversion)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read audio samples: %w", err)
	}

	return fromIntBuffer(buf, int(d.BitDepth))
}

// extensibleSubFormat walks the RIFF chunks of a WAVE_FORMAT_EXTENSIBLE file
// and returns the format code stored in the first two bytes of the SubFormat GUID.
func extensibleSubFormat(r io.Reader) (uint16, error) {
	var riffHeader [12]byte
	if _, err := io.ReadFull(r, riffHeader[:]); err != nil {
		return 0, fmt.Errorf("failed to read RIFF header: %w", err)
	}

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			return 0, fmt.Errorf("fmt chunk not found: %w", err)
		}
		size := int64(binary.LittleEndian.Uint32(chunkHeader[4:]))

		if string(chunkHeader[:4]) != "fmt " {
			// chunks are word aligned
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return 0, fmt.Errorf("fmt chunk not found: %w", err)
			}
			continue
		}

		if size < 40 {
			return 0, fmt.Errorf("extensible fmt chunk too short: %d bytes", size)
		}
		fmtChunk := make([]byte, size)
		if _, err := io.ReadFull(r, fmtChunk); err != nil {
			return 0, fmt.Errorf("failed to read fmt chunk: %w", err)
		}
		return binary.LittleEndian.Uint16(fmtChunk[24:26]), nil
	}
}

// fromIntBuffer converts interleaved integer PCM into normalized mono float samples
func fromIntBuffer(buf *goaudio.IntBuffer, bitDepth int) (*Audio, error) {
	if buf == nil || buf.Format == nil {
		return nil, fmt.Errorf("no audio data found")
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}

	// An empty data chunk decodes to zero samples.
	frames := len(buf.Data) / channels

	// 8-bit WAV is unsigned, everything wider is two's complement
	scale := float64(int64(1) << (bitDepth - 1))
	bias := 0.0
	if bitDepth == 8 {
		bias = 128
	}

	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += (float64(buf.Data[i*channels+ch]) - bias) / scale
		}
		samples[i] = float32(sum / float64(channels))
	}

	return &Audio{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
	}, nil
}

// EncodeWAV encodes normalized float samples as a 16-bit mono PCM WAV file
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   wavFormatPCM,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, toPCM16(samples)); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// EncodePCM16 returns headerless little-endian 16-bit PCM (LINEAR16)
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range toPCM16(samples) {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// EncodeFloat32 returns the raw little-endian IEEE-754 bytes of samples
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

func toPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		switch {
		case s >= 1:
			out[i] = math.MaxInt16
		case s <= -1:
			out[i] = math.MinInt16
		default:
			out[i] = int16(math.Round(float64(s) * math.MaxInt16))
		}
	}
	return out
}
