package audio

import (
	"fmt"
	"time"
)

// DefaultChunkDuration is the nominal length of one inference window
const DefaultChunkDuration = 30 * time.Second

// Chunk is a contiguous window of the sample sequence submitted as one inference call
type Chunk struct {
	Index   int       // Zero-based position in the sequence of chunks
	Offset  int       // Index of the first sample in the source sequence
	Samples []float32 // Shares the source backing array; never modified
}

// Len returns the number of samples in the chunk
func (c Chunk) Len() int {
	return len(c.Samples)
}

// String returns a human-readable representation for logging
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d: samples [%d, %d)", c.Index, c.Offset, c.Offset+len(c.Samples))
}

// ChunkingConfig contains configuration for fixed-size chunking
type ChunkingConfig struct {
	ChunkLength int // samples per chunk
}

// ChunkLengthFor returns the chunk length in samples for a rate and nominal duration
func ChunkLengthFor(sampleRate int, duration time.Duration) int {
	return int(int64(sampleRate) * int64(duration) / int64(time.Second))
}

// Chunker walks a sample sequence in fixed-size windows. The last window may be shorter.
type Chunker struct {
	config  ChunkingConfig
	samples []float32
	offset  int
	index   int

	// Statistics
	chunksCreated   int
	samplesConsumed int
}

// ChunkerStats represents chunker statistics
type ChunkerStats struct {
	ChunksCreated   int `json:"chunks_created"`
	SamplesConsumed int `json:"samples_consumed"`
	SamplesTotal    int `json:"samples_total"`
	Remaining       int `json:"remaining_samples"`
}

// NewChunker creates a chunker over samples
func NewChunker(samples []float32, config ChunkingConfig) (*Chunker, error) {
	if config.ChunkLength <= 0 {
		return nil, fmt.Errorf("chunk length must be positive, got %d", config.ChunkLength)
	}

	return &Chunker{
		config:  config,
		samples: samples,
	}, nil
}

// Next returns the next chunk, or false once the read offset reaches the end
func (c *Chunker) Next() (Chunk, bool) {
	if c.offset >= len(c.samples) {
		return Chunk{}, false
	}

	end := c.offset + c.config.ChunkLength
	if end > len(c.samples) {
		end = len(c.samples)
	}

	chunk := Chunk{
		Index:   c.index,
		Offset:  c.offset,
		Samples: c.samples[c.offset:end:end],
	}

	c.index++
	c.offset += c.config.ChunkLength
	c.chunksCreated++
	c.samplesConsumed += chunk.Len()

	return chunk, true
}

// Count returns how many chunks the full sequence splits into
func (c *Chunker) Count() int {
	return (len(c.samples) + c.config.ChunkLength - 1) / c.config.ChunkLength
}

// Stats returns current chunker statistics
func (c *Chunker) Stats() ChunkerStats {
	return ChunkerStats{
		ChunksCreated:   c.chunksCreated,
		SamplesConsumed: c.samplesConsumed,
		SamplesTotal:    len(c.samples),
		Remaining:       len(c.samples) - c.samplesConsumed,
	}
}
