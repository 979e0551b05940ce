package audio

import (
	"testing"
	"time"
)

func TestNewChunkerInvalidLength(t *testing.T) {
	for _, length := range []int{0, -1} {
		if _, err := NewChunker(make([]float32, 10), ChunkingConfig{ChunkLength: length}); err == nil {
			t.Errorf("Expected error for chunk length %d", length)
		}
	}
}

func TestChunkLengthFor(t *testing.T) {
	if got := ChunkLengthFor(16000, DefaultChunkDuration); got != 480000 {
		t.Errorf("Expected 480000 samples, got %d", got)
	}

	if got := ChunkLengthFor(16000, 1500*time.Millisecond); got != 24000 {
		t.Errorf("Expected 24000 samples, got %d", got)
	}
}

func TestChunkerPartitions(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		chunkLength int
		wantLens    []int
	}{
		{name: "empty input", total: 0, chunkLength: 4, wantLens: nil},
		{name: "shorter than one chunk", total: 3, chunkLength: 4, wantLens: []int{3}},
		{name: "exact multiple", total: 8, chunkLength: 4, wantLens: []int{4, 4}},
		{name: "short tail", total: 10, chunkLength: 4, wantLens: []int{4, 4, 2}},
		{name: "45 seconds at 16kHz", total: 720000, chunkLength: 480000, wantLens: []int{480000, 240000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]float32, tt.total)
			for i := range samples {
				samples[i] = float32(i)
			}

			chunker, err := NewChunker(samples, ChunkingConfig{ChunkLength: tt.chunkLength})
			if err != nil {
				t.Fatalf("NewChunker failed: %v", err)
			}

			if chunker.Count() != len(tt.wantLens) {
				t.Errorf("Expected Count() %d, got %d", len(tt.wantLens), chunker.Count())
			}

			var got []Chunk
			for {
				chunk, ok := chunker.Next()
				if !ok {
					break
				}
				got = append(got, chunk)
			}

			if len(got) != len(tt.wantLens) {
				t.Fatalf("Expected %d chunks, got %d", len(tt.wantLens), len(got))
			}

			for i, chunk := range got {
				if chunk.Index != i {
					t.Errorf("Chunk %d: expected index %d, got %d", i, i, chunk.Index)
				}
				if chunk.Offset != i*tt.chunkLength {
					t.Errorf("Chunk %d: expected offset %d, got %d", i, i*tt.chunkLength, chunk.Offset)
				}
				if chunk.Offset > tt.total {
					t.Errorf("Chunk %d: offset %d exceeds input length %d", i, chunk.Offset, tt.total)
				}
				if chunk.Len() != tt.wantLens[i] {
					t.Errorf("Chunk %d: expected %d samples, got %d", i, tt.wantLens[i], chunk.Len())
				}
				if chunk.Len() > 0 && chunk.Samples[0] != float32(chunk.Offset) {
					t.Errorf("Chunk %d: first sample %f does not match offset %d", i, chunk.Samples[0], chunk.Offset)
				}
			}

			stats := chunker.Stats()
			if stats.ChunksCreated != len(tt.wantLens) {
				t.Errorf("Expected %d chunks created, got %d", len(tt.wantLens), stats.ChunksCreated)
			}
			if stats.SamplesConsumed != tt.total || stats.Remaining != 0 {
				t.Errorf("Expected all %d samples consumed, got %+v", tt.total, stats)
			}

			// Exhausted chunkers stay exhausted
			if _, ok := chunker.Next(); ok {
				t.Error("Expected no chunk after exhaustion")
			}
		})
	}
}

func TestChunkCannotGrowIntoNextWindow(t *testing.T) {
	samples := []float32{1, 2, 3, 4, 5, 6}
	chunker, err := NewChunker(samples, ChunkingConfig{ChunkLength: 4})
	if err != nil {
		t.Fatalf("NewChunker failed: %v", err)
	}

	first, _ := chunker.Next()
	if cap(first.Samples) != 4 {
		t.Errorf("Expected capacity 4, got %d", cap(first.Samples))
	}

	_ = append(first.Samples, 99)
	if samples[4] != 5 {
		t.Errorf("Appending to a chunk modified the source sequence")
	}
}
