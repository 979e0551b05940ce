// Package transcript drives a transcription run: it walks the sample sequence in
// fixed-size chunks, calls the inference backend on each one and prints the returned
// segments with timestamps shifted by the time elapsed in earlier chunks.
package transcript
