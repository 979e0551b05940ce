// Package cache stores chunk transcription results in SQLite, keyed by a BLAKE3 digest
// of the backend name, the generation settings and the chunk samples, so re-running on
// the same audio skips inference.
package cache
