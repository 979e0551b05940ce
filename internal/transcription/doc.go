// Package transcription defines the inference capability the transcript driver calls
// for every chunk and the backends that implement it: an OpenVINO whisper pipeline
// worker, a generic HTTP service, the OpenAI audio API and Google Cloud Speech-to-Text.
package transcription
