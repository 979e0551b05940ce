// Package server hosts the stub transcription service used for dry runs of the
// HTTP backend, with health and Prometheus endpoints.
package server
