// Package metrics holds the Prometheus instruments of a transcription run. The tool is a
// batch job, so the registry is exported once at exit to a node-exporter textfile or a
// Pushgateway instead of being scraped.
package metrics
