// Package config provides configuration loading and validation for the transcriber.
// Settings come from an optional YAML file named by TRANSCRIBE_CONFIG, a .env file
// and environment overrides, layered over built-in defaults.
package config
