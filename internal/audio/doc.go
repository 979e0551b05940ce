// Package audio loads audio files into normalized mono float32 samples and slices them
// into fixed-length chunks for transcription. Inputs that are not 16-bit PCM WAV at the
// target rate are converted with ffmpeg before decoding.
package audio
