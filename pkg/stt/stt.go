// Package stt provides backup speech-to-text for the counterparty's
// audio, used when the dialogue provider does not emit input
// transcripts itself.
package stt

import "context"

// Result is one transcription fragment. Final marks the end of an
// utterance; interim fragments may be superseded.
type Result struct {
	Text  string
	Final bool
}

// Transcriber streams PCM16 audio to a recognition backend and emits
// transcription results in arrival order.
type Transcriber interface {
	Start(ctx context.Context) error
	SendAudio(pcm []byte) error
	Results() <-chan Result
	Close() error
}
