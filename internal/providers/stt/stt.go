package stt

import "context"

// Audio is LINEAR16 PCM; SampleRate 0 lets the provider infer it from a WAV header.
type Audio struct {
	PCM        []byte
	SampleRate int
}

type Provider interface {
	Transcribe(ctx context.Context, audio Audio, language string) (text string, confidence float64, err error)
	Close() error
}
