package stt

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c               *speech.Client
	defaultLanguage string
}

func NewGoogleSpeech(ctx context.Context, defaultLanguage string) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if defaultLanguage == "" {
		defaultLanguage = "en-US"
	}
	return &GoogleSpeech{c: c, defaultLanguage: defaultLanguage}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

// Transcribe joins the best alternative of every result segment; confidence is their mean.
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio Audio, language string) (string, float64, error) {
	if language == "" {
		language = g.defaultLanguage
	}

	cfg := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
	}
	if audio.SampleRate > 0 {
		cfg.SampleRateHertz = int32(audio.SampleRate)
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.PCM},
		},
	})
	if err != nil {
		return "", 0, err
	}

	var parts []string
	var confSum float64
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 || r.Alternatives[0].Transcript == "" {
			continue
		}
		best := r.Alternatives[0]
		parts = append(parts, strings.TrimSpace(best.Transcript))
		confSum += float64(best.Confidence)
	}
	if len(parts) == 0 {
		return "", 0, nil
	}
	return strings.Join(parts, " "), confSum / float64(len(parts)), nil
}
