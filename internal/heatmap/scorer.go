// Package heatmap scores single interactions and aggregates a user's trailing
// window of scored interactions into temporal engagement patterns.
package heatmap

import (
	"errors"
	"fmt"
	"math"

	"github.com/yoockh/quantachat/internal/utils"
)

const weightTolerance = 1e-9

// Weights are the engagement blend coefficients. They must sum to 1.
type Weights struct {
	MessageLength float64
	ResponseTime  float64
	Sentiment     float64
}

// Config is the scorer configuration, fixed at construction.
type Config struct {
	Weights Weights

	// MessageLengthCap is the length (characters) at which the length signal saturates.
	MessageLengthCap float64
	// ResponseTimeCap is the latency (seconds) at which the response signal bottoms out.
	ResponseTimeCap float64
	// CognitiveLoadWords is the reply word count that maps to full cognitive load.
	CognitiveLoadWords float64
}

func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			MessageLength: 0.3,
			ResponseTime:  0.4,
			Sentiment:     0.3,
		},
		MessageLengthCap:   500,
		ResponseTimeCap:    10,
		CognitiveLoadWords: 100,
	}
}

func (c Config) Validate() error {
	w := c.Weights
	if w.MessageLength < 0 || w.ResponseTime < 0 || w.Sentiment < 0 {
		return errors.New("heatmap: weights must be non-negative")
	}
	if sum := w.MessageLength + w.ResponseTime + w.Sentiment; math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("heatmap: weights must sum to 1, got %.6f", sum)
	}
	if c.MessageLengthCap <= 0 || c.ResponseTimeCap <= 0 || c.CognitiveLoadWords <= 0 {
		return errors.New("heatmap: normalization caps must be positive")
	}
	return nil
}

// Scorer computes per-interaction engagement and cognitive load. It holds no
// mutable state and is safe for concurrent use.
type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

func (s *Scorer) Config() Config { return s.cfg }

// Score returns the composite engagement in [0,1]. Negative length/latency
// are treated as zero and sentiment is clipped to [-1,1].
func (s *Scorer) Score(messageLength int, responseTime, sentiment float64) float64 {
	length := math.Max(float64(messageLength), 0)
	rt := math.Max(responseTime, 0)
	sentiment = utils.Clamp(sentiment, -1, 1)

	normLength := math.Min(length/s.cfg.MessageLengthCap, 1)
	normSentiment := (sentiment + 1) / 2
	normResponse := 1 - math.Min(rt/s.cfg.ResponseTimeCap, 1)

	w := s.cfg.Weights
	score := w.MessageLength*normLength +
		w.ResponseTime*normResponse +
		w.Sentiment*normSentiment
	return utils.Clamp(score, 0, 1)
}

// CognitiveLoad estimates the effort needed to read the agent's reply.
func (s *Scorer) CognitiveLoad(reply string) float64 {
	return math.Min(float64(utils.WordCount(reply))/s.cfg.CognitiveLoadWords, 1)
}

// EmotionLabel buckets a sentiment into the coarse label stored with a record.
// A high-arousal negative signal reads as anger rather than sadness.
func EmotionLabel(sentiment, arousal float64) string {
	switch {
	case sentiment > 0.3:
		return "happy"
	case sentiment < -0.3 && arousal > 0.6:
		return "angry"
	case sentiment < -0.3:
		return "sad"
	default:
		return "neutral"
	}
}
