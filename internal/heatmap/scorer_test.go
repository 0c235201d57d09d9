package heatmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultConfig())
	require.NoError(t, err)
	return s
}

func TestScorer_KnownValues(t *testing.T) {
	s := newTestScorer(t)

	// 0.3*0.1 + 0.4*0.9 + 0.3*0.5
	assert.InDelta(t, 0.54, s.Score(50, 1.0, 0.0), 1e-9)
	// every signal saturated
	assert.InDelta(t, 1.0, s.Score(500, 0.0, 1.0), 1e-9)
	// every signal at its floor
	assert.InDelta(t, 0.0, s.Score(0, 10, -1), 1e-9)
}

func TestScorer_Bounds(t *testing.T) {
	s := newTestScorer(t)

	lengths := []int{0, 1, 49, 250, 500, 501, 10000}
	latencies := []float64{0, 0.01, 2.5, 9.99, 10, 60, 3600}
	sentiments := []float64{-1, -0.7, -0.1, 0, 0.3, 0.99, 1}

	for _, l := range lengths {
		for _, rt := range latencies {
			for _, se := range sentiments {
				got := s.Score(l, rt, se)
				assert.GreaterOrEqual(t, got, 0.0)
				assert.LessOrEqual(t, got, 1.0)
			}
		}
	}
}

func TestScorer_ClampsDegenerateInputs(t *testing.T) {
	s := newTestScorer(t)

	assert.Equal(t, s.Score(0, 0, 0), s.Score(-20, -5, 0))
	assert.Equal(t, s.Score(10, 1, 1), s.Score(10, 1, 7))
	assert.Equal(t, s.Score(10, 1, -1), s.Score(10, 1, -7))
}

func TestScorer_Monotonic(t *testing.T) {
	s := newTestScorer(t)

	t.Run("NonIncreasingInResponseTime", func(t *testing.T) {
		prev := s.Score(120, 0, 0.2)
		for rt := 0.25; rt <= 15; rt += 0.25 {
			cur := s.Score(120, rt, 0.2)
			assert.LessOrEqual(t, cur, prev, "rt=%v", rt)
			prev = cur
		}
	})

	t.Run("NonDecreasingInSentiment", func(t *testing.T) {
		prev := s.Score(120, 3, -1)
		for se := -0.9; se <= 1.0; se += 0.1 {
			cur := s.Score(120, 3, se)
			assert.GreaterOrEqual(t, cur, prev, "sentiment=%v", se)
			prev = cur
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Weights.Sentiment = 0.5
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Weights = Weights{MessageLength: 1.2, ResponseTime: -0.2, Sentiment: 0}
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ResponseTimeCap = 0
	require.Error(t, cfg.Validate())

	_, err := NewScorer(cfg)
	require.Error(t, err)
}

func TestScorer_CustomWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{MessageLength: 0, ResponseTime: 1, Sentiment: 0}
	s, err := NewScorer(cfg)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, s.Score(999, 5, -1), 1e-9)
}

func TestCognitiveLoad(t *testing.T) {
	s := newTestScorer(t)

	assert.Equal(t, 0.0, s.CognitiveLoad(""))
	assert.InDelta(t, 0.05, s.CognitiveLoad("one two three four five"), 1e-9)

	long := ""
	for i := 0; i < 150; i++ {
		long += "word "
	}
	assert.Equal(t, 1.0, s.CognitiveLoad(long))
}

func TestEmotionLabel(t *testing.T) {
	assert.Equal(t, "happy", EmotionLabel(0.8, 0))
	assert.Equal(t, "sad", EmotionLabel(-0.8, 0.2))
	assert.Equal(t, "angry", EmotionLabel(-0.8, 0.9))
	assert.Equal(t, "neutral", EmotionLabel(0.1, 0.9))
}
