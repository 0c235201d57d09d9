package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/yoockh/quantachat/internal/heatmap"
	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/utils"
)

const (
	defaultIdealLength = 50
	echoLimit          = 80
)

// ReplyContext is what the responder knows about the turn being answered.
type ReplyContext struct {
	Sentiment   float64
	IdealLength float64
	Personality models.PersonalityMatrix
}

// Responder builds canned candidate replies and picks one, either by the
// sentiment rules or by scoring each candidate against the user's profile.
type Responder struct {
	sentiment heatmap.SentimentEstimator
}

func NewResponder(sentiment heatmap.SentimentEstimator) *Responder {
	if sentiment == nil {
		sentiment = heatmap.NewLexiconEstimator()
	}
	return &Responder{sentiment: sentiment}
}

func (r *Responder) Candidates(message string, sentiment float64) []string {
	echo := utils.Truncate(strings.TrimSpace(message), echoLimit)

	empathetic := "I appreciate you sharing this with me."
	if sentiment < -0.3 {
		empathetic = "I sense this is important to you. Let's discuss it carefully."
	}

	return []string{
		fmt.Sprintf("I received your message about '%s'. Let me think about that.", echo),
		empathetic,
		fmt.Sprintf("'%s'? That's almost as funny as quantum physics!", echo),
		fmt.Sprintf("Analyzing your query about '%s' through our decision matrix...", echo),
	}
}

// SelectClassic leans empathetic on strongly negative input and appreciative
// on strongly positive input, falling back to the first candidate.
func SelectClassic(candidates []string, sentiment float64) string {
	if len(candidates) == 0 {
		return ""
	}
	pick := func(words ...string) string {
		for _, c := range candidates {
			for _, w := range words {
				if strings.Contains(c, w) {
					return c
				}
			}
		}
		return candidates[0]
	}

	switch {
	case sentiment < -0.5:
		return pick("sense", "important")
	case sentiment > 0.6:
		return pick("appreciate", "happy")
	default:
		return candidates[0]
	}
}

// ScoreCandidate is (sentiment match + length factor + personality alignment) / 3.
func (r *Responder) ScoreCandidate(ctx context.Context, candidate string, rc ReplyContext) float64 {
	own, err := r.sentiment.Estimate(ctx, candidate)
	if err != nil {
		own = 0
	}
	sentimentMatch := 1 - math.Abs(utils.Clamp(own, -1, 1)-utils.Clamp(rc.Sentiment, -1, 1))/2

	ideal := rc.IdealLength
	if ideal <= 0 {
		ideal = defaultIdealLength
	}
	lengthFactor := math.Min(float64(utils.RuneLen(candidate))/ideal, 1)

	p := rc.Personality
	personality := 0.3*traitMatch(empathyLevel(candidate), p.Empathy) +
		0.2*traitMatch(humorLevel(candidate), p.Humor) +
		0.5*traitMatch(formalityLevel(candidate), p.Formality)

	return (sentimentMatch + lengthFactor + personality) / 3
}

// SelectOptimized returns the best-scoring candidate; ties keep the earlier one.
func (r *Responder) SelectOptimized(ctx context.Context, candidates []string, rc ReplyContext) string {
	best, bestScore := "", math.Inf(-1)
	for _, c := range candidates {
		if s := r.ScoreCandidate(ctx, c, rc); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func ClassicVoiceReply(e models.VoiceEmotion) string {
	switch {
	case e.Valence < 0.3:
		return "I hear some frustration in your voice. Let me help."
	case e.Arousal > 0.7:
		return "You sound excited! What else can I do for you?"
	default:
		return "Thanks for your message. How can I assist?"
	}
}

var voiceCandidates = []string{
	"I hear some frustration in your voice. Let me help.",
	"You sound excited! What else can I do for you?",
	"Thanks for your message. How can I assist?",
	"I understand. Take your time, I'm listening carefully.",
}

// OptimizedVoiceReply scores the voice lines with valence standing in for sentiment.
func (r *Responder) OptimizedVoiceReply(ctx context.Context, e models.VoiceEmotion, p models.PersonalityMatrix) string {
	return r.SelectOptimized(ctx, voiceCandidates, ReplyContext{
		Sentiment:   e.Valence*2 - 1,
		IdealLength: defaultIdealLength,
		Personality: p,
	})
}

func traitMatch(level, target float64) float64 {
	return 1 - math.Abs(utils.Clamp(level, 0, 1)-utils.Clamp(target, 0, 1))
}

var (
	empathyMarkers = []string{"sense", "appreciate", "understand", "feel", "sharing", "listening", "carefully", "help"}
	humorMarkers   = []string{"funny", "joke", "haha", "lol", "laugh"}
)

func markerLevel(s string, markers []string, saturate int) float64 {
	lower := strings.ToLower(s)
	n := 0
	for _, m := range markers {
		if strings.Contains(lower, m) {
			n++
		}
	}
	return math.Min(float64(n)/float64(saturate), 1)
}

func empathyLevel(s string) float64 { return markerLevel(s, empathyMarkers, 2) }

func humorLevel(s string) float64 {
	l := markerLevel(s, humorMarkers, 1)
	if strings.Contains(s, "!") {
		l = math.Min(l+0.3, 1)
	}
	return l
}

// formalityLevel drops with contractions, exclamations and trailing ellipses.
func formalityLevel(s string) float64 {
	words := utils.WordCount(s)
	if words == 0 {
		return 0
	}
	informal := strings.Count(s, "'") + 2*strings.Count(s, "!") + strings.Count(s, "...")
	return utils.Clamp(1-float64(informal)/float64(words)*2, 0, 1)
}
