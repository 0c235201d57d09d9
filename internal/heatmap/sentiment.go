package heatmap

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/yoockh/quantachat/internal/utils"
)

// SentimentEstimator maps text to a polarity in [-1,1].
type SentimentEstimator interface {
	Estimate(ctx context.Context, text string) (float64, error)
}

// LengthEstimator is the placeholder policy: longer messages read as more
// positive. It never fails.
type LengthEstimator struct{}

func (LengthEstimator) Estimate(_ context.Context, text string) (float64, error) {
	return utils.Clamp(float64(utils.RuneLen(text))/200-0.5, -1, 1), nil
}

var (
	positiveWords = []string{
		"good", "great", "excellent", "amazing", "awesome", "love", "like", "happy", "glad",
		"thanks", "thank", "nice", "wonderful", "fantastic", "helpful", "perfect", "enjoy",
		"cool", "best", "brilliant", "excited", "yes", "fun", "pleased", "appreciate",
	}
	negativeWords = []string{
		"bad", "terrible", "awful", "hate", "sad", "angry", "upset", "annoyed", "annoying",
		"worst", "horrible", "wrong", "broken", "useless", "frustrated", "frustrating",
		"disappointed", "no", "never", "boring", "stupid", "confused", "tired", "problem",
	}
	negators = map[string]struct{}{
		"not": {}, "no": {}, "never": {}, "don't": {}, "dont": {}, "isn't": {}, "isnt": {},
		"wasn't": {}, "can't": {}, "cant": {}, "won't": {}, "didn't": {}, "doesn't": {},
	}
)

// LexiconEstimator counts polarity words, flipping a word preceded by a negator.
type LexiconEstimator struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

func NewLexiconEstimator() *LexiconEstimator {
	e := &LexiconEstimator{
		positive: make(map[string]struct{}, len(positiveWords)),
		negative: make(map[string]struct{}, len(negativeWords)),
	}
	for _, w := range positiveWords {
		e.positive[w] = struct{}{}
	}
	for _, w := range negativeWords {
		e.negative[w] = struct{}{}
	}
	return e
}

func (e *LexiconEstimator) Estimate(_ context.Context, text string) (float64, error) {
	tokens := tokenize(text)

	var pos, neg float64
	for i, tok := range tokens {
		polarity := 0.0
		if _, ok := e.positive[tok]; ok {
			polarity = 1
		} else if _, ok := e.negative[tok]; ok {
			// "no"/"never" are both negators and negative words; only count them when standalone.
			if _, isNeg := negators[tok]; isNeg && i+1 < len(tokens) {
				continue
			}
			polarity = -1
		}
		if polarity == 0 {
			continue
		}
		if i > 0 {
			if _, ok := negators[tokens[i-1]]; ok {
				polarity = -polarity
			}
		}
		if polarity > 0 {
			pos++
		} else {
			neg++
		}
	}

	if pos+neg == 0 {
		return 0, nil
	}
	return utils.Clamp((pos-neg)/(pos+neg), -1, 1), nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

// NewSentimentEstimator picks an estimator by name.
func NewSentimentEstimator(name string) (SentimentEstimator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "length":
		return LengthEstimator{}, nil
	case "lexicon":
		return NewLexiconEstimator(), nil
	default:
		return nil, fmt.Errorf("heatmap: unknown sentiment estimator %q", name)
	}
}
