package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/quantachat/internal/heatmap"
	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/providers/embedding"
	"github.com/yoockh/quantachat/internal/providers/llm"
	pgrepo "github.com/yoockh/quantachat/internal/repositories/postgres"
	"github.com/yoockh/quantachat/internal/utils"
)

const (
	maxMessageRunes = 4000
	promptHistory   = 10
	maxTopics       = 3
)

type HeatmapData struct {
	CurrentSentiment float64 `json:"current_sentiment"`
	EngagementScore  float64 `json:"engagement_score"`
	ResponseTime     float64 `json:"response_time"`
}

type ChatReply struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	IsUser      bool        `json:"is_user"`
	CreatedAt   time.Time   `json:"created_at"`
	Topics      []string    `json:"topics"`
	Optimized   bool        `json:"optimized"`
	HeatmapData HeatmapData `json:"heatmap_data"`
}

type ChatService interface {
	Process(ctx context.Context, userID, message string) (*ChatReply, error)
	// QuantumChat always uses profile-optimized selection and requires quantum access.
	QuantumChat(ctx context.Context, userID, message string) (*ChatReply, *models.PersonalityMatrix, error)
	History(ctx context.Context, userID string, limit int) ([]models.Message, error)
}

type ChatDeps struct {
	Users         pgrepo.UserRepository
	Conversations ConversationService
	Heatmap       HeatmapService
	Responder     *Responder
	Sentiment     heatmap.SentimentEstimator
	LLM           llm.Provider       // optional
	Embedder      embedding.Embedder // optional
	Log           *logrus.Logger
	Now           func() time.Time
}

type chatService struct {
	ChatDeps
}

func NewChatService(d ChatDeps) ChatService {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Responder == nil {
		d.Responder = NewResponder(d.Sentiment)
	}
	return &chatService{ChatDeps: d}
}

func (s *chatService) Process(ctx context.Context, userID, message string) (*ChatReply, error) {
	return s.run(ctx, "ChatService.Process", userID, message, false)
}

func (s *chatService) QuantumChat(ctx context.Context, userID, message string) (*ChatReply, *models.PersonalityMatrix, error) {
	const op = "ChatService.QuantumChat"

	u, err := s.user(ctx, op, userID)
	if err != nil {
		return nil, nil, err
	}
	if !u.QuantumAccess {
		return nil, nil, utils.E(utils.CodeForbidden, op, "quantum features require a premium subscription", nil)
	}

	reply, err := s.run(ctx, op, userID, message, true)
	if err != nil {
		return nil, nil, err
	}
	pm := u.PersonalityMatrix.Data()
	return reply, &pm, nil
}

func (s *chatService) History(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	return s.Conversations.History(ctx, userID, limit)
}

func (s *chatService) user(ctx context.Context, op, userID string) (*models.User, error) {
	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if !u.IsActive {
		return nil, utils.E(utils.CodeForbidden, op, "inactive user", nil)
	}
	return u, nil
}

func (s *chatService) run(ctx context.Context, op, userID, message string, forceOptimized bool) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "message is required", nil)
	}
	if utils.RuneLen(message) > maxMessageRunes {
		return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("message exceeds %d characters", maxMessageRunes), nil)
	}

	u, err := s.user(ctx, op, userID)
	if err != nil {
		return nil, err
	}

	sentiment := s.estimate(ctx, userID, message)

	history, err := s.Conversations.History(ctx, userID, promptHistory)
	if err != nil {
		return nil, err
	}

	optimized := forceOptimized || u.IsPremium()

	start := s.Now()
	reply := s.generate(ctx, u, message, sentiment, history, optimized)
	latency := s.Now().Sub(start).Seconds()
	if latency < 0 {
		latency = 0
	}

	topics := ExtractTopics(message)

	// messages first, so a failed write leaves no orphan interaction behind
	interactionID := uuid.NewString()
	turn, err := s.Conversations.AppendTurn(ctx, TurnInput{
		UserID:      userID,
		UserMessage: message,
		Reply:       reply,
		Sentiment:   sentiment,
		Topics:      topics,
		Embedding:   s.embed(ctx, userID, message),
		Meta: map[string]any{
			"interaction_id": interactionID,
			"response_time":  latency,
			"optimized":      optimized,
		},
	})
	if err != nil {
		return nil, err
	}

	rec, err := s.Heatmap.RecordInteraction(ctx, Exchange{
		ID:           interactionID,
		UserID:       userID,
		UserMessage:  message,
		Reply:        reply,
		ResponseTime: latency,
		Sentiment:    &sentiment,
	})
	if err != nil {
		return nil, err
	}

	return &ChatReply{
		ID:        turn.ReplyMessage.ID,
		Content:   reply,
		IsUser:    false,
		CreatedAt: turn.ReplyMessage.CreatedAt,
		Topics:    topics,
		Optimized: optimized,
		HeatmapData: HeatmapData{
			CurrentSentiment: sentiment,
			EngagementScore:  rec.EngagementScore,
			ResponseTime:     rec.ResponseTime,
		},
	}, nil
}

func (s *chatService) estimate(ctx context.Context, userID, text string) float64 {
	v, err := s.Sentiment.Estimate(ctx, text)
	if err != nil {
		s.Log.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).
			Warn("sentiment estimation failed, using neutral score")
		return 0
	}
	return utils.Clamp(v, -1, 1)
}

func (s *chatService) embed(ctx context.Context, userID, text string) []float32 {
	if s.Embedder == nil {
		return nil
	}
	v, err := s.Embedder.Embed(ctx, text)
	if err != nil {
		s.Log.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).
			Warn("embedding failed, storing message without vector")
		return nil
	}
	return v
}

// generate prefers the configured LLM and falls back to candidate selection.
func (s *chatService) generate(ctx context.Context, u *models.User, message string, sentiment float64, history []models.Message, optimized bool) string {
	if s.LLM != nil {
		out, err := llm.Collect(ctx, s.LLM, buildPrompt(u, message, sentiment, history))
		if err == nil && out != "" {
			return out
		}
		if err != nil {
			s.Log.WithFields(logrus.Fields{"user_id": u.ID, "error": err.Error()}).
				Warn("llm generation failed, using candidate responses")
		}
	}

	candidates := s.Responder.Candidates(message, sentiment)
	if !optimized {
		return SelectClassic(candidates, sentiment)
	}
	return s.Responder.SelectOptimized(ctx, candidates, ReplyContext{
		Sentiment:   sentiment,
		IdealLength: idealLength(history),
		Personality: u.PersonalityMatrix.Data(),
	})
}

// idealLength is the mean length of the user's recent messages.
func idealLength(history []models.Message) float64 {
	var sum, n int
	for _, m := range history {
		if m.IsUser {
			sum += utils.RuneLen(m.Content)
			n++
		}
	}
	if n == 0 {
		return defaultIdealLength
	}
	return float64(sum) / float64(n)
}

func buildPrompt(u *models.User, message string, sentiment float64, history []models.Message) string {
	pm := u.PersonalityMatrix.Data()

	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful conversational assistant. Personality: empathy %.1f, humor %.1f, formality %.1f.\n",
		pm.Empathy, pm.Humor, pm.Formality)
	fmt.Fprintf(&b, "The user's current sentiment is %.2f on a -1..1 scale; adapt your tone.\n\n", sentiment)
	for _, m := range history {
		role := "Assistant"
		if m.IsUser {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	fmt.Fprintf(&b, "User: %s\nAssistant:", message)
	return b.String()
}

var stopwords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "been": true, "before": true,
	"being": true, "could": true, "does": true, "doing": true, "from": true, "have": true,
	"having": true, "here": true, "into": true, "just": true, "like": true, "more": true,
	"much": true, "only": true, "other": true, "really": true, "should": true, "some": true,
	"than": true, "that": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "very": true, "want": true,
	"what": true, "when": true, "where": true, "which": true, "while": true, "will": true,
	"with": true, "would": true, "your": true, "you're": true, "please": true, "thanks": true,
}

// ExtractTopics returns up to three frequent non-stopword keywords, or "general".
func ExtractTopics(text string) []string {
	counts := map[string]int{}
	first := map[string]int{}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	for i, w := range words {
		w = strings.Trim(w, "'")
		if utils.RuneLen(w) < 4 || stopwords[w] {
			continue
		}
		if _, ok := first[w]; !ok {
			first[w] = i
		}
		counts[w]++
	}
	if len(counts) == 0 {
		return []string{"general"}
	}

	keys := make([]string, 0, len(counts))
	for w := range counts {
		keys = append(keys, w)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return first[keys[i]] < first[keys[j]]
	})
	if len(keys) > maxTopics {
		keys = keys[:maxTopics]
	}
	return keys
}
