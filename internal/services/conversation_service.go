package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/yoockh/quantachat/internal/models"
	pgrepo "github.com/yoockh/quantachat/internal/repositories/postgres"
	"github.com/yoockh/quantachat/internal/utils"
	"gorm.io/datatypes"
)

const (
	maxStoredContent = 1000
	defaultHistory   = 20
	maxHistory       = 100
)

// StoredTurn is the user message and the reply persisted for one exchange.
type StoredTurn struct {
	UserMessage  *models.Message
	ReplyMessage *models.Message
}

type TurnInput struct {
	UserID      string
	UserMessage string
	Reply       string
	Sentiment   float64
	Topics      []string
	Embedding   []float32
	// Meta is attached to the reply as heatmap_metadata.
	Meta map[string]any
}

type ConversationService interface {
	AppendTurn(ctx context.Context, in TurnInput) (*StoredTurn, error)
	History(ctx context.Context, userID string, limit int) ([]models.Message, error)
}

type conversationService struct {
	convos pgrepo.ConversationRepo
	now    func() time.Time
}

func NewConversationService(convos pgrepo.ConversationRepo) ConversationService {
	return &conversationService{convos: convos, now: time.Now}
}

func (s *conversationService) AppendTurn(ctx context.Context, in TurnInput) (*StoredTurn, error) {
	const op = "ConversationService.AppendTurn"

	if in.UserID == "" || in.UserMessage == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and message are required", nil)
	}

	conv, err := s.convos.ActiveConversation(ctx, in.UserID)
	if errors.Is(err, utils.ErrNotFound) {
		conv = &models.Conversation{
			ID:        uuid.NewString(),
			UserID:    in.UserID,
			StartedAt: s.now().UTC(),
		}
		err = s.convos.CreateConversation(ctx, conv)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to open conversation", err)
	}

	now := s.now().UTC()
	sentiment := in.Sentiment
	userMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Content:        utils.Truncate(in.UserMessage, maxStoredContent),
		IsUser:         true,
		SentimentScore: &sentiment,
		Topics:         in.Topics,
		CreatedAt:      now,
	}
	if len(in.Embedding) > 0 {
		v := pgvector.NewVector(in.Embedding)
		userMsg.Embedding = &v
	}

	replyMsg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Content:        utils.Truncate(in.Reply, maxStoredContent),
		IsUser:         false,
		// strictly after the user message so history ordering is stable
		CreatedAt: now.Add(time.Microsecond),
	}
	if len(in.Meta) > 0 {
		b, err := json.Marshal(in.Meta)
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to encode heatmap metadata", err)
		}
		replyMsg.HeatmapMeta = datatypes.JSON(b)
	}

	if err := s.convos.InsertMessages(ctx, userMsg, replyMsg); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store messages", err)
	}
	return &StoredTurn{UserMessage: userMsg, ReplyMessage: replyMsg}, nil
}

// History returns the user's latest messages in chronological order.
func (s *conversationService) History(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	const op = "ConversationService.History"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if limit <= 0 {
		limit = defaultHistory
	}
	if limit > maxHistory {
		limit = maxHistory
	}

	rows, err := s.convos.LatestMessages(ctx, userID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list messages", err)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
