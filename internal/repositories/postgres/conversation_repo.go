package postgres

import (
	"context"
	"errors"

	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/utils"
	"gorm.io/gorm"
)

type ConversationRepo interface {
	ActiveConversation(ctx context.Context, userID string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, c *models.Conversation) error
	InsertMessages(ctx context.Context, msgs ...*models.Message) error
	LatestMessages(ctx context.Context, userID string, n int) ([]models.Message, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

// ActiveConversation returns the user's most recent conversation that has not ended.
func (r *conversationRepo) ActiveConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ended_at IS NULL", userID).
		Order("started_at DESC").
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &c, err
}

func (r *conversationRepo) CreateConversation(ctx context.Context, c *models.Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *conversationRepo) InsertMessages(ctx context.Context, msgs ...*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range msgs {
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LatestMessages returns the user's newest messages across conversations, newest first.
func (r *conversationRepo) LatestMessages(ctx context.Context, userID string, n int) ([]models.Message, error) {
	if n <= 0 {
		n = 20
	}
	var rows []models.Message
	err := r.db.WithContext(ctx).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.user_id = ?", userID).
		Order("messages.created_at DESC").
		Limit(n).
		Find(&rows).Error
	return rows, err
}
