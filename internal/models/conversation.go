package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type Conversation struct {
	ID        string     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string     `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	StartedAt time.Time  `gorm:"column:started_at;type:timestamptz" json:"started_at"`
	EndedAt   *time.Time `gorm:"column:ended_at;type:timestamptz" json:"ended_at,omitempty"`
	Summary   *string    `gorm:"column:summary;type:varchar(500)" json:"summary,omitempty"`
}

func (Conversation) TableName() string { return "conversations" }

type Message struct {
	ID             string           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID string           `gorm:"column:conversation_id;type:uuid;index" json:"conversation_id"`
	Content        string           `gorm:"column:content;type:varchar(1000)" json:"content"`
	IsUser         bool             `gorm:"column:is_user" json:"is_user"`
	SentimentScore *float64         `gorm:"column:sentiment_score" json:"sentiment_score"`
	Topics         pq.StringArray   `gorm:"column:topics;type:text[]" json:"topics,omitempty"`
	Embedding      *pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`
	HeatmapMeta    datatypes.JSON   `gorm:"column:heatmap_metadata;type:jsonb" json:"heatmap_metadata,omitempty"`
	CreatedAt      time.Time        `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (Message) TableName() string { return "messages" }
