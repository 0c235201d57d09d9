package models

import (
	"time"

	"gorm.io/datatypes"
)

// Weekdays in pattern order, Monday first.
var Weekdays = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// InteractionRecord is one scored user/agent exchange.
type InteractionRecord struct {
	ID              string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID          string    `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	Timestamp       time.Time `gorm:"column:timestamp;type:timestamptz;index" json:"timestamp"`
	MessageLength   int       `gorm:"column:message_length" json:"message_length"`
	ResponseTime    float64   `gorm:"column:response_time" json:"response_time"`
	SentimentScore  float64   `gorm:"column:sentiment_score" json:"sentiment_score"`
	Emotion         string    `gorm:"column:emotion;type:varchar(20)" json:"emotion"`
	EngagementScore float64   `gorm:"column:engagement_score" json:"engagement_score"`
	CognitiveLoad   float64   `gorm:"column:cognitive_load" json:"cognitive_load"`
}

func (InteractionRecord) TableName() string { return "interaction_heatmaps" }

type PeakHours struct {
	Hour  int     `json:"hour"`
	Score float64 `json:"score"`
}

// WeeklyPattern maps weekday name to its share of interactions.
type WeeklyPattern map[string]float64

// UserHeatmapProfile is the cached aggregate over a user's trailing window.
type UserHeatmapProfile struct {
	UserID           string                            `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	LastUpdated      time.Time                         `gorm:"column:last_updated;type:timestamptz" json:"last_updated"`
	PeakHours        datatypes.JSONType[PeakHours]     `gorm:"column:peak_hours;type:jsonb" json:"peak_hours"`
	WeeklyPattern    datatypes.JSONType[WeeklyPattern] `gorm:"column:weekly_pattern;type:jsonb" json:"weekly_pattern"`
	AvgSentiment     float64                           `gorm:"column:avg_sentiment" json:"avg_sentiment"`
	AvgResponseTime  float64                           `gorm:"column:avg_response_time" json:"avg_response_time"`
	EngagementTrend  float64                           `gorm:"column:engagement_trend" json:"engagement_trend"`
	InteractionCount int                               `gorm:"column:interaction_count" json:"interaction_count"`
}

func (UserHeatmapProfile) TableName() string { return "user_heatmap_profiles" }
