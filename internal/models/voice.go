package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	VoiceSessionActive = "active"
	VoiceSessionPaused = "paused"
	VoiceSessionEnded  = "ended"
)

type VoiceSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	UserID    string             `bson:"user_id" json:"user_id"`

	Language string `bson:"language" json:"language"` // en-US|id-ID
	Status   string `bson:"status" json:"status"`     // active|paused|ended

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	EndedAt   *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`

	DurationSeconds int64 `bson:"duration_seconds" json:"duration_seconds"`
}

type VoiceChunk struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID  string             `bson:"session_id" json:"session_id"`
	ChunkIndex int64              `bson:"chunk_index" json:"chunk_index"`

	AudioURL    *string `bson:"audio_url,omitempty" json:"audio_url,omitempty"`
	AudioBase64 *string `bson:"audio_base64,omitempty" json:"audio_base64,omitempty"`

	Transcript    string  `bson:"transcript,omitempty" json:"transcript,omitempty"`
	STTStatus     string  `bson:"stt_status" json:"stt_status"` // pending|processing|done|failed
	STTConfidence float64 `bson:"stt_confidence,omitempty" json:"stt_confidence,omitempty"`

	ReplyStatus string `bson:"reply_status" json:"reply_status"` // pending|processing|done|failed
	Reply       string `bson:"reply,omitempty" json:"reply,omitempty"`

	ProcessingTimeMS int64     `bson:"processing_time_ms,omitempty" json:"processing_time_ms,omitempty"`
	Timestamp        time.Time `bson:"timestamp" json:"timestamp"`

	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
}

// VoiceEmotion is the arousal/valence/dominance estimate of a recording, each in [0,1].
type VoiceEmotion struct {
	Arousal   float64 `json:"arousal"`
	Valence   float64 `json:"valence"`
	Dominance float64 `json:"dominance"`
}

type VoiceAnalysis struct {
	Text          *string                `json:"text"`
	Emotion       VoiceEmotion           `json:"emotion"`
	VoiceFeatures map[string][][]float64 `json:"voice_features"`
	AudioURL      string                 `json:"audio_url,omitempty"`
}
