package models

import (
	"time"

	"gorm.io/datatypes"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

const (
	TierFree    = "free"
	TierTeaser  = "teaser+"
	TierPremium = "premium"
	TierElite   = "elite"
)

type HeatmapPreferences struct {
	Sensitivity float64 `json:"sensitivity"`
	Visible     bool    `json:"visible"`
}

// PersonalityMatrix holds the trait targets used by profile-optimized response selection.
type PersonalityMatrix struct {
	Empathy   float64 `json:"empathy"`
	Humor     float64 `json:"humor"`
	Formality float64 `json:"formality"`
}

func DefaultHeatmapPreferences() HeatmapPreferences {
	return HeatmapPreferences{Sensitivity: 0.7, Visible: true}
}

func DefaultPersonalityMatrix() PersonalityMatrix {
	return PersonalityMatrix{Empathy: 0.5, Humor: 0.3, Formality: 0.6}
}

type User struct {
	ID             string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Username       string    `gorm:"column:username;type:varchar(50);uniqueIndex" json:"username"`
	Email          string    `gorm:"column:email;type:varchar(100);uniqueIndex" json:"email"`
	HashedPassword string    `gorm:"column:hashed_password;type:varchar(255)" json:"-"`
	IsActive       bool      `gorm:"column:is_active" json:"is_active"`
	Role           UserRole  `gorm:"column:role;type:text" json:"role"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`

	SubscriptionTier string `gorm:"column:subscription_tier;type:varchar(20)" json:"subscription_tier"`
	QuantumAccess    bool   `gorm:"column:quantum_access" json:"quantum_access"`
	VoiceEnabled     bool   `gorm:"column:voice_enabled" json:"voice_enabled"`

	HeatmapPreferences datatypes.JSONType[HeatmapPreferences] `gorm:"column:heatmap_preferences;type:jsonb" json:"heatmap_preferences"`
	PersonalityMatrix  datatypes.JSONType[PersonalityMatrix]  `gorm:"column:personality_matrix;type:jsonb" json:"personality_matrix"`
}

func (User) TableName() string { return "users" }

// IsPremium reports whether the user's tier unlocks profile-optimized replies.
func (u *User) IsPremium() bool {
	return u.SubscriptionTier == TierPremium || u.SubscriptionTier == TierElite
}
