package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type HeatmapRepository interface {
	InsertInteraction(ctx context.Context, r *models.InteractionRecord) error
	ListInteractionsSince(ctx context.Context, userID string, since time.Time) ([]models.InteractionRecord, error)
	GetProfile(ctx context.Context, userID string) (*models.UserHeatmapProfile, error)
	UpsertProfile(ctx context.Context, p *models.UserHeatmapProfile) error
	ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error)
}

type heatmapRepo struct {
	db *gorm.DB
}

func NewHeatmapRepo(db *gorm.DB) HeatmapRepository {
	return &heatmapRepo{db: db}
}

func (r *heatmapRepo) InsertInteraction(ctx context.Context, rec *models.InteractionRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// ListInteractionsSince returns the user's records with timestamp >= since, oldest first.
func (r *heatmapRepo) ListInteractionsSince(ctx context.Context, userID string, since time.Time) ([]models.InteractionRecord, error) {
	var rows []models.InteractionRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ?", userID, since.UTC()).
		Order("timestamp ASC").
		Find(&rows).Error
	return rows, err
}

func (r *heatmapRepo) GetProfile(ctx context.Context, userID string) (*models.UserHeatmapProfile, error) {
	var p models.UserHeatmapProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &p, err
}

// UpsertProfile overwrites every derived column in one statement.
func (r *heatmapRepo) UpsertProfile(ctx context.Context, p *models.UserHeatmapProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"last_updated", "peak_hours", "weekly_pattern", "avg_sentiment",
				"avg_response_time", "engagement_trend", "interaction_count",
			}),
		}).
		Create(p).Error
}

// ActiveUserIDs lists users with at least one interaction since the given time.
func (r *heatmapRepo) ActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.InteractionRecord{}).
		Where("timestamp >= ?", since.UTC()).
		Distinct("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}
