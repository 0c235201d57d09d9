package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type VoiceSessionRepository interface {
	Create(ctx context.Context, s *models.VoiceSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.VoiceSession, error)
	End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) error
	SetStatus(ctx context.Context, sessionID, status string) error
	SessionIDsByUser(ctx context.Context, userID string) ([]string, error)
	DeleteByUser(ctx context.Context, userID string) error
}

type voiceSessionRepo struct {
	col *mongo.Collection
}

func NewVoiceSessionRepo(db *mongo.Database) VoiceSessionRepository {
	return &voiceSessionRepo{col: db.Collection("voice_sessions")}
}

func (r *voiceSessionRepo) Create(ctx context.Context, s *models.VoiceSession) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *voiceSessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.VoiceSession, error) {
	var s models.VoiceSession
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *voiceSessionRepo) End(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int64) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{
			"status":           models.VoiceSessionEnded,
			"ended_at":         endedAt.UTC(),
			"duration_seconds": durationSeconds,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *voiceSessionRepo) SetStatus(ctx context.Context, sessionID, status string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"status": status}},
	)
	return err
}

func (r *voiceSessionRepo) SessionIDsByUser(ctx context.Context, userID string) ([]string, error) {
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetProjection(bson.M{"session_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.VoiceSession
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, s := range rows {
		ids = append(ids, s.SessionID)
	}
	return ids, nil
}

func (r *voiceSessionRepo) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}
