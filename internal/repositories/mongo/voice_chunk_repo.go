package mongo

import (
	"context"
	"time"

	"github.com/yoockh/quantachat/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ChunkPending    = "pending"
	ChunkProcessing = "processing"
	ChunkDone       = "done"
	ChunkFailed     = "failed"
)

type VoiceChunkRepository interface {
	InsertChunk(ctx context.Context, c *models.VoiceChunk) error
	UpdateTranscript(ctx context.Context, sessionID string, chunkIndex int64, transcript string, confidence float64, status string) error
	UpdateReply(ctx context.Context, sessionID string, chunkIndex int64, reply string, status string, processingMS int64) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.VoiceChunk, error)
	DeleteBySessions(ctx context.Context, sessionIDs []string) error
}

type voiceChunkRepo struct {
	col *mongo.Collection
	ttl time.Duration
}

// NewVoiceChunkRepo stores chunks that expire ttl after insertion via the expires_at TTL index.
func NewVoiceChunkRepo(db *mongo.Database, ttl time.Duration) VoiceChunkRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &voiceChunkRepo{col: db.Collection("voice_chunks"), ttl: ttl}
}

func (r *voiceChunkRepo) InsertChunk(ctx context.Context, c *models.VoiceChunk) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = c.Timestamp.Add(r.ttl)
	}
	if c.STTStatus == "" {
		c.STTStatus = ChunkPending
	}
	if c.ReplyStatus == "" {
		c.ReplyStatus = ChunkPending
	}
	_, err := r.col.InsertOne(ctx, c)
	return err
}

func (r *voiceChunkRepo) UpdateTranscript(ctx context.Context, sessionID string, chunkIndex int64, transcript string, confidence float64, status string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "chunk_index": chunkIndex},
		bson.M{"$set": bson.M{
			"transcript":     transcript,
			"stt_confidence": confidence,
			"stt_status":     status,
		}},
	)
	return err
}

func (r *voiceChunkRepo) UpdateReply(ctx context.Context, sessionID string, chunkIndex int64, reply string, status string, processingMS int64) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "chunk_index": chunkIndex},
		bson.M{"$set": bson.M{
			"reply":              reply,
			"reply_status":       status,
			"processing_time_ms": processingMS,
		}},
	)
	return err
}

func (r *voiceChunkRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.VoiceChunk, error) {
	if limit <= 0 {
		limit = 200
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "chunk_index", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.VoiceChunk
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *voiceChunkRepo) DeleteBySessions(ctx context.Context, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	_, err := r.col.DeleteMany(ctx, bson.M{"session_id": bson.M{"$in": sessionIDs}})
	return err
}
