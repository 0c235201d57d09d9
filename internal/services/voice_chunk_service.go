package services

import (
	"context"

	"github.com/yoockh/quantachat/internal/models"
	mongorepo "github.com/yoockh/quantachat/internal/repositories/mongo"
	"github.com/yoockh/quantachat/internal/utils"
)

type VoiceChunkService interface {
	InsertAudioChunk(ctx context.Context, sessionID string, chunkIndex int64, audioURL, audioBase64 *string) (*models.VoiceChunk, error)
	MarkTranscript(ctx context.Context, sessionID string, chunkIndex int64, transcript string, confidence float64, status string) error
	MarkReply(ctx context.Context, sessionID string, chunkIndex int64, reply string, status string, processingMS int64) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.VoiceChunk, error)
}

type voiceChunkService struct {
	chunks mongorepo.VoiceChunkRepository
}

func NewVoiceChunkService(chunks mongorepo.VoiceChunkRepository) VoiceChunkService {
	return &voiceChunkService{chunks: chunks}
}

func (s *voiceChunkService) InsertAudioChunk(ctx context.Context, sessionID string, chunkIndex int64, audioURL, audioBase64 *string) (*models.VoiceChunk, error) {
	const op = "VoiceChunkService.InsertAudioChunk"

	if sessionID == "" || chunkIndex <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required and chunk_index must be > 0", nil)
	}
	if audioURL == nil && audioBase64 == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio_url or audio_base64 is required", nil)
	}

	doc := &models.VoiceChunk{
		SessionID:   sessionID,
		ChunkIndex:  chunkIndex,
		AudioURL:    audioURL,
		AudioBase64: audioBase64,
	}
	if err := s.chunks.InsertChunk(ctx, doc); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert audio chunk", err)
	}
	return doc, nil
}

func (s *voiceChunkService) MarkTranscript(ctx context.Context, sessionID string, chunkIndex int64, transcript string, confidence float64, status string) error {
	const op = "VoiceChunkService.MarkTranscript"

	if sessionID == "" || chunkIndex <= 0 || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id, chunk_index (>0), and status are required", nil)
	}
	if err := s.chunks.UpdateTranscript(ctx, sessionID, chunkIndex, transcript, confidence, status); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update transcript", err)
	}
	return nil
}

func (s *voiceChunkService) MarkReply(ctx context.Context, sessionID string, chunkIndex int64, reply string, status string, processingMS int64) error {
	const op = "VoiceChunkService.MarkReply"

	if sessionID == "" || chunkIndex <= 0 || status == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id, chunk_index (>0), and status are required", nil)
	}
	if err := s.chunks.UpdateReply(ctx, sessionID, chunkIndex, reply, status, processingMS); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update reply", err)
	}
	return nil
}

func (s *voiceChunkService) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.VoiceChunk, error) {
	const op = "VoiceChunkService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.chunks.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list voice chunks", err)
	}
	return out, nil
}
