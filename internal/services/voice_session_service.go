package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/quantachat/internal/models"
	mongorepo "github.com/yoockh/quantachat/internal/repositories/mongo"
	"github.com/yoockh/quantachat/internal/utils"
)

var supportedLanguages = map[string]bool{"en-US": true, "en-GB": true, "id-ID": true}

type VoiceSessionService interface {
	Start(ctx context.Context, userID, language string) (*models.VoiceSession, error)
	// Get returns the session only if it belongs to userID.
	Get(ctx context.Context, userID, sessionID string) (*models.VoiceSession, error)
	End(ctx context.Context, userID, sessionID string) (*models.VoiceSession, error)
	SetStatus(ctx context.Context, sessionID, status string) error
}

type voiceSessionService struct {
	sessions mongorepo.VoiceSessionRepository
	now      func() time.Time
}

func NewVoiceSessionService(sessions mongorepo.VoiceSessionRepository) VoiceSessionService {
	return &voiceSessionService{sessions: sessions, now: time.Now}
}

func (s *voiceSessionService) Start(ctx context.Context, userID, language string) (*models.VoiceSession, error) {
	const op = "VoiceSessionService.Start"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if language == "" {
		language = "en-US"
	}
	if !supportedLanguages[language] {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unsupported language", nil)
	}

	session := &models.VoiceSession{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Language:  language,
		Status:    models.VoiceSessionActive,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	return session, nil
}

func (s *voiceSessionService) Get(ctx context.Context, userID, sessionID string) (*models.VoiceSession, error) {
	const op = "VoiceSessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	out, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	// another user's session is reported as missing
	if out.UserID != userID {
		return nil, utils.E(utils.CodeNotFound, op, "session not found", nil)
	}
	return out, nil
}

func (s *voiceSessionService) End(ctx context.Context, userID, sessionID string) (*models.VoiceSession, error) {
	const op = "VoiceSessionService.End"

	ss, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if ss.Status == models.VoiceSessionEnded {
		return ss, nil
	}

	now := s.now().UTC()
	dur := int64(now.Sub(ss.CreatedAt).Seconds())
	if dur < 0 {
		dur = 0
	}

	if err := s.sessions.End(ctx, sessionID, now, dur); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to end session", err)
	}

	ss.Status = models.VoiceSessionEnded
	ss.EndedAt = &now
	ss.DurationSeconds = dur
	return ss, nil
}

func (s *voiceSessionService) SetStatus(ctx context.Context, sessionID, status string) error {
	const op = "VoiceSessionService.SetStatus"

	switch status {
	case models.VoiceSessionActive, models.VoiceSessionPaused, models.VoiceSessionEnded:
	default:
		return utils.E(utils.CodeInvalidArgument, op, "invalid status", nil)
	}
	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if err := s.sessions.SetStatus(ctx, sessionID, status); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set status", err)
	}
	return nil
}
