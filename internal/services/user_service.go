package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/quantachat/internal/cache"
	"github.com/yoockh/quantachat/internal/models"
	mongorepo "github.com/yoockh/quantachat/internal/repositories/mongo"
	pgrepo "github.com/yoockh/quantachat/internal/repositories/postgres"
	"github.com/yoockh/quantachat/internal/utils"
	"gorm.io/datatypes"
)

type PreferencesInput struct {
	HeatmapPreferences *models.HeatmapPreferences `json:"heatmap_preferences"`
	PersonalityMatrix  *models.PersonalityMatrix  `json:"personality_matrix"`
	VoiceEnabled       *bool                      `json:"voice_enabled"`
}

type UserService interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	UpdatePreferences(ctx context.Context, userID string, in PreferencesInput) (*models.User, error)
	Delete(ctx context.Context, userID string) error
}

type userService struct {
	users    pgrepo.UserRepository
	sessions mongorepo.VoiceSessionRepository // optional
	chunks   mongorepo.VoiceChunkRepository   // optional
	cache    cache.Cache                      // optional
	log      *logrus.Logger
}

func NewUserService(users pgrepo.UserRepository, sessions mongorepo.VoiceSessionRepository, chunks mongorepo.VoiceChunkRepository, c cache.Cache, log *logrus.Logger) UserService {
	return &userService{users: users, sessions: sessions, chunks: chunks, cache: c, log: log}
}

func (s *userService) Get(ctx context.Context, userID string) (*models.User, error) {
	const op = "UserService.Get"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	return u, nil
}

func (s *userService) UpdatePreferences(ctx context.Context, userID string, in PreferencesInput) (*models.User, error) {
	const op = "UserService.UpdatePreferences"

	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if hp := in.HeatmapPreferences; hp != nil {
		if hp.Sensitivity < 0 || hp.Sensitivity > 1 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "sensitivity must be within [0,1]", nil)
		}
		u.HeatmapPreferences = datatypes.NewJSONType(*hp)
	}
	if pm := in.PersonalityMatrix; pm != nil {
		for _, v := range []float64{pm.Empathy, pm.Humor, pm.Formality} {
			if v < 0 || v > 1 {
				return nil, utils.E(utils.CodeInvalidArgument, op, "personality traits must be within [0,1]", nil)
			}
		}
		u.PersonalityMatrix = datatypes.NewJSONType(*pm)
	}
	if in.VoiceEnabled != nil {
		u.VoiceEnabled = *in.VoiceEnabled
	}

	if err := s.users.UpdatePreferences(ctx, u); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to update preferences", err)
	}
	return u, nil
}

// Delete removes the user row (cascading interactions, profile and messages)
// and then best-effort clears voice state and cached summaries.
func (s *userService) Delete(ctx context.Context, userID string) error {
	const op = "UserService.Delete"

	if userID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to delete user", err)
	}

	entry := s.log.WithField("user_id", userID)
	if s.sessions != nil {
		ids, err := s.sessions.SessionIDsByUser(ctx, userID)
		if err != nil {
			entry.WithField("error", err.Error()).Warn("failed to list voice sessions for deletion")
		} else {
			if s.chunks != nil {
				if err := s.chunks.DeleteBySessions(ctx, ids); err != nil {
					entry.WithField("error", err.Error()).Warn("failed to delete voice chunks")
				}
			}
			if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
				entry.WithField("error", err.Error()).Warn("failed to delete voice sessions")
			}
		}
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, summaryKey(userID)); err != nil {
			entry.WithField("error", err.Error()).Warn("failed to drop cached heatmap summary")
		}
	}
	entry.Info("user deleted")
	return nil
}
