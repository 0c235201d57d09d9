package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/quantachat/internal/heatmap"
	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/providers/stt"
	pgrepo "github.com/yoockh/quantachat/internal/repositories/postgres"
	"github.com/yoockh/quantachat/internal/storage"
	"github.com/yoockh/quantachat/internal/utils"
	"github.com/yoockh/quantachat/internal/voice"
)

const playbackURLTTL = time.Hour

type VoiceUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type VoiceResult struct {
	TextResponse   string               `json:"text_response"`
	EmotionAdapted bool                 `json:"emotion_adapted"`
	VoiceAnalysis  models.VoiceAnalysis `json:"voice_analysis"`
}

type VoiceService interface {
	Process(ctx context.Context, userID string, up VoiceUpload) (*VoiceResult, error)
}

type VoiceDeps struct {
	Users     pgrepo.UserRepository
	Heatmap   HeatmapService
	Responder *Responder
	STT       stt.Provider     // optional
	Archive   storage.Uploader // optional
	MaxBytes  int64
	Log       *logrus.Logger
	Now       func() time.Time
}

type voiceService struct {
	VoiceDeps
}

func NewVoiceService(d VoiceDeps) VoiceService {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MaxBytes <= 0 {
		d.MaxBytes = 10 << 20
	}
	if d.Responder == nil {
		d.Responder = NewResponder(nil)
	}
	return &voiceService{VoiceDeps: d}
}

func (s *voiceService) Process(ctx context.Context, userID string, up VoiceUpload) (*VoiceResult, error) {
	const op = "VoiceService.Process"

	if !strings.HasPrefix(strings.ToLower(up.ContentType), "audio/") {
		return nil, utils.E(utils.CodeInvalidArgument, op, "only audio files are accepted", nil)
	}
	if len(up.Data) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio file is empty", nil)
	}
	if int64(len(up.Data)) > s.MaxBytes {
		return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("audio file exceeds %d bytes", s.MaxBytes), nil)
	}

	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}

	pcm, err := voice.Decode(up.Data)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), err)
	}
	analysis, err := voice.Analyze(pcm)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), err)
	}

	log := s.Log.WithField("user_id", userID)
	result := &VoiceResult{
		EmotionAdapted: true,
		VoiceAnalysis: models.VoiceAnalysis{
			Emotion:       analysis.Emotion,
			VoiceFeatures: analysis.Features,
		},
	}

	if s.Archive != nil {
		ext := strings.ToLower(filepath.Ext(up.Filename))
		if ext == "" {
			ext = ".wav"
		}
		name := storage.VoiceObjectName(userID, uuid.NewString(), ext, s.Now())
		url, err := s.Archive.Upload(ctx, name, up.ContentType, bytes.NewReader(up.Data))
		if err != nil {
			log.WithField("error", err.Error()).Warn("voice archive upload failed")
		} else {
			result.VoiceAnalysis.AudioURL = url
			if signer, ok := s.Archive.(storage.Signer); ok {
				if signed, err := signer.SignedGetURL(ctx, name, playbackURLTTL); err == nil {
					result.VoiceAnalysis.AudioURL = signed
				} else {
					log.WithField("error", err.Error()).Warn("voice archive signing failed")
				}
			}
		}
	}

	var transcript string
	if s.STT != nil {
		var (
			text string
			conf float64
		)
		linear16, err := voice.EncodeWAV(pcm)
		if err == nil {
			text, conf, err = s.STT.Transcribe(ctx, stt.Audio{PCM: linear16, SampleRate: pcm.SampleRate}, "")
		}
		if err != nil {
			log.WithField("error", err.Error()).Warn("speech recognition failed")
		} else if text != "" {
			transcript = text
			result.VoiceAnalysis.Text = &transcript
			log.WithField("confidence", conf).Debug("voice transcribed")
		}
	}

	start := s.Now()
	if u.IsPremium() {
		result.TextResponse = s.Responder.OptimizedVoiceReply(ctx, analysis.Emotion, u.PersonalityMatrix.Data())
	} else {
		result.TextResponse = ClassicVoiceReply(analysis.Emotion)
	}
	latency := s.Now().Sub(start).Seconds()
	if latency < 0 {
		latency = 0
	}

	// valence in [0,1] maps onto the [-1,1] sentiment scale
	sentiment := analysis.Emotion.Valence*2 - 1
	if _, err := s.Heatmap.RecordInteraction(ctx, Exchange{
		UserID:       userID,
		UserMessage:  transcript,
		Reply:        result.TextResponse,
		ResponseTime: latency,
		Sentiment:    &sentiment,
		Emotion:      heatmap.EmotionLabel(sentiment, analysis.Emotion.Arousal),
	}); err != nil {
		return nil, err
	}

	return result, nil
}
