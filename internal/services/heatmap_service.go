package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/quantachat/internal/cache"
	"github.com/yoockh/quantachat/internal/heatmap"
	"github.com/yoockh/quantachat/internal/models"
	pgrepo "github.com/yoockh/quantachat/internal/repositories/postgres"
	"github.com/yoockh/quantachat/internal/utils"
	"gorm.io/datatypes"
)

const inspectLimit = 1000

// Exchange is one completed user/agent turn to be recorded.
type Exchange struct {
	// ID becomes the interaction id; one is generated when empty.
	ID           string
	UserID       string
	UserMessage  string
	Reply        string
	ResponseTime float64 // seconds
	// Sentiment overrides the estimator when set, e.g. voice valence.
	Sentiment *float64
	// Emotion overrides the label derived from sentiment.
	Emotion string
}

type RawSeries struct {
	Timestamps    []time.Time `json:"timestamps"`
	Engagement    []float64   `json:"engagement"`
	Sentiment     []float64   `json:"sentiment"`
	ResponseTimes []float64   `json:"response_times"`
}

type Summary struct {
	PeakEngagement      models.PeakHours     `json:"peak_engagement"`
	WeeklyPattern       models.WeeklyPattern `json:"weekly_pattern"`
	AverageSentiment    float64              `json:"average_sentiment"`
	AverageResponseTime float64              `json:"average_response_time"`
	EngagementTrend     float64              `json:"engagement_trend"`
	InteractionCount    int                  `json:"interaction_count"`
	LastUpdated         time.Time            `json:"last_updated"`
}

// Inspection is the admin view of a user's heatmap state.
type Inspection struct {
	Profile            *models.UserHeatmapProfile `json:"heatmap_stats"`
	RecentInteractions []models.InteractionRecord `json:"recent_interactions"`
}

type HeatmapService interface {
	RecordInteraction(ctx context.Context, ex Exchange) (*models.InteractionRecord, error)
	Refresh(ctx context.Context, userID string) (*models.UserHeatmapProfile, bool, error)
	Raw(ctx context.Context, userID, timeframe string) (*RawSeries, error)
	Summary(ctx context.Context, userID string) (*Summary, error)
	Inspect(ctx context.Context, userID string) (*Inspection, error)
	RebuildAll(ctx context.Context) (int, error)
}

type HeatmapOptions struct {
	Window     time.Duration
	SummaryTTL time.Duration
	Now        func() time.Time
}

type heatmapService struct {
	repo      pgrepo.HeatmapRepository
	cache     cache.Cache
	locker    cache.Locker
	scorer    *heatmap.Scorer
	agg       *heatmap.Aggregator
	sentiment heatmap.SentimentEstimator
	log       *logrus.Logger

	window     time.Duration
	summaryTTL time.Duration
	now        func() time.Time
}

func NewHeatmapService(
	repo pgrepo.HeatmapRepository,
	c cache.Cache,
	locker cache.Locker,
	scorer *heatmap.Scorer,
	agg *heatmap.Aggregator,
	sentiment heatmap.SentimentEstimator,
	log *logrus.Logger,
	opts HeatmapOptions,
) HeatmapService {
	if opts.Window <= 0 {
		opts.Window = 30 * 24 * time.Hour
	}
	if opts.SummaryTTL <= 0 {
		opts.SummaryTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	return &heatmapService{
		repo:       repo,
		cache:      c,
		locker:     locker,
		scorer:     scorer,
		agg:        agg,
		sentiment:  sentiment,
		log:        log,
		window:     opts.Window,
		summaryTTL: opts.SummaryTTL,
		now:        opts.Now,
	}
}

func summaryKey(userID string) string { return "heatmap:summary:" + userID }

func (s *heatmapService) RecordInteraction(ctx context.Context, ex Exchange) (*models.InteractionRecord, error) {
	const op = "HeatmapService.RecordInteraction"

	if ex.UserID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if ex.ResponseTime < 0 || math.IsNaN(ex.ResponseTime) || math.IsInf(ex.ResponseTime, 0) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "response_time must be a non-negative number of seconds", nil)
	}

	var sentiment float64
	if ex.Sentiment != nil {
		sentiment = utils.Clamp(*ex.Sentiment, -1, 1)
	} else {
		sentiment = s.estimate(ctx, ex.UserID, ex.UserMessage)
	}

	emotion := ex.Emotion
	if emotion == "" {
		emotion = heatmap.EmotionLabel(sentiment, 0)
	}

	id := ex.ID
	if id == "" {
		id = uuid.NewString()
	}

	length := utils.RuneLen(ex.UserMessage)
	rec := &models.InteractionRecord{
		ID:              id,
		UserID:          ex.UserID,
		Timestamp:       s.now().UTC(),
		MessageLength:   length,
		ResponseTime:    ex.ResponseTime,
		SentimentScore:  sentiment,
		Emotion:         emotion,
		EngagementScore: s.scorer.Score(length, ex.ResponseTime, sentiment),
		CognitiveLoad:   s.scorer.CognitiveLoad(ex.Reply),
	}

	if err := s.repo.InsertInteraction(ctx, rec); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store interaction", err)
	}

	if _, _, err := s.Refresh(ctx, ex.UserID); err != nil {
		return nil, err
	}
	return rec, nil
}

// estimate never fails: estimator errors degrade to neutral sentiment.
func (s *heatmapService) estimate(ctx context.Context, userID, text string) float64 {
	v, err := s.sentiment.Estimate(ctx, text)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("sentiment estimation failed, using neutral score")
		return 0
	}
	return utils.Clamp(v, -1, 1)
}

func (s *heatmapService) Refresh(ctx context.Context, userID string) (*models.UserHeatmapProfile, bool, error) {
	const op = "HeatmapService.Refresh"

	if userID == "" {
		return nil, false, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		if errors.Is(err, cache.ErrLockTimeout) {
			return nil, false, utils.E(utils.CodeTimeout, op, "profile refresh is busy", err)
		}
		return nil, false, utils.E(utils.CodeUnavailable, op, "failed to acquire profile lock", err)
	}
	defer unlock()

	now := s.now().UTC()
	records, err := s.repo.ListInteractionsSince(ctx, userID, now.Add(-s.window))
	if err != nil {
		return nil, false, utils.E(utils.CodeInternal, op, "failed to load interactions", err)
	}

	agg, ok := s.agg.Aggregate(records, now)
	if !ok {
		return nil, false, nil
	}

	p := &models.UserHeatmapProfile{
		UserID:           userID,
		LastUpdated:      now,
		PeakHours:        datatypes.NewJSONType(agg.PeakHours),
		WeeklyPattern:    datatypes.NewJSONType(agg.WeeklyPattern),
		AvgSentiment:     agg.AvgSentiment,
		AvgResponseTime:  agg.AvgResponseTime,
		EngagementTrend:  agg.EngagementTrend,
		InteractionCount: agg.Count,
	}
	if err := s.repo.UpsertProfile(ctx, p); err != nil {
		return nil, false, utils.E(utils.CodeInternal, op, "failed to store profile", err)
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, summaryKey(userID)); err != nil {
			s.log.WithFields(logrus.Fields{
				"user_id": userID,
				"error":   err.Error(),
			}).Warn("failed to invalidate heatmap summary")
		}
	}
	return p, true, nil
}

func (s *heatmapService) Raw(ctx context.Context, userID, timeframe string) (*RawSeries, error) {
	const op = "HeatmapService.Raw"

	tf, err := heatmap.ParseTimeframe(timeframe)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), nil)
	}

	records, err := s.repo.ListInteractionsSince(ctx, userID, s.now().UTC().Add(-tf.Duration()))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load interactions", err)
	}

	out := &RawSeries{
		Timestamps:    make([]time.Time, 0, len(records)),
		Engagement:    make([]float64, 0, len(records)),
		Sentiment:     make([]float64, 0, len(records)),
		ResponseTimes: make([]float64, 0, len(records)),
	}
	for _, r := range records {
		out.Timestamps = append(out.Timestamps, r.Timestamp.UTC())
		out.Engagement = append(out.Engagement, r.EngagementScore)
		out.Sentiment = append(out.Sentiment, r.SentimentScore)
		out.ResponseTimes = append(out.ResponseTimes, r.ResponseTime)
	}
	return out, nil
}

func (s *heatmapService) Summary(ctx context.Context, userID string) (*Summary, error) {
	if s.cache == nil {
		return s.loadSummary(ctx, userID)
	}

	onErr := func(stage string, err error) {
		s.log.WithFields(logrus.Fields{"user_id": userID, "stage": stage, "error": err.Error()}).
			Warn("heatmap summary cache failed")
	}

	var cached Summary
	hit, err := s.cache.GetJSON(ctx, summaryKey(userID), &cached)
	if err != nil {
		onErr("get", err)
	}
	if hit {
		return &cached, nil
	}

	// The fill runs under the refresh lock so a profile read before a
	// Refresh cannot be stored after that Refresh invalidated the key.
	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		onErr("lock", err)
		return s.loadSummary(ctx, userID)
	}
	defer unlock()

	return cache.ReadThrough(ctx, s.cache, summaryKey(userID), s.summaryTTL, func(ctx context.Context) (*Summary, error) {
		return s.loadSummary(ctx, userID)
	}, onErr)
}

func (s *heatmapService) loadSummary(ctx context.Context, userID string) (*Summary, error) {
	const op = "HeatmapService.Summary"

	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "no heatmap data available", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load profile", err)
	}
	return &Summary{
		PeakEngagement:      p.PeakHours.Data(),
		WeeklyPattern:       p.WeeklyPattern.Data(),
		AverageSentiment:    p.AvgSentiment,
		AverageResponseTime: p.AvgResponseTime,
		EngagementTrend:     p.EngagementTrend,
		InteractionCount:    p.InteractionCount,
		LastUpdated:         p.LastUpdated.UTC(),
	}, nil
}

func (s *heatmapService) Inspect(ctx context.Context, userID string) (*Inspection, error) {
	const op = "HeatmapService.Inspect"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to load profile", err)
	}

	records, err := s.repo.ListInteractionsSince(ctx, userID, s.now().UTC().Add(-s.window))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load interactions", err)
	}
	if p == nil && len(records) == 0 {
		return nil, utils.E(utils.CodeNotFound, op, "no heatmap data available", nil)
	}

	// newest first, capped
	recent := make([]models.InteractionRecord, 0, min(len(records), inspectLimit))
	for i := len(records) - 1; i >= 0 && len(recent) < inspectLimit; i-- {
		recent = append(recent, records[i])
	}
	return &Inspection{Profile: p, RecentInteractions: recent}, nil
}

// RebuildAll refreshes every user with interactions in the trailing window.
func (s *heatmapService) RebuildAll(ctx context.Context) (int, error) {
	const op = "HeatmapService.RebuildAll"

	ids, err := s.repo.ActiveUserIDs(ctx, s.now().UTC().Add(-s.window))
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to list active users", err)
	}

	n := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return n, utils.E(utils.CodeTimeout, op, "rebuild interrupted", err)
		}
		_, ok, err := s.Refresh(ctx, id)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	s.log.WithFields(logrus.Fields{"users": len(ids), "refreshed": n}).Info("heatmap rebuild finished")
	return n, nil
}
