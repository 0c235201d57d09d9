package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/quantachat/internal/cache"
	"github.com/yoockh/quantachat/internal/heatmap"
	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/utils"
)

type heatmapFixture struct {
	svc   HeatmapService
	repo  *fakeHeatmapRepo
	cache *fakeCache
	clock *stepClock
	hook  *logtest.Hook
}

func newHeatmapFixture(t *testing.T, est heatmap.SentimentEstimator) *heatmapFixture {
	t.Helper()

	scorer, err := heatmap.NewScorer(heatmap.DefaultConfig())
	require.NoError(t, err)

	log, hook := logtest.NewNullLogger()
	f := &heatmapFixture{
		repo:  newFakeHeatmapRepo(),
		cache: newFakeCache(),
		clock: &stepClock{t: time.Date(2026, 10, 12, 14, 0, 0, 0, time.UTC)},
		hook:  hook,
	}
	f.svc = NewHeatmapService(f.repo, f.cache, cache.NewLocalLocker(), scorer,
		heatmap.NewAggregator(0), est, log,
		HeatmapOptions{Now: f.clock.Now})
	return f
}

func TestRecordInteraction_ScoresAndRefreshes(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{})
	ctx := context.Background()

	rec, err := f.svc.RecordInteraction(ctx, Exchange{
		UserID:       "u1",
		UserMessage:  strings.Repeat("x", 50),
		Reply:        "one two three",
		ResponseTime: 1.0,
		Sentiment:    ptr(0.0),
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.54, rec.EngagementScore, 1e-9)
	assert.InDelta(t, 0.03, rec.CognitiveLoad, 1e-9)
	assert.Equal(t, 50, rec.MessageLength)
	assert.Equal(t, "neutral", rec.Emotion)
	assert.Equal(t, f.clock.Now(), rec.Timestamp)

	p, err := f.repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.InteractionCount)
	assert.Equal(t, 14, p.PeakHours.Data().Hour)
	assert.Equal(t, 1.0, p.WeeklyPattern.Data()["monday"])
	assert.Equal(t, f.clock.Now(), p.LastUpdated)
}

func TestRecordInteraction_MessageLengthCountsRunes(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{})

	rec, err := f.svc.RecordInteraction(context.Background(), Exchange{UserID: "u1", UserMessage: "héllo wörld"})
	require.NoError(t, err)
	assert.Equal(t, 11, rec.MessageLength)
}

func TestRecordInteraction_RejectsNegativeResponseTime(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{})

	_, err := f.svc.RecordInteraction(context.Background(), Exchange{UserID: "u1", ResponseTime: -0.1})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	assert.Empty(t, f.repo.records)
}

func TestRecordInteraction_SentimentFailureFallsBackToNeutral(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{score: 0.9, err: errors.New("model offline")})

	rec, err := f.svc.RecordInteraction(context.Background(), Exchange{UserID: "u1", UserMessage: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.SentimentScore)
	require.Len(t, f.repo.records, 1)

	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
}

func TestRecordInteraction_EstimatorOutputIsClipped(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{score: 3})

	rec, err := f.svc.RecordInteraction(context.Background(), Exchange{UserID: "u1", UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.SentimentScore)
	assert.Equal(t, "happy", rec.Emotion)
}

func TestRecordInteraction_StorageErrorPropagates(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{})
	f.repo.insertErr = errors.New("connection reset")

	_, err := f.svc.RecordInteraction(context.Background(), Exchange{UserID: "u1", UserMessage: "hi"})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInternal))
	assert.Equal(t, 0, f.repo.upserts)
}

func TestRecordInteraction_ProfileWriteErrorKeepsRecord(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{})
	f.repo.upsertErr = errors.New("deadlock")

	_, err := f.svc.RecordInteraction(context.Background(), Exchange{UserID: "u1", UserMessage: "hi"})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInternal))
	assert.Len(t, f.repo.records, 1)
}

func TestRefresh_EmptyWindowIsNoop(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{})

	p, ok, err := f.svc.Refresh(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, p)
	assert.Equal(t, 0, f.repo.upserts)
	assert.Equal(t, 0, f.cache.dels)
}

func TestRefresh_ExpiredRecordsLeaveProfileUntouched(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{})
	ctx := context.Background()

	_, err := f.svc.RecordInteraction(ctx, Exchange{UserID: "u1", UserMessage: "hi"})
	require.NoError(t, err)
	before, err := f.repo.GetProfile(ctx, "u1")
	require.NoError(t, err)

	f.clock.Set(f.clock.Now().Add(31 * 24 * time.Hour))
	_, ok, err := f.svc.Refresh(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := f.repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRefresh_Idempotent(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{score: 0.4})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.RecordInteraction(ctx, Exchange{UserID: "u1", UserMessage: "hello", ResponseTime: float64(i)})
		require.NoError(t, err)
		f.clock.Set(f.clock.Now().Add(time.Hour))
	}

	first, ok, err := f.svc.Refresh(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	second, ok, err := f.svc.Refresh(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, 5, second.InteractionCount)
	assert.InDelta(t, 2.0, second.AvgResponseTime, 1e-9)
	assert.InDelta(t, 0.4, second.AvgSentiment, 1e-9)
}

func TestRecordInteraction_ConcurrentSameUser(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordInteraction(ctx, Exchange{UserID: "u1", UserMessage: "hey"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, _, err := f.svc.Refresh(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 25, p.InteractionCount)

	stored, err := f.repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 25, stored.InteractionCount)
}

func TestSummary(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{score: 0.5})
	ctx := context.Background()

	_, err := f.svc.Summary(ctx, "u1")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	_, err = f.svc.RecordInteraction(ctx, Exchange{UserID: "u1", UserMessage: "hi", ResponseTime: 2})
	require.NoError(t, err)

	s, err := f.svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 14, s.PeakEngagement.Hour)
	assert.InDelta(t, 0.5, s.AverageSentiment, 1e-9)
	assert.InDelta(t, 2.0, s.AverageResponseTime, 1e-9)
	assert.Len(t, s.WeeklyPattern, 7)
	assert.Equal(t, 1, f.cache.sets)

	// served from cache
	cached, err := f.svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, s.PeakEngagement, cached.PeakEngagement)
	assert.Equal(t, 1, f.cache.sets)

	// a new interaction invalidates it
	f.clock.Set(f.clock.Now().Add(3 * time.Hour))
	_, err = f.svc.RecordInteraction(ctx, Exchange{UserID: "u1", UserMessage: "again"})
	require.NoError(t, err)
	fresh, err := f.svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.InteractionCount)
	assert.Equal(t, 2, f.cache.sets)
}

func TestRaw(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{score: -0.2})
	ctx := context.Background()

	_, err := f.svc.Raw(ctx, "u1", "1y")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	empty, err := f.svc.Raw(ctx, "u1", "")
	require.NoError(t, err)
	assert.NotNil(t, empty.Timestamps)
	assert.Empty(t, empty.Timestamps)

	start := f.clock.Now()
	for i := 0; i < 3; i++ {
		f.clock.Set(start.Add(time.Duration(i) * 12 * time.Hour))
		_, err := f.svc.RecordInteraction(ctx, Exchange{UserID: "u1", UserMessage: "hi", ResponseTime: float64(i)})
		require.NoError(t, err)
	}

	day, err := f.svc.Raw(ctx, "u1", "24h")
	require.NoError(t, err)
	assert.Len(t, day.Timestamps, 3)

	f.clock.Set(start.Add(36 * time.Hour))
	day, err = f.svc.Raw(ctx, "u1", "24h")
	require.NoError(t, err)
	require.Len(t, day.Timestamps, 2)
	assert.True(t, day.Timestamps[0].Before(day.Timestamps[1]))
	assert.Equal(t, []float64{1, 2}, day.ResponseTimes)
	assert.Equal(t, []float64{-0.2, -0.2}, day.Sentiment)
}

func TestInspectAndRebuildAll(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{})
	ctx := context.Background()

	_, err := f.svc.Inspect(ctx, "u1")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	for _, u := range []string{"u1", "u2", "u1"} {
		_, err := f.svc.RecordInteraction(ctx, Exchange{UserID: u, UserMessage: "hi"})
		require.NoError(t, err)
	}
	upserts := f.repo.upserts

	n, err := f.svc.RebuildAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, upserts+2, f.repo.upserts)

	in, err := f.svc.Inspect(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, in.Profile)
	assert.Equal(t, 2, in.Profile.InteractionCount)
	assert.Len(t, in.RecentInteractions, 2)
}

// refreshingRepo records a second interaction the first time the summary
// profile is read, before the caller gets to fill the cache.
type refreshingRepo struct {
	*fakeHeatmapRepo
	svc  HeatmapService
	once sync.Once
	done chan error
}

func (r *refreshingRepo) GetProfile(ctx context.Context, userID string) (*models.UserHeatmapProfile, error) {
	p, err := r.fakeHeatmapRepo.GetProfile(ctx, userID)
	r.once.Do(func() {
		go func() {
			_, err := r.svc.RecordInteraction(context.Background(), Exchange{UserID: userID, UserMessage: "again"})
			r.done <- err
		}()
	})
	return p, err
}

func TestSummary_RefreshDuringFillIsNotOverwritten(t *testing.T) {
	f := newHeatmapFixture(t, fakeSentiment{score: 0.5})
	ctx := context.Background()

	_, err := f.svc.RecordInteraction(ctx, Exchange{UserID: "u1", UserMessage: "hi", ResponseTime: 2})
	require.NoError(t, err)

	scorer, err := heatmap.NewScorer(heatmap.DefaultConfig())
	require.NoError(t, err)
	repo := &refreshingRepo{fakeHeatmapRepo: f.repo, done: make(chan error, 1)}
	log, _ := logtest.NewNullLogger()
	svc := NewHeatmapService(repo, f.cache, cache.NewLocalLocker(), scorer,
		heatmap.NewAggregator(0), fakeSentiment{score: 0.5}, log,
		HeatmapOptions{Now: f.clock.Now})
	repo.svc = svc

	first, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.InteractionCount)

	select {
	case err := <-repo.done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent interaction did not finish")
	}

	stored, err := f.repo.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.InteractionCount)

	served, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, stored.InteractionCount, served.InteractionCount)
}
