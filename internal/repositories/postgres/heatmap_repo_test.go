package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yoockh/quantachat/config"
	"github.com/yoockh/quantachat/internal/models"
	pgrepo "github.com/yoockh/quantachat/internal/repositories/postgres"
	"github.com/yoockh/quantachat/internal/utils"
)

// openTestDB needs a postgres with the pgvector extension available.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	require.NoError(t, config.InitPostgres(&config.Config{PostgresURI: dsn}))
	db := config.PostgresDB
	require.NoError(t, config.Migrate(context.Background(), db))
	return db
}

func newUser(t *testing.T, users pgrepo.UserRepository) *models.User {
	t.Helper()
	id := uuid.NewString()
	u := &models.User{
		ID:                 id,
		Username:           "u" + id[:8],
		Email:              id[:8] + "@example.com",
		HashedPassword:     "x",
		IsActive:           true,
		Role:               models.RoleUser,
		SubscriptionTier:   models.TierFree,
		CreatedAt:          time.Now().UTC(),
		HeatmapPreferences: datatypes.NewJSONType(models.DefaultHeatmapPreferences()),
		PersonalityMatrix:  datatypes.NewJSONType(models.DefaultPersonalityMatrix()),
	}
	require.NoError(t, users.Create(context.Background(), u))
	t.Cleanup(func() { _ = users.Delete(context.Background(), id) })
	return u
}

func TestHeatmapRepo_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := pgrepo.NewUserRepo(db)
	repo := pgrepo.NewHeatmapRepo(db)

	u := newUser(t, users)
	base := time.Now().UTC().Truncate(time.Second).Add(-2 * time.Hour)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.InsertInteraction(ctx, &models.InteractionRecord{
			ID:              uuid.NewString(),
			UserID:          u.ID,
			Timestamp:       base.Add(time.Duration(2-i) * time.Minute),
			MessageLength:   10 * (i + 1),
			ResponseTime:    1,
			EngagementScore: 0.5,
		}))
	}

	rows, err := repo.ListInteractionsSince(ctx, u.ID, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Timestamp.Before(rows[1].Timestamp))

	ids, err := repo.ActiveUserIDs(ctx, base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Contains(t, ids, u.ID)

	_, err = repo.GetProfile(ctx, u.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	p := &models.UserHeatmapProfile{
		UserID:           u.ID,
		LastUpdated:      base,
		PeakHours:        datatypes.NewJSONType(models.PeakHours{Hour: 14, Score: 0.8}),
		WeeklyPattern:    datatypes.NewJSONType(models.WeeklyPattern{"monday": 1}),
		AvgSentiment:     0.4,
		InteractionCount: 3,
	}
	require.NoError(t, repo.UpsertProfile(ctx, p))

	p.AvgSentiment = -0.2
	p.InteractionCount = 4
	require.NoError(t, repo.UpsertProfile(ctx, p))

	got, err := repo.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, -0.2, got.AvgSentiment)
	assert.Equal(t, 4, got.InteractionCount)
	assert.Equal(t, 14, got.PeakHours.Data().Hour)
}

func TestUserRepo_DuplicateEmailConflicts(t *testing.T) {
	db := openTestDB(t)
	users := pgrepo.NewUserRepo(db)

	u := newUser(t, users)
	dup := *u
	dup.ID = uuid.NewString()
	dup.Username = "other" + dup.ID[:6]

	err := users.Create(context.Background(), &dup)
	assert.ErrorIs(t, err, utils.ErrConflict)
}
