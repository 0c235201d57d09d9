package services

import (
	"context"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/utils"
)

func TestUserService_UpdatePreferences(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	repo := newFakeUserRepo(testUser("u1", models.TierFree, false))
	svc := NewUserService(repo, nil, nil, nil, log)
	ctx := context.Background()

	on := true
	u, err := svc.UpdatePreferences(ctx, "u1", PreferencesInput{
		HeatmapPreferences: &models.HeatmapPreferences{Sensitivity: 0.2, Visible: false},
		VoiceEnabled:       &on,
	})
	require.NoError(t, err)
	assert.True(t, u.VoiceEnabled)

	stored, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.2, stored.HeatmapPreferences.Data().Sensitivity)
	assert.Equal(t, models.DefaultPersonalityMatrix(), stored.PersonalityMatrix.Data())

	_, err = svc.UpdatePreferences(ctx, "u1", PreferencesInput{
		PersonalityMatrix: &models.PersonalityMatrix{Empathy: 2},
	})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestUserService_Delete(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	c := newFakeCache()
	require.NoError(t, c.SetJSON(context.Background(), summaryKey("u1"), Summary{}, 0))

	svc := NewUserService(newFakeUserRepo(testUser("u1", models.TierFree, false)), nil, nil, c, log)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "u1"))
	_, err := svc.Get(ctx, "u1")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
	assert.Empty(t, c.data)

	err = svc.Delete(ctx, "u1")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}
