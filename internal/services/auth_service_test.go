package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yoockh/quantachat/internal/auth"
	"github.com/yoockh/quantachat/internal/models"
	"github.com/yoockh/quantachat/internal/utils"
)

func newAuthFixture(t *testing.T) (AuthService, *auth.Issuer) {
	t.Helper()
	prev := utils.PasswordCost
	utils.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { utils.PasswordCost = prev })

	iss := auth.NewIssuer("test-secret", "quantachat", "", time.Hour)
	return NewAuthService(newFakeUserRepo(), iss), iss
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	svc, iss := newAuthFixture(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: " Ada@Example.com ", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, models.TierFree, u.SubscriptionTier)
	assert.Equal(t, models.DefaultPersonalityMatrix(), u.PersonalityMatrix.Data())
	assert.NotEqual(t, "correct horse", u.HashedPassword)

	tok, err := svc.Login(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)

	claims, err := iss.Parse(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
	assert.Equal(t, "user", claims.Role)
}

func TestAuth_RegisterRejects(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "not-an-email", Password: "correct horse"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: "short"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Username: "ada2", Email: "ada@example.com", Password: "correct horse"})
	assert.True(t, utils.IsCode(err, utils.CodeConflict))
}

func TestAuth_LoginRejects(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada@example.com", "wrong horse")
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))

	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))

	_, err = svc.Login(ctx, "", "")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
