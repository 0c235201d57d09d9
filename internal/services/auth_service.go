package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/quantachat/internal/auth"
	"github.com/yoockh/quantachat/internal/models"
	pgrepo "github.com/yoockh/quantachat/internal/repositories/postgres"
	"github.com/yoockh/quantachat/internal/utils"
	"gorm.io/datatypes"
)

type RegisterInput struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*Token, error)
}

type authService struct {
	users  pgrepo.UserRepository
	issuer *auth.Issuer
}

func NewAuthService(users pgrepo.UserRepository, issuer *auth.Issuer) AuthService {
	return &authService{users: users, issuer: issuer}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "AuthService.Register"

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if username == "" || utils.RuneLen(username) > 50 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "username is required (max 50 characters)", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil || utils.RuneLen(email) > 100 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "a valid email is required", nil)
	}
	if err := utils.ValidatePassword(in.Password); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), err)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, utils.E(utils.CodeConflict, op, "email already registered", nil)
	} else if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to check email", err)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}

	u := &models.User{
		ID:                 uuid.NewString(),
		Username:           username,
		Email:              email,
		HashedPassword:     hash,
		IsActive:           true,
		Role:               models.RoleUser,
		CreatedAt:          time.Now().UTC(),
		SubscriptionTier:   models.TierFree,
		HeatmapPreferences: datatypes.NewJSONType(models.DefaultHeatmapPreferences()),
		PersonalityMatrix:  datatypes.NewJSONType(models.DefaultPersonalityMatrix()),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, utils.E(utils.CodeConflict, op, "username or email already registered", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create user", err)
	}
	return u, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*Token, error) {
	const op = "AuthService.Login"

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email and password are required", nil)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeUnauthorized, op, "incorrect email or password", nil)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if err := utils.CheckPassword(u.HashedPassword, password); err != nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "incorrect email or password", nil)
	}
	if !u.IsActive {
		return nil, utils.E(utils.CodeForbidden, op, "inactive user", nil)
	}

	tok, exp, err := s.issuer.Issue(u.ID, u.Email, string(u.Role), u.SubscriptionTier)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to issue token", err)
	}
	return &Token{AccessToken: tok, TokenType: "bearer", ExpiresAt: exp}, nil
}
