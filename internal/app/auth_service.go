package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"scholarai/internal/model"
	"scholarai/internal/pkg/jwtutil"
	"scholarai/internal/repository"
)

// TokenDenylist tracks revoked refresh tokens by jti. Revoke reports false
// when the token was already revoked, so only one caller can spend it.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type AuthService struct {
	userRepo   *repository.UserRepository
	denylist   TokenDenylist
	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	User         *model.User `json:"user"`
}

func NewAuthService(
	userRepo *repository.UserRepository,
	denylist TokenDenylist,
	jwtSecret string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		denylist:   denylist,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (s *AuthService) Register(input RegisterInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := input.Password
	fullName := strings.TrimSpace(input.FullName)

	if _, err := mail.ParseAddress(email); err != nil || len(password) < 8 {
		return nil, ErrInvalidInput
	}

	existing, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredential
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return s.issue(user)
}

// Refresh exchanges a refresh token for a new pair and revokes the old one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.parseRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.GetUserByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.revoke(ctx, claims); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.parseRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	return s.revoke(ctx, claims)
}

// GetUserByID returns ErrInvalidToken for unknown users and ErrInactiveUser for disabled ones.
func (s *AuthService) GetUserByID(id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

func (s *AuthService) parseRefresh(ctx context.Context, token string) (*jwtutil.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidInput
	}
	claims, err := jwtutil.ParseToken(s.jwtSecret, token, jwtutil.TokenTypeRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

func (s *AuthService) revoke(ctx context.Context, claims *jwtutil.Claims) error {
	if s.denylist == nil {
		return nil
	}
	first, err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return err
	}
	if !first {
		return ErrInvalidToken
	}
	return nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	access, _, err := jwtutil.GenerateToken(s.jwtSecret, s.accessTTL, user.ID, jwtutil.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, _, err := jwtutil.GenerateToken(s.jwtSecret, s.refreshTTL, user.ID, jwtutil.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.accessTTL.Seconds()),
		User:         user,
	}, nil
}
