package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"library-lending/internal/model"
)

type AuthService struct {
	tokens   *TokenService
	users    userByEmail
	resolver *PrincipalResolver
}

func NewAuthService(tokens *TokenService, users userByEmail, resolver *PrincipalResolver) *AuthService {
	return &AuthService{tokens: tokens, users: users, resolver: resolver}
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (model.TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	principal := PrincipalFromUser(user)
	access, err := s.tokens.IssueAccessFor(principal)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefresh(principal)
	if err != nil {
		return model.TokenPair{}, err
	}

	slog.Info("user logged in", "email", user.Email)
	return s.pair(access, refresh.Value), nil
}

// Refresh mints a new access token and hands the same refresh token back.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	token, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}
	if token.Kind != TokenRefresh {
		return model.TokenPair{}, model.ErrTokenWrongKind
	}

	principal, err := s.resolver.Resolve(ctx, token.Subject)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.ErrUnauthenticated
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	access, err := s.tokens.Rotate(refreshToken, principal)
	if err != nil {
		return model.TokenPair{}, err
	}

	slog.Info("access token refreshed", "email", principal.Identifier)
	return s.pair(access, refreshToken), nil
}

func (s *AuthService) pair(access Token, refresh string) model.TokenPair {
	return model.TokenPair{
		AccessToken:  access.Value,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(access.ExpiresAt.Sub(access.IssuedAt).Seconds()),
	}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash string, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
