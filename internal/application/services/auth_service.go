package services

import (
	"errors"

	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/observability/logging"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/security"
	"github.com/hutchutchutch/fmath-sub002/pkg/config"
)

// ErrInvalidCredentials is returned when the presented API key does not
// match the configured hash.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService exchanges the service API key for beacon-client JWTs.
type AuthService struct {
	logger *logging.ChanneledLogger
}

// NewAuthService creates a new auth service.
func NewAuthService(logger *logging.ChanneledLogger) *AuthService {
	return &AuthService{logger: logger}
}

// TokenResult holds an issued bearer token.
type TokenResult struct {
	Token   string `json:"token"`
	Success bool   `json:"success"`
}

// IssueToken verifies the service API key and mints a JWT acting as the
// given user.
func (s *AuthService) IssueToken(apiKey, userID string) (*TokenResult, error) {
	if userID == "" {
		return nil, errors.New("missing user id")
	}

	if err := security.VerifyAPIKey(apiKey, config.APIKeyHash); err != nil {
		s.logger.LogAuthOperation("issue_token", userID, false)
		return nil, ErrInvalidCredentials
	}

	token, err := security.GenerateUserToken(userID, config.JWTSecret, config.TokenTTL)
	if err != nil {
		s.logger.Auth().Error("Failed to mint user token", "error", err.Error(), "userId", userID)
		return nil, err
	}

	s.logger.LogAuthOperation("issue_token", userID, true)
	return &TokenResult{Token: token, Success: true}, nil
}
