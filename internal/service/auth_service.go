package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/drlab-io/drlab/internal/config"
	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/metrics"
	"github.com/drlab-io/drlab/internal/pkg/crypto"
	"github.com/drlab-io/drlab/internal/repository"
)

// tokenCacheTTL bounds how long a token lookup may be served from cache
// after revocation.
const tokenCacheTTL = 5 * time.Minute

// AuthService handles login, logout, token verification and sessions.
type AuthService struct {
	userRepo    repository.UserRepository
	tokenRepo   repository.TokenRepository
	sessionRepo repository.SessionRepository
	cache       repository.Cache
	cfg         config.AuthConfig
	logger      zerolog.Logger

	cacheKeys repository.CacheKey
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	sessionRepo repository.SessionRepository,
	cache repository.Cache,
	cfg config.AuthConfig,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		tokenRepo:   tokenRepo,
		sessionRepo: sessionRepo,
		cache:       cache,
		cfg:         cfg,
		logger:      logger.With().Str("service", "auth").Logger(),
	}
}

// LoginInput contains login credentials and client metadata.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginOutput contains the issued token and session.
type LoginOutput struct {
	User    *domain.User
	Token   string
	Session *domain.UserSession
}

// Login verifies credentials, issues (or reuses) the user's auth token and
// opens a session. One token per user: repeated logins return the same
// token until it is revoked by logout.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		// Don't expose whether the email exists.
		s.logger.Debug().Str("email", input.Email).Msg("login for unknown email")
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		s.logger.Debug().Str("email", input.Email).Msg("login for account that cannot authenticate")
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		if user.SetupRequired {
			return nil, domain.ErrSetupRequired
		}
		return nil, domain.ErrUserInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		s.logger.Debug().Str("email", input.Email).Msg("wrong password")
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now().UTC()

	token, err := s.getOrCreateToken(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}

	sessionKey, err := crypto.GenerateSessionKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	session := domain.NewUserSession(user.ID, sessionKey, input.IPAddress, input.UserAgent, now)
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to create session")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to stamp last login")
	}

	s.logger.Info().
		Str("user_id", user.ID.String()).
		Str("email", user.Email).
		Str("ip", input.IPAddress).
		Msg("user logged in")
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	return &LoginOutput{User: user, Token: token.Key, Session: session}, nil
}

// getOrCreateToken returns the user's existing token or issues a new one.
func (s *AuthService) getOrCreateToken(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.AuthToken, error) {
	token, err := s.tokenRepo.GetByUserID(ctx, userID)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, domain.ErrTokenNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	key, err := crypto.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	token = domain.NewAuthToken(key, userID, now)
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		// Lost a race against a concurrent login; reuse the winner's token.
		if errors.Is(err, repository.ErrDuplicate) {
			return s.tokenRepo.GetByUserID(ctx, userID)
		}
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return token, nil
}

// Logout deactivates the user's sessions and revokes the auth token.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	deactivated, err := s.sessionRepo.DeactivateByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	token, err := s.tokenRepo.GetByUserID(ctx, userID)
	if err == nil {
		if err := s.tokenRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		if err := s.cache.Delete(ctx, s.cacheKeys.Token(token.Key)); err != nil {
			s.logger.Warn().Err(err).Msg("failed to evict token from cache")
		}
	} else if !errors.Is(err, domain.ErrTokenNotFound) {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Int64("sessions_deactivated", deactivated).
		Msg("user logged out")

	return nil
}

// Authenticate resolves a token key to its user. Token lookups are cached;
// logout evicts the cache entry.
func (s *AuthService) Authenticate(ctx context.Context, tokenKey string) (*domain.User, error) {
	if len(tokenKey) != domain.TokenLength {
		return nil, domain.ErrTokenNotFound
	}

	userID, err := s.lookupToken(ctx, tokenKey)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrTokenNotFound
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}
	return user, nil
}

func (s *AuthService) lookupToken(ctx context.Context, tokenKey string) (uuid.UUID, error) {
	cacheKey := s.cacheKeys.Token(tokenKey)

	if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
		var userID uuid.UUID
		if err := json.Unmarshal(cached, &userID); err == nil {
			return userID, nil
		}
	}

	token, err := s.tokenRepo.GetByKey(ctx, tokenKey)
	if err != nil {
		return uuid.Nil, domain.ErrTokenNotFound
	}

	if encoded, err := json.Marshal(token.UserID); err == nil {
		if err := s.cache.Set(ctx, cacheKey, encoded, tokenCacheTTL); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache token lookup")
		}
	}
	return token.UserID, nil
}

// Sessions returns the user's active sessions.
func (s *AuthService) Sessions(ctx context.Context, userID uuid.UUID) ([]*domain.UserSession, error) {
	return s.sessionRepo.ListActiveByUserID(ctx, userID)
}

// TouchSession stamps activity on a session.
func (s *AuthService) TouchSession(ctx context.Context, sessionKey string) error {
	session, err := s.sessionRepo.GetByKey(ctx, sessionKey)
	if err != nil {
		return err
	}
	session.Touch(time.Now().UTC())
	return s.sessionRepo.Update(ctx, session)
}
