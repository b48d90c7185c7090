package service

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/drlab-io/drlab/internal/config"
	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/lock"
	"github.com/drlab-io/drlab/internal/pkg/crypto"
	"github.com/drlab-io/drlab/internal/repository"
)

// UserService handles account management, the one-time setup flow and
// per-user key material.
type UserService struct {
	userRepo repository.UserRepository
	locker   lock.Locker
	cfg      config.AuthConfig
	logger   zerolog.Logger

	lockKeys repository.LockKey
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, locker lock.Locker, cfg config.AuthConfig, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		locker:   locker,
		cfg:      cfg,
		logger:   logger.With().Str("service", "user").Logger(),
	}
}

// keyLockTTL bounds how long a setup or rotation may hold the per-user
// key lock.
const keyLockTTL = 30 * time.Second

// CreateUserInput contains the data needed to create a new user.
// An empty Password creates an unauthenticated account that must complete
// the setup flow before logging in.
type CreateUserInput struct {
	Email     string
	FirstName string
	LastName  string
	Tel       string
	Role      domain.Role
	Password  string
}

// CreateUserOutput contains the result of creating a user.
type CreateUserOutput struct {
	User *domain.User
}

// Create creates a new user account.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*CreateUserOutput, error) {
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return nil, ErrInvalidEmail
	}
	if input.Role != "" && !input.Role.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, input.Role)
	}
	if input.Password != "" && len(input.Password) < 8 {
		return nil, ErrInvalidPassword
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to check email existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: email '%s'", domain.ErrUserAlreadyExists, input.Email)
	}

	var passwordHash string
	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to hash password")
			return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
		}
		passwordHash = string(hash)
	}

	user := domain.NewUser(input.Email, input.Role, passwordHash)
	user.FirstName = input.FirstName
	user.LastName = input.LastName
	user.Tel = input.Tel

	if err := s.userRepo.Create(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to create user")
		return nil, err
	}

	s.logger.Info().
		Str("user_id", user.ID.String()).
		Str("email", user.Email).
		Str("role", string(user.Role)).
		Bool("setup_required", user.SetupRequired).
		Msg("user created")

	return &CreateUserOutput{User: user}, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetByEmail retrieves a user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.userRepo.GetByEmail(ctx, email)
}

// UpdateProfileInput contains updatable profile fields.
type UpdateProfileInput struct {
	UserID    uuid.UUID
	FirstName string
	LastName  string
	Tel       string
}

// UpdateProfile updates a user's display fields.
func (s *UserService) UpdateProfile(ctx context.Context, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	user.FirstName = input.FirstName
	user.LastName = input.LastName
	user.Tel = input.Tel
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// CompleteSetupInput contains the data for the one-time setup flow.
type CompleteSetupInput struct {
	UserID          uuid.UUID
	Password        string
	PasswordConfirm string
}

// CompleteSetupOutput contains the result of completing setup.
type CompleteSetupOutput struct {
	User *domain.User
}

// CompleteSetup performs the one-time onboarding transaction: validates
// the password, sets it, generates the user's RSA key pair, wraps the
// private key under the password and marks setup complete. It runs under
// the per-user key lock so a concurrent call cannot observe a half-written
// key/salt pair, and it succeeds at most once per user.
func (s *UserService) CompleteSetup(ctx context.Context, input CompleteSetupInput) (*CompleteSetupOutput, error) {
	if len(input.Password) < 8 {
		return nil, ErrInvalidPassword
	}
	if input.Password != input.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}

	lockKey := s.lockKeys.UserKeys(input.UserID)
	acquired, err := s.locker.Acquire(ctx, lockKey, keyLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return nil, ErrOperationInProgress
	}
	defer func() {
		if _, err := s.locker.Release(ctx, lockKey); err != nil {
			s.logger.Warn().Err(err).Str("key", lockKey).Msg("failed to release key lock")
		}
	}()

	user, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !user.SetupRequired {
		return nil, domain.ErrSetupNotRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	privatePEM, publicPEM, err := crypto.GenerateKeyPair()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to generate key pair")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	encrypted, salt, err := crypto.WrapKey(privatePEM, input.Password, s.cfg.PBKDF2Iterations)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to wrap private key")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	now := time.Now().UTC()
	user.PasswordHash = string(hash)
	user.EncryptedPrivateKey = encrypted
	user.KeySalt = salt
	user.PublicKey = publicPEM
	user.SetupRequired = false
	user.SetupCompletedAt = &now
	user.UpdatedAt = now

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("user_id", user.ID.String()).
		Str("email", user.Email).
		Msg("user setup completed")

	return &CompleteSetupOutput{User: user}, nil
}

// GetPrivateKey decrypts and returns the user's private key PEM using the
// supplied password. A wrong password or corrupt blob surfaces as
// domain.ErrKeyDecryptionFailed, distinct from domain.ErrNoKeyMaterial
// when no key has been provisioned yet.
func (s *UserService) GetPrivateKey(ctx context.Context, userID uuid.UUID, password string) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.HasKeys() {
		return "", domain.ErrNoKeyMaterial
	}

	privatePEM, err := crypto.UnwrapKey(user.EncryptedPrivateKey, password, user.KeySalt, s.cfg.PBKDF2Iterations)
	if err != nil {
		return "", domain.NewDomainError(domain.ErrKeyDecryptionFailed, "wrong password or corrupt key material", user.Email)
	}
	return privatePEM, nil
}

// RotateKeys replaces the user's key pair. The password is verified first;
// rotation is deliberate and not idempotent, and data encrypted to the old
// public key becomes unreadable.
func (s *UserService) RotateKeys(ctx context.Context, userID uuid.UUID, password string) (*domain.User, error) {
	lockKey := s.lockKeys.UserKeys(userID)
	acquired, err := s.locker.Acquire(ctx, lockKey, keyLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return nil, ErrOperationInProgress
	}
	defer func() {
		if _, err := s.locker.Release(ctx, lockKey); err != nil {
			s.logger.Warn().Err(err).Str("key", lockKey).Msg("failed to release key lock")
		}
	}()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.SetupRequired {
		return nil, domain.ErrSetupRequired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	privatePEM, publicPEM, err := crypto.GenerateKeyPair()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to generate key pair")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	encrypted, salt, err := crypto.WrapKey(privatePEM, password, s.cfg.PBKDF2Iterations)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to wrap private key")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	user.EncryptedPrivateKey = encrypted
	user.KeySalt = salt
	user.PublicKey = publicPEM
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Warn().
		Str("user_id", user.ID.String()).
		Str("email", user.Email).
		Msg("user keys rotated, data encrypted to the old key is unreadable")

	return user, nil
}

// Ping records a presence heartbeat for the user.
func (s *UserService) Ping(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.UpdateLastPing(ctx, userID, time.Now().UTC()); err != nil {
		return err
	}
	return nil
}

// IsOnline reports whether the user's last heartbeat falls within the
// configured presence window.
func (s *UserService) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsOnline(time.Now().UTC(), s.cfg.PresenceWindow), nil
}

// ListOnline returns the users currently online.
func (s *UserService) ListOnline(ctx context.Context) ([]*domain.User, error) {
	window := s.cfg.PresenceWindow
	if window <= 0 {
		window = domain.DefaultPresenceWindow
	}
	return s.userRepo.ListOnline(ctx, time.Now().UTC().Add(-window))
}

// SetActive sets the active status of a user.
func (s *UserService) SetActive(ctx context.Context, userID uuid.UUID, isActive bool) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	user.IsActive = isActive
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("user_id", user.ID.String()).
		Bool("is_active", isActive).
		Msg("user active status updated")

	return nil
}

// SetRole changes a user's system role.
func (s *UserService) SetRole(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	user.Role = role
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("user_id", user.ID.String()).
		Str("role", string(role)).
		Msg("user role updated")

	return nil
}

// Delete deletes a user account.
func (s *UserService) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID.String()).Msg("user deleted")
	return nil
}

// ListUsersInput contains pagination options for listing users.
type ListUsersInput struct {
	Limit  int
	Offset int
}

// ListUsersOutput contains the result of listing users.
type ListUsersOutput struct {
	Users      []*domain.User
	TotalCount int64
}

// List returns all users with pagination.
func (s *UserService) List(ctx context.Context, input ListUsersInput) (*ListUsersOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}

	result, err := s.userRepo.List(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ListUsersOutput{
		Users:      result.Items,
		TotalCount: result.Total,
	}, nil
}
