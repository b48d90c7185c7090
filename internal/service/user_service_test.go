package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/drlab-io/drlab/internal/config"
	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/lock"
)

// testAuthConfig uses cheap cost parameters so tests stay fast.
func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		BcryptCost:       bcrypt.MinCost,
		PBKDF2Iterations: 1000,
	}
}

func newTestUserService() (*UserService, *mockUserRepo) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, lock.NewNoOpLocker(), testAuthConfig(), zerolog.Nop())
	return svc, repo
}

func TestUserServiceCreate(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateUserInput
		wantErr error
	}{
		{
			name:  "with password",
			input: CreateUserInput{Email: "tech@drlab.io", Role: domain.RoleTechnician, Password: "password123"},
		},
		{
			name:  "without password requires setup",
			input: CreateUserInput{Email: "new@drlab.io", Role: domain.RoleViewer},
		},
		{
			name:    "invalid email",
			input:   CreateUserInput{Email: "not-an-email", Password: "password123"},
			wantErr: ErrInvalidEmail,
		},
		{
			name:    "short password",
			input:   CreateUserInput{Email: "short@drlab.io", Password: "short"},
			wantErr: ErrInvalidPassword,
		},
		{
			name:    "invalid role",
			input:   CreateUserInput{Email: "role@drlab.io", Role: "SUPERUSER", Password: "password123"},
			wantErr: ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestUserService()
			out, err := svc.Create(context.Background(), tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			wantSetup := tt.input.Password == ""
			if out.User.SetupRequired != wantSetup {
				t.Errorf("expected setup_required=%v, got %v", wantSetup, out.User.SetupRequired)
			}
		})
	}
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateUserInput{Email: "dup@drlab.io", Password: "password123"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Create(ctx, CreateUserInput{Email: "dup@drlab.io", Password: "password123"})
	if !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestUserServiceCompleteSetup(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateUserInput{Email: "setup@drlab.io", Role: domain.RoleTechnician})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userID := out.User.ID

	setup, err := svc.CompleteSetup(ctx, CompleteSetupInput{
		UserID:          userID,
		Password:        "correct horse",
		PasswordConfirm: "correct horse",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u := setup.User
	if u.SetupRequired {
		t.Error("expected setup_required to be cleared")
	}
	if u.SetupCompletedAt == nil {
		t.Error("expected setup_completed_at to be stamped")
	}
	if u.PasswordHash == "" || u.PublicKey == "" || u.EncryptedPrivateKey == "" || u.KeySalt == "" {
		t.Error("expected password hash and key material to be set together")
	}

	// Setup succeeds at most once.
	_, err = svc.CompleteSetup(ctx, CompleteSetupInput{
		UserID:          userID,
		Password:        "another pass",
		PasswordConfirm: "another pass",
	})
	if !errors.Is(err, domain.ErrSetupNotRequired) {
		t.Fatalf("expected ErrSetupNotRequired, got %v", err)
	}
}

func TestUserServiceCompleteSetupValidation(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateUserInput{Email: "val@drlab.io"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.CompleteSetup(ctx, CompleteSetupInput{UserID: out.User.ID, Password: "short", PasswordConfirm: "short"})
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	_, err = svc.CompleteSetup(ctx, CompleteSetupInput{UserID: out.User.ID, Password: "password123", PasswordConfirm: "password124"})
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestUserServiceGetPrivateKey(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateUserInput{Email: "keys@drlab.io"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userID := out.User.ID

	// No key material yet.
	_, err = svc.GetPrivateKey(ctx, userID, "whatever")
	if !errors.Is(err, domain.ErrNoKeyMaterial) {
		t.Fatalf("expected ErrNoKeyMaterial, got %v", err)
	}

	if _, err := svc.CompleteSetup(ctx, CompleteSetupInput{
		UserID: userID, Password: "correct horse", PasswordConfirm: "correct horse",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pem, err := svc.GetPrivateKey(ctx, userID, "correct horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pem == "" {
		t.Error("expected decrypted private key PEM")
	}

	_, err = svc.GetPrivateKey(ctx, userID, "wrong password")
	if !errors.Is(err, domain.ErrKeyDecryptionFailed) {
		t.Fatalf("expected ErrKeyDecryptionFailed, got %v", err)
	}
}

func TestUserServiceRotateKeys(t *testing.T) {
	svc, _ := newTestUserService()
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateUserInput{Email: "rotate@drlab.io"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userID := out.User.ID

	// Rotation before setup is rejected.
	_, err = svc.RotateKeys(ctx, userID, "correct horse")
	if !errors.Is(err, domain.ErrSetupRequired) {
		t.Fatalf("expected ErrSetupRequired, got %v", err)
	}

	setup, err := svc.CompleteSetup(ctx, CompleteSetupInput{
		UserID: userID, Password: "correct horse", PasswordConfirm: "correct horse",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oldPublic := setup.User.PublicKey

	_, err = svc.RotateKeys(ctx, userID, "wrong password")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	rotated, err := svc.RotateKeys(ctx, userID, "correct horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rotated.PublicKey == oldPublic {
		t.Error("expected a fresh key pair after rotation")
	}

	// The old password still unwraps the new key.
	if _, err := svc.GetPrivateKey(ctx, userID, "correct horse"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserServicePresence(t *testing.T) {
	repo := newMockUserRepo()
	cfg := testAuthConfig()
	cfg.PresenceWindow = 5 * time.Minute
	svc := NewUserService(repo, lock.NewNoOpLocker(), cfg, zerolog.Nop())
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateUserInput{Email: "ping@drlab.io", Password: "password123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	online, err := svc.IsOnline(ctx, out.User.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if online {
		t.Error("expected user offline before first ping")
	}

	if err := svc.Ping(ctx, out.User.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	online, err = svc.IsOnline(ctx, out.User.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !online {
		t.Error("expected user online after ping")
	}
}
