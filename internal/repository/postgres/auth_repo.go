package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/repository"
)

// tokenRepository implements repository.TokenRepository for PostgreSQL.
type tokenRepository struct {
	db *DB
}

// NewTokenRepository creates a new PostgreSQL token repository.
func NewTokenRepository(db *DB) repository.TokenRepository {
	return &tokenRepository{db: db}
}

// Create stores a new token.
func (r *tokenRepository) Create(ctx context.Context, token *domain.AuthToken) error {
	query := `INSERT INTO auth_tokens (key, user_id, created_at) VALUES ($1, $2, $3)`

	_, err := r.db.Pool.Exec(ctx, query,
		token.Key,
		token.UserID.String(),
		token.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user already holds a token", repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// GetByKey retrieves a token by its opaque key.
func (r *tokenRepository) GetByKey(ctx context.Context, key string) (*domain.AuthToken, error) {
	query := `SELECT key, user_id, created_at FROM auth_tokens WHERE key = $1`

	token := &domain.AuthToken{}
	var userID string
	err := r.db.Pool.QueryRow(ctx, query, key).Scan(&token.Key, &userID, &token.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	token.UserID = parseUUID(userID)
	return token, nil
}

// GetByUserID retrieves the user's token, if any.
func (r *tokenRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.AuthToken, error) {
	query := `SELECT key, user_id, created_at FROM auth_tokens WHERE user_id = $1`

	token := &domain.AuthToken{}
	var uid string
	err := r.db.Pool.QueryRow(ctx, query, userID.String()).Scan(&token.Key, &uid, &token.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token by user: %w", err)
	}

	token.UserID = parseUUID(uid)
	return token, nil
}

// DeleteByUserID revokes the user's token.
func (r *tokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM auth_tokens WHERE user_id = $1`, userID.String())
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

var _ repository.TokenRepository = (*tokenRepository)(nil)

// sessionRepository implements repository.SessionRepository for PostgreSQL.
type sessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(db *DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

const sessionColumns = `id, user_id, session_key, ip_address, user_agent, is_active, created_at, last_activity`

// Create creates a new session.
func (r *sessionRepository) Create(ctx context.Context, session *domain.UserSession) error {
	query := `
		INSERT INTO user_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		session.ID.String(),
		session.UserID.String(),
		session.SessionKey,
		session.IPAddress,
		session.UserAgent,
		session.IsActive,
		session.CreatedAt,
		session.LastActivity,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: session key already exists", repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func scanSession(scan func(dest ...any) error) (*domain.UserSession, error) {
	session := &domain.UserSession{}
	var id, userID string

	err := scan(
		&id,
		&userID,
		&session.SessionKey,
		&session.IPAddress,
		&session.UserAgent,
		&session.IsActive,
		&session.CreatedAt,
		&session.LastActivity,
	)
	if err != nil {
		return nil, err
	}

	session.ID = parseUUID(id)
	session.UserID = parseUUID(userID)
	return session, nil
}

// GetByKey retrieves a session by its session key.
func (r *sessionRepository) GetByKey(ctx context.Context, sessionKey string) (*domain.UserSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE session_key = $1`

	row := r.db.Pool.QueryRow(ctx, query, sessionKey)
	session, err := scanSession(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListActiveByUserID returns the user's active sessions.
func (r *sessionRepository) ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.UserSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM user_sessions
		WHERE user_id = $1 AND is_active
		ORDER BY last_activity DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.UserSession
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// Update updates an existing session.
func (r *sessionRepository) Update(ctx context.Context, session *domain.UserSession) error {
	query := `
		UPDATE user_sessions
		SET is_active = $1, last_activity = $2
		WHERE id = $3
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		session.IsActive,
		session.LastActivity,
		session.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// DeactivateByUserID deactivates all of the user's sessions.
func (r *sessionRepository) DeactivateByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE user_sessions SET is_active = FALSE, last_activity = $1 WHERE user_id = $2 AND is_active`,
		time.Now().UTC(), userID.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ repository.SessionRepository = (*sessionRepository)(nil)
