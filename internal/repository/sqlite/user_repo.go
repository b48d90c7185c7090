package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/repository"
)

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, first_name, last_name, tel, password_hash, role,
	is_active, setup_required, setup_completed_at,
	encrypted_private_key, key_salt, public_key,
	last_login, last_ping, created_at, updated_at`

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID.String(),
		user.Email,
		user.FirstName,
		user.LastName,
		user.Tel,
		user.PasswordHash,
		string(user.Role),
		boolToInt(user.IsActive),
		boolToInt(user.SetupRequired),
		formatTimePtr(user.SetupCompletedAt),
		user.EncryptedPrivateKey,
		user.KeySalt,
		user.PublicKey,
		formatTimePtr(user.LastLogin),
		formatTimePtr(user.LastPing),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func scanUser(scan func(dest ...interface{}) error) (*domain.User, error) {
	user := &domain.User{}
	var id, role string
	var isActive, setupRequired int
	var setupCompletedAt, lastLogin, lastPing sql.NullString
	var createdAt, updatedAt string

	err := scan(
		&id,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Tel,
		&user.PasswordHash,
		&role,
		&isActive,
		&setupRequired,
		&setupCompletedAt,
		&user.EncryptedPrivateKey,
		&user.KeySalt,
		&user.PublicKey,
		&lastLogin,
		&lastPing,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.ID = parseUUID(id)
	user.Role = domain.Role(role)
	user.IsActive = isActive != 0
	user.SetupRequired = setupRequired != 0
	user.SetupCompletedAt = parseTimePtr(setupCompletedAt)
	user.LastLogin = parseTimePtr(lastLogin)
	user.LastPing = parseTimePtr(lastPing)
	user.CreatedAt = parseTime(createdAt)
	user.UpdatedAt = parseTime(updatedAt)

	return user, nil
}

// GetByID retrieves a user by ID.
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id.String())
	user, err := scanUser(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	row := r.db.QueryRowContext(ctx, query, email)
	user, err := scanUser(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// Update updates an existing user.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = ?, first_name = ?, last_name = ?, tel = ?, password_hash = ?,
		    role = ?, is_active = ?, setup_required = ?, setup_completed_at = ?,
		    encrypted_private_key = ?, key_salt = ?, public_key = ?,
		    last_login = ?, last_ping = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Tel,
		user.PasswordHash,
		string(user.Role),
		boolToInt(user.IsActive),
		boolToInt(user.SetupRequired),
		formatTimePtr(user.SetupCompletedAt),
		user.EncryptedPrivateKey,
		user.KeySalt,
		user.PublicKey,
		formatTimePtr(user.LastLogin),
		formatTimePtr(user.LastPing),
		formatTime(user.UpdatedAt),
		user.ID.String(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// UpdateLastLogin updates the last_login timestamp.
func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`,
		formatTime(at), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdateLastPing updates the last_ping heartbeat timestamp.
func (r *userRepository) UpdateLastPing(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_ping = ? WHERE id = ?`,
		formatTime(at), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update last ping: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Delete deletes a user by ID.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// List returns users with pagination.
func (r *userRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return &repository.ListResult[domain.User]{
		Items:  users,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// ListOnline returns users whose last ping falls after the cutoff.
func (r *userRepository) ListOnline(ctx context.Context, cutoff time.Time) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE last_ping IS NOT NULL AND last_ping > ?
		ORDER BY last_ping DESC
	`

	rows, err := r.db.QueryContext(ctx, query, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// ExistsByEmail checks if a user with the given email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return count > 0, nil
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
