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

// groupRepository implements repository.GroupRepository for SQLite.
type groupRepository struct {
	db *DB
}

// NewGroupRepository creates a new SQLite group repository.
func NewGroupRepository(db *DB) repository.GroupRepository {
	return &groupRepository{db: db}
}

const groupColumns = `id, name, description, group_type, created_by, is_active,
	max_members, allow_member_invite, private_key, public_key,
	created_at, updated_at, last_activity`

// Create creates a new group along with its admin rows.
func (r *groupRepository) Create(ctx context.Context, group *domain.Group) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO groups (` + groupColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			group.ID.String(),
			group.Name,
			group.Description,
			string(group.Type),
			group.CreatedBy.String(),
			boolToInt(group.IsActive),
			group.MaxMembers,
			boolToInt(group.AllowMemberInvite),
			group.PrivateKey,
			group.PublicKey,
			formatTime(group.CreatedAt),
			formatTime(group.UpdatedAt),
			formatTimePtr(group.LastActivity),
		)
		if err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}

		for _, adminID := range group.AdminIDs {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO group_admins (group_id, user_id) VALUES (?, ?)`,
				group.ID.String(), adminID.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert group admin: %w", err)
			}
		}
		return nil
	})
}

func (r *groupRepository) loadAdmins(ctx context.Context, groupID string) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM group_admins WHERE group_id = ? ORDER BY user_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group admins: %w", err)
	}
	defer rows.Close()

	var admins []uuid.UUID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group admin: %w", err)
		}
		admins = append(admins, parseUUID(id))
	}
	return admins, rows.Err()
}

func scanGroup(scan func(dest ...interface{}) error) (*domain.Group, error) {
	group := &domain.Group{}
	var id, groupType, createdBy string
	var isActive, allowInvite int
	var createdAt, updatedAt string
	var lastActivity sql.NullString

	err := scan(
		&id,
		&group.Name,
		&group.Description,
		&groupType,
		&createdBy,
		&isActive,
		&group.MaxMembers,
		&allowInvite,
		&group.PrivateKey,
		&group.PublicKey,
		&createdAt,
		&updatedAt,
		&lastActivity,
	)
	if err != nil {
		return nil, err
	}

	group.ID = parseUUID(id)
	group.Type = domain.GroupType(groupType)
	group.CreatedBy = parseUUID(createdBy)
	group.IsActive = isActive != 0
	group.AllowMemberInvite = allowInvite != 0
	group.CreatedAt = parseTime(createdAt)
	group.UpdatedAt = parseTime(updatedAt)
	group.LastActivity = parseTimePtr(lastActivity)
	return group, nil
}

// GetByID retrieves a group by ID.
func (r *groupRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id.String())
	group, err := scanGroup(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	group.AdminIDs, err = r.loadAdmins(ctx, id.String())
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Update updates an existing group and replaces its admin rows.
func (r *groupRepository) Update(ctx context.Context, group *domain.Group) error {
	group.UpdatedAt = time.Now().UTC()

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE groups
			SET name = ?, description = ?, group_type = ?, is_active = ?,
			    max_members = ?, allow_member_invite = ?,
			    private_key = ?, public_key = ?, updated_at = ?, last_activity = ?
			WHERE id = ?
		`
		result, err := tx.ExecContext(ctx, query,
			group.Name,
			group.Description,
			string(group.Type),
			boolToInt(group.IsActive),
			group.MaxMembers,
			boolToInt(group.AllowMemberInvite),
			group.PrivateKey,
			group.PublicKey,
			formatTime(group.UpdatedAt),
			formatTimePtr(group.LastActivity),
			group.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update group: %w", err)
		}
		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return domain.ErrGroupNotFound
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM group_admins WHERE group_id = ?`, group.ID.String()); err != nil {
			return fmt.Errorf("failed to clear group admins: %w", err)
		}
		for _, adminID := range group.AdminIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO group_admins (group_id, user_id) VALUES (?, ?)`,
				group.ID.String(), adminID.String()); err != nil {
				return fmt.Errorf("failed to insert group admin: %w", err)
			}
		}
		return nil
	})
}

// UpdateKeys stores the group's key pair.
func (r *groupRepository) UpdateKeys(ctx context.Context, id uuid.UUID, privatePEM, publicPEM string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE groups SET private_key = ?, public_key = ?, updated_at = ? WHERE id = ?`,
		privatePEM, publicPEM, formatTime(time.Now().UTC()), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update group keys: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

// Delete deletes a group by ID.
func (r *groupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

// List returns groups with pagination.
func (r *groupRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.Group], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM groups`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count groups: %w", err)
	}

	query := `
		SELECT ` + groupColumns + `
		FROM groups
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*domain.Group
	for rows.Next() {
		group, err := scanGroup(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	for _, g := range groups {
		g.AdminIDs, err = r.loadAdmins(ctx, g.ID.String())
		if err != nil {
			return nil, err
		}
	}

	return &repository.ListResult[domain.Group]{
		Items:  groups,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// ListByMember returns the groups a user belongs to.
func (r *groupRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Group, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM groups g
		JOIN group_memberships m ON m.group_id = g.id
		WHERE m.user_id = ?
		ORDER BY g.name
	`

	rows, err := r.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list groups by member: %w", err)
	}
	defer rows.Close()

	var groups []*domain.Group
	for rows.Next() {
		group, err := scanGroup(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

var _ repository.GroupRepository = (*groupRepository)(nil)

// membershipRepository implements repository.MembershipRepository for SQLite.
type membershipRepository struct {
	db *DB
}

// NewMembershipRepository creates a new SQLite membership repository.
func NewMembershipRepository(db *DB) repository.MembershipRepository {
	return &membershipRepository{db: db}
}

const membershipColumns = `id, group_id, user_id, role, added_by, joined_at, last_seen, is_muted`

// Create adds a member to a group.
func (r *membershipRepository) Create(ctx context.Context, m *domain.GroupMembership) error {
	query := `
		INSERT INTO group_memberships (` + membershipColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		m.ID.String(),
		m.GroupID.String(),
		m.UserID.String(),
		string(m.Role),
		formatUUIDPtr(m.AddedBy),
		formatTime(m.JoinedAt),
		formatTimePtr(m.LastSeen),
		boolToInt(m.IsMuted),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyMember
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

func scanMembership(scan func(dest ...interface{}) error) (*domain.GroupMembership, error) {
	m := &domain.GroupMembership{}
	var id, groupID, userID, role string
	var addedBy, lastSeen sql.NullString
	var joinedAt string
	var isMuted int

	err := scan(&id, &groupID, &userID, &role, &addedBy, &joinedAt, &lastSeen, &isMuted)
	if err != nil {
		return nil, err
	}

	m.ID = parseUUID(id)
	m.GroupID = parseUUID(groupID)
	m.UserID = parseUUID(userID)
	m.Role = domain.MembershipRole(role)
	m.AddedBy = parseUUIDPtr(addedBy)
	m.JoinedAt = parseTime(joinedAt)
	m.LastSeen = parseTimePtr(lastSeen)
	m.IsMuted = isMuted != 0
	return m, nil
}

// Get retrieves the membership for a (group, user) pair.
func (r *membershipRepository) Get(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM group_memberships WHERE group_id = ? AND user_id = ?`

	row := r.db.QueryRowContext(ctx, query, groupID.String(), userID.String())
	m, err := scanMembership(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotMember
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListByGroup returns all memberships of a group.
func (r *membershipRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*domain.GroupMembership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM group_memberships
		WHERE group_id = ?
		ORDER BY joined_at
	`

	rows, err := r.db.QueryContext(ctx, query, groupID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var members []*domain.GroupMembership
	for rows.Next() {
		m, err := scanMembership(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CountByGroup returns the number of members in a group.
func (r *membershipRepository) CountByGroup(ctx context.Context, groupID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_memberships WHERE group_id = ?`, groupID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count memberships: %w", err)
	}
	return count, nil
}

// Update updates an existing membership.
func (r *membershipRepository) Update(ctx context.Context, m *domain.GroupMembership) error {
	query := `
		UPDATE group_memberships
		SET role = ?, last_seen = ?, is_muted = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(m.Role),
		formatTimePtr(m.LastSeen),
		boolToInt(m.IsMuted),
		m.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrNotMember
	}
	return nil
}

// Delete removes a member from a group.
func (r *membershipRepository) Delete(ctx context.Context, groupID, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM group_memberships WHERE group_id = ? AND user_id = ?`,
		groupID.String(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrNotMember
	}
	return nil
}

// Exists checks whether the user is a member of the group.
func (r *membershipRepository) Exists(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_memberships WHERE group_id = ? AND user_id = ?`,
		groupID.String(), userID.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

var _ repository.MembershipRepository = (*membershipRepository)(nil)

// invitationRepository implements repository.InvitationRepository for SQLite.
type invitationRepository struct {
	db *DB
}

// NewInvitationRepository creates a new SQLite invitation repository.
func NewInvitationRepository(db *DB) repository.InvitationRepository {
	return &invitationRepository{db: db}
}

const invitationColumns = `id, group_id, invited_user_id, invited_by, status, message, created_at, expires_at, responded_at`

// Create creates a new invitation. The partial unique index on pending
// rows enforces one open invitation per (group, user).
func (r *invitationRepository) Create(ctx context.Context, inv *domain.GroupInvitation) error {
	query := `
		INSERT INTO group_invitations (` + invitationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		inv.ID.String(),
		inv.GroupID.String(),
		inv.InvitedUserID.String(),
		inv.InvitedBy.String(),
		string(inv.Status),
		inv.Message,
		formatTime(inv.CreatedAt),
		formatTime(inv.ExpiresAt),
		formatTimePtr(inv.RespondedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInvitationExists
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func scanInvitation(scan func(dest ...interface{}) error) (*domain.GroupInvitation, error) {
	inv := &domain.GroupInvitation{}
	var id, groupID, invitedUser, invitedBy, status string
	var createdAt, expiresAt string
	var respondedAt sql.NullString

	err := scan(&id, &groupID, &invitedUser, &invitedBy, &status, &inv.Message, &createdAt, &expiresAt, &respondedAt)
	if err != nil {
		return nil, err
	}

	inv.ID = parseUUID(id)
	inv.GroupID = parseUUID(groupID)
	inv.InvitedUserID = parseUUID(invitedUser)
	inv.InvitedBy = parseUUID(invitedBy)
	inv.Status = domain.InvitationStatus(status)
	inv.CreatedAt = parseTime(createdAt)
	inv.ExpiresAt = parseTime(expiresAt)
	inv.RespondedAt = parseTimePtr(respondedAt)
	return inv, nil
}

// GetByID retrieves an invitation by ID.
func (r *invitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.GroupInvitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM group_invitations WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id.String())
	inv, err := scanInvitation(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// GetPending retrieves the pending invitation for a (group, user) pair.
func (r *invitationRepository) GetPending(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupInvitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM group_invitations
		WHERE group_id = ? AND invited_user_id = ? AND status = 'PENDING'
	`

	row := r.db.QueryRowContext(ctx, query, groupID.String(), userID.String())
	inv, err := scanInvitation(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to get pending invitation: %w", err)
	}
	return inv, nil
}

// ListPendingByUser returns a user's pending invitations.
func (r *invitationRepository) ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*domain.GroupInvitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM group_invitations
		WHERE invited_user_id = ? AND status = 'PENDING'
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitations: %w", err)
	}
	defer rows.Close()

	var invs []*domain.GroupInvitation
	for rows.Next() {
		inv, err := scanInvitation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

// Update updates an existing invitation.
func (r *invitationRepository) Update(ctx context.Context, inv *domain.GroupInvitation) error {
	query := `
		UPDATE group_invitations
		SET status = ?, message = ?, expires_at = ?, responded_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(inv.Status),
		inv.Message,
		formatTime(inv.ExpiresAt),
		formatTimePtr(inv.RespondedAt),
		inv.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrInvitationNotFound
	}
	return nil
}

// ExpirePending marks pending invitations past their deadline EXPIRED.
func (r *invitationRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE group_invitations SET status = 'EXPIRED' WHERE status = 'PENDING' AND expires_at < ?`,
		formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	return result.RowsAffected()
}

var _ repository.InvitationRepository = (*invitationRepository)(nil)
