package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/repository"
)

// groupRepository implements repository.GroupRepository for PostgreSQL.
type groupRepository struct {
	db *DB
}

// NewGroupRepository creates a new PostgreSQL group repository.
func NewGroupRepository(db *DB) repository.GroupRepository {
	return &groupRepository{db: db}
}

const groupColumns = `id, name, description, group_type, created_by, is_active,
	max_members, allow_member_invite, private_key, public_key,
	created_at, updated_at, last_activity`

// Create creates a new group along with its admin rows.
func (r *groupRepository) Create(ctx context.Context, group *domain.Group) error {
	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		query := `
			INSERT INTO groups (` + groupColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		_, err := tx.Exec(ctx, query,
			group.ID.String(),
			group.Name,
			group.Description,
			string(group.Type),
			group.CreatedBy.String(),
			group.IsActive,
			group.MaxMembers,
			group.AllowMemberInvite,
			group.PrivateKey,
			group.PublicKey,
			group.CreatedAt,
			group.UpdatedAt,
			group.LastActivity,
		)
		if err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}

		for _, adminID := range group.AdminIDs {
			_, err := tx.Exec(ctx,
				`INSERT INTO group_admins (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
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
	rows, err := r.db.Pool.Query(ctx,
		`SELECT user_id FROM group_admins WHERE group_id = $1 ORDER BY user_id`, groupID)
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

func scanGroup(scan func(dest ...any) error) (*domain.Group, error) {
	group := &domain.Group{}
	var id, groupType, createdBy string

	err := scan(
		&id,
		&group.Name,
		&group.Description,
		&groupType,
		&createdBy,
		&group.IsActive,
		&group.MaxMembers,
		&group.AllowMemberInvite,
		&group.PrivateKey,
		&group.PublicKey,
		&group.CreatedAt,
		&group.UpdatedAt,
		&group.LastActivity,
	)
	if err != nil {
		return nil, err
	}

	group.ID = parseUUID(id)
	group.Type = domain.GroupType(groupType)
	group.CreatedBy = parseUUID(createdBy)
	return group, nil
}

// GetByID retrieves a group by ID.
func (r *groupRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`

	row := r.db.Pool.QueryRow(ctx, query, id.String())
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

	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		query := `
			UPDATE groups
			SET name = $1, description = $2, group_type = $3, is_active = $4,
			    max_members = $5, allow_member_invite = $6,
			    private_key = $7, public_key = $8, updated_at = $9, last_activity = $10
			WHERE id = $11
		`
		tag, err := tx.Exec(ctx, query,
			group.Name,
			group.Description,
			string(group.Type),
			group.IsActive,
			group.MaxMembers,
			group.AllowMemberInvite,
			group.PrivateKey,
			group.PublicKey,
			group.UpdatedAt,
			group.LastActivity,
			group.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update group: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrGroupNotFound
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM group_admins WHERE group_id = $1`, group.ID.String()); err != nil {
			return fmt.Errorf("failed to clear group admins: %w", err)
		}
		for _, adminID := range group.AdminIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO group_admins (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				group.ID.String(), adminID.String()); err != nil {
				return fmt.Errorf("failed to insert group admin: %w", err)
			}
		}
		return nil
	})
}

// UpdateKeys stores the group's key pair.
func (r *groupRepository) UpdateKeys(ctx context.Context, id uuid.UUID, privatePEM, publicPEM string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE groups SET private_key = $1, public_key = $2, updated_at = $3 WHERE id = $4`,
		privatePEM, publicPEM, time.Now().UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update group keys: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

// Delete deletes a group by ID.
func (r *groupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

// List returns groups with pagination.
func (r *groupRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.Group], error) {
	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM groups`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count groups: %w", err)
	}

	query := `
		SELECT ` + groupColumns + `
		FROM groups
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, opts.Limit, opts.Offset)
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
		WHERE m.user_id = $1
		ORDER BY g.name
	`

	rows, err := r.db.Pool.Query(ctx, query, userID.String())
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

// membershipRepository implements repository.MembershipRepository for PostgreSQL.
type membershipRepository struct {
	db *DB
}

// NewMembershipRepository creates a new PostgreSQL membership repository.
func NewMembershipRepository(db *DB) repository.MembershipRepository {
	return &membershipRepository{db: db}
}

const membershipColumns = `id, group_id, user_id, role, added_by, joined_at, last_seen, is_muted`

// Create adds a member to a group.
func (r *membershipRepository) Create(ctx context.Context, m *domain.GroupMembership) error {
	query := `
		INSERT INTO group_memberships (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		m.ID.String(),
		m.GroupID.String(),
		m.UserID.String(),
		string(m.Role),
		formatUUIDPtr(m.AddedBy),
		m.JoinedAt,
		m.LastSeen,
		m.IsMuted,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyMember
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

func scanMembership(scan func(dest ...any) error) (*domain.GroupMembership, error) {
	m := &domain.GroupMembership{}
	var id, groupID, userID, role string
	var addedBy *string

	err := scan(&id, &groupID, &userID, &role, &addedBy, &m.JoinedAt, &m.LastSeen, &m.IsMuted)
	if err != nil {
		return nil, err
	}

	m.ID = parseUUID(id)
	m.GroupID = parseUUID(groupID)
	m.UserID = parseUUID(userID)
	m.Role = domain.MembershipRole(role)
	m.AddedBy = parseUUIDPtr(addedBy)
	return m, nil
}

// Get retrieves the membership for a (group, user) pair.
func (r *membershipRepository) Get(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM group_memberships WHERE group_id = $1 AND user_id = $2`

	row := r.db.Pool.QueryRow(ctx, query, groupID.String(), userID.String())
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
		WHERE group_id = $1
		ORDER BY joined_at
	`

	rows, err := r.db.Pool.Query(ctx, query, groupID.String())
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
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM group_memberships WHERE group_id = $1`, groupID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count memberships: %w", err)
	}
	return count, nil
}

// Update updates an existing membership.
func (r *membershipRepository) Update(ctx context.Context, m *domain.GroupMembership) error {
	query := `
		UPDATE group_memberships
		SET role = $1, last_seen = $2, is_muted = $3
		WHERE id = $4
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		string(m.Role),
		m.LastSeen,
		m.IsMuted,
		m.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}

// Delete removes a member from a group.
func (r *membershipRepository) Delete(ctx context.Context, groupID, userID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM group_memberships WHERE group_id = $1 AND user_id = $2`,
		groupID.String(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}

// Exists checks whether the user is a member of the group.
func (r *membershipRepository) Exists(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM group_memberships WHERE group_id = $1 AND user_id = $2`,
		groupID.String(), userID.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

var _ repository.MembershipRepository = (*membershipRepository)(nil)

// invitationRepository implements repository.InvitationRepository for PostgreSQL.
type invitationRepository struct {
	db *DB
}

// NewInvitationRepository creates a new PostgreSQL invitation repository.
func NewInvitationRepository(db *DB) repository.InvitationRepository {
	return &invitationRepository{db: db}
}

const invitationColumns = `id, group_id, invited_user_id, invited_by, status, message, created_at, expires_at, responded_at`

// Create creates a new invitation. The partial unique index on pending
// rows enforces one open invitation per (group, user).
func (r *invitationRepository) Create(ctx context.Context, inv *domain.GroupInvitation) error {
	query := `
		INSERT INTO group_invitations (` + invitationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		inv.ID.String(),
		inv.GroupID.String(),
		inv.InvitedUserID.String(),
		inv.InvitedBy.String(),
		string(inv.Status),
		inv.Message,
		inv.CreatedAt,
		inv.ExpiresAt,
		inv.RespondedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInvitationExists
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func scanInvitation(scan func(dest ...any) error) (*domain.GroupInvitation, error) {
	inv := &domain.GroupInvitation{}
	var id, groupID, invitedUser, invitedBy, status string

	err := scan(&id, &groupID, &invitedUser, &invitedBy, &status, &inv.Message, &inv.CreatedAt, &inv.ExpiresAt, &inv.RespondedAt)
	if err != nil {
		return nil, err
	}

	inv.ID = parseUUID(id)
	inv.GroupID = parseUUID(groupID)
	inv.InvitedUserID = parseUUID(invitedUser)
	inv.InvitedBy = parseUUID(invitedBy)
	inv.Status = domain.InvitationStatus(status)
	return inv, nil
}

// GetByID retrieves an invitation by ID.
func (r *invitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.GroupInvitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM group_invitations WHERE id = $1`

	row := r.db.Pool.QueryRow(ctx, query, id.String())
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
		WHERE group_id = $1 AND invited_user_id = $2 AND status = 'PENDING'
	`

	row := r.db.Pool.QueryRow(ctx, query, groupID.String(), userID.String())
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
		WHERE invited_user_id = $1 AND status = 'PENDING'
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID.String())
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
		SET status = $1, message = $2, expires_at = $3, responded_at = $4
		WHERE id = $5
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		string(inv.Status),
		inv.Message,
		inv.ExpiresAt,
		inv.RespondedAt,
		inv.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvitationNotFound
	}
	return nil
}

// ExpirePending marks pending invitations past their deadline EXPIRED.
func (r *invitationRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE group_invitations SET status = 'EXPIRED' WHERE status = 'PENDING' AND expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ repository.InvitationRepository = (*invitationRepository)(nil)
