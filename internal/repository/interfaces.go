// Package repository defines data access interfaces for drlab.
// These interfaces abstract database operations, allowing for different
// implementations (SQLite, PostgreSQL, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/drlab-io/drlab/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// UpdateLastLogin updates the last_login timestamp.
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	// UpdateLastPing updates the last_ping heartbeat timestamp.
	UpdateLastPing(ctx context.Context, id uuid.UUID, at time.Time) error

	// Delete deletes a user by ID.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns users with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)

	// ListOnline returns users whose last ping falls after the cutoff.
	ListOnline(ctx context.Context, cutoff time.Time) ([]*domain.User, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// Auth Token and Session Repositories
// =============================================================================

// TokenRepository defines the interface for auth token data access.
// Each user holds at most one token.
type TokenRepository interface {
	// Create stores a new token.
	Create(ctx context.Context, token *domain.AuthToken) error

	// GetByKey retrieves a token by its opaque key.
	GetByKey(ctx context.Context, key string) (*domain.AuthToken, error)

	// GetByUserID retrieves the user's token, if any.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.AuthToken, error)

	// DeleteByUserID revokes the user's token.
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// SessionRepository defines the interface for session data access.
type SessionRepository interface {
	// Create creates a new session.
	Create(ctx context.Context, session *domain.UserSession) error

	// GetByKey retrieves a session by its session key.
	GetByKey(ctx context.Context, sessionKey string) (*domain.UserSession, error)

	// ListActiveByUserID returns the user's active sessions.
	ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.UserSession, error)

	// Update updates an existing session.
	Update(ctx context.Context, session *domain.UserSession) error

	// DeactivateByUserID deactivates all of the user's sessions.
	// Returns the number of sessions deactivated.
	DeactivateByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}

// =============================================================================
// Group, Membership and Invitation Repositories
// =============================================================================

// GroupRepository defines the interface for group data access.
type GroupRepository interface {
	// Create creates a new group.
	Create(ctx context.Context, group *domain.Group) error

	// GetByID retrieves a group by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error)

	// Update updates an existing group.
	Update(ctx context.Context, group *domain.Group) error

	// UpdateKeys stores the group's key pair.
	UpdateKeys(ctx context.Context, id uuid.UUID, privatePEM, publicPEM string) error

	// Delete deletes a group by ID.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns groups with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.Group], error)

	// ListByMember returns the groups a user belongs to.
	ListByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Group, error)
}

// MembershipRepository defines the interface for group membership access.
type MembershipRepository interface {
	// Create adds a member to a group. The (group, user) pair is unique.
	Create(ctx context.Context, m *domain.GroupMembership) error

	// Get retrieves the membership for a (group, user) pair.
	Get(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupMembership, error)

	// ListByGroup returns all memberships of a group.
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*domain.GroupMembership, error)

	// CountByGroup returns the number of members in a group.
	CountByGroup(ctx context.Context, groupID uuid.UUID) (int64, error)

	// Update updates an existing membership.
	Update(ctx context.Context, m *domain.GroupMembership) error

	// Delete removes a member from a group.
	Delete(ctx context.Context, groupID, userID uuid.UUID) error

	// Exists checks whether the user is a member of the group.
	Exists(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

// InvitationRepository defines the interface for group invitation access.
type InvitationRepository interface {
	// Create creates a new invitation.
	Create(ctx context.Context, inv *domain.GroupInvitation) error

	// GetByID retrieves an invitation by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GroupInvitation, error)

	// GetPending retrieves the pending invitation for a (group, user) pair.
	GetPending(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupInvitation, error)

	// ListPendingByUser returns a user's pending invitations.
	ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*domain.GroupInvitation, error)

	// Update updates an existing invitation.
	Update(ctx context.Context, inv *domain.GroupInvitation) error

	// ExpirePending marks pending invitations past their deadline EXPIRED.
	// Returns the number of invitations expired.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// =============================================================================
// Client and Project Repositories
// =============================================================================

// ClientRepository defines the interface for client data access.
type ClientRepository interface {
	// Create creates a new client.
	Create(ctx context.Context, client *domain.Client) error

	// GetByID retrieves a client by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error)

	// Update updates an existing client.
	Update(ctx context.Context, client *domain.Client) error

	// Delete deletes a client by ID. Callers must check dependencies first.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns clients with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.Client], error)

	// CountDependencies returns the number of projects, batches and samples
	// that reference the client. Used to block unsafe deletes.
	CountDependencies(ctx context.Context, id uuid.UUID) (map[string]int64, error)
}

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	// Create creates a new project.
	Create(ctx context.Context, project *domain.Project) error

	// GetByID retrieves a project by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)

	// Update updates an existing project.
	Update(ctx context.Context, project *domain.Project) error

	// Delete deletes a project by ID.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByClient returns a client's projects.
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domain.Project, error)
}

// =============================================================================
// Batch, Sample and Worksheet Repositories
// =============================================================================

// BatchRepository defines the interface for sample batch data access.
type BatchRepository interface {
	// Create creates a new batch.
	Create(ctx context.Context, batch *domain.SampleBatch) error

	// GetByID retrieves a batch by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SampleBatch, error)

	// GetByNumber retrieves a batch by its batch number.
	GetByNumber(ctx context.Context, batchNumber string) (*domain.SampleBatch, error)

	// Update updates an existing batch.
	Update(ctx context.Context, batch *domain.SampleBatch) error

	// List returns batches with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.SampleBatch], error)

	// ListOverdue returns undelivered batches past their due date.
	ListOverdue(ctx context.Context, now time.Time) ([]*domain.SampleBatch, error)

	// CountByClient returns the number of batches for a client.
	CountByClient(ctx context.Context, clientID uuid.UUID) (int64, error)

	// CountByProject returns the number of batches for a project.
	CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
}

// SampleRepository defines the interface for sample data access.
type SampleRepository interface {
	// Create creates a new sample.
	Create(ctx context.Context, sample *domain.Sample) error

	// GetByID retrieves a sample by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Sample, error)

	// GetBySampleID retrieves a sample by its human-readable identifier.
	GetBySampleID(ctx context.Context, sampleID string) (*domain.Sample, error)

	// GetByBarcode retrieves a sample by barcode.
	GetByBarcode(ctx context.Context, barcode string) (*domain.Sample, error)

	// Update updates an existing sample.
	Update(ctx context.Context, sample *domain.Sample) error

	// List returns samples with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.Sample], error)

	// ListByBatch returns all samples in a batch.
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*domain.Sample, error)

	// ListDiscardable returns undiscarded samples past their discard date.
	ListDiscardable(ctx context.Context, now time.Time) ([]*domain.Sample, error)

	// CountByClient returns the number of samples for a client.
	CountByClient(ctx context.Context, clientID uuid.UUID) (int64, error)

	// CountByProject returns the number of samples for a project.
	CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error)

	// CountByBatchAndStatus returns per-status counts for a batch.
	CountByBatchAndStatus(ctx context.Context, batchID uuid.UUID) (map[domain.SampleStatus]int64, error)
}

// WorksheetRepository defines the interface for worksheet data access.
type WorksheetRepository interface {
	// Create creates a new worksheet.
	Create(ctx context.Context, ws *domain.SampleWorksheet) error

	// GetByID retrieves a worksheet by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SampleWorksheet, error)

	// GetByNumber retrieves a worksheet by its worksheet number.
	GetByNumber(ctx context.Context, worksheetNumber string) (*domain.SampleWorksheet, error)

	// Update updates an existing worksheet, including its sample and
	// technician assignments.
	Update(ctx context.Context, ws *domain.SampleWorksheet) error

	// List returns worksheets with pagination.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.SampleWorksheet], error)

	// ListByDepartment returns a department's worksheets.
	ListByDepartment(ctx context.Context, dept domain.Department) ([]*domain.SampleWorksheet, error)
}

// =============================================================================
// Sequence Repository (Identifier Generation)
// =============================================================================

// SequenceRepository issues monotonically increasing sequence values for
// human-readable identifiers. Next must be atomic: two concurrent calls for
// the same (kind, year, scope) never return the same value.
type SequenceRepository interface {
	// Next returns the next value for the sequence, starting at 1.
	// Scope is empty for batch and sample sequences and the department
	// prefix for worksheet sequences.
	Next(ctx context.Context, kind string, year int, scope string) (int64, error)
}

// Sequence kinds.
const (
	SequenceBatch     = "batch"
	SequenceSample    = "sample"
	SequenceWorksheet = "worksheet"
)

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains common pagination options.
type ListOptions struct {
	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return.
	Limit int

	// OrderBy specifies the sort order.
	OrderBy string

	// Descending specifies descending order if true.
	Descending bool
}

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the list of items.
	Items []*T

	// Total is the total number of items (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}

// =============================================================================
// Transaction Support
// =============================================================================

// TxManager defines the interface for transaction management.
type TxManager interface {
	// WithTx executes the given function within a transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
