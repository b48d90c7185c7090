package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/lock"
	"github.com/drlab-io/drlab/internal/pkg/crypto"
	"github.com/drlab-io/drlab/internal/repository"
)

// membershipLockTTL bounds how long a membership change may hold the
// per-group lock.
const membershipLockTTL = 10 * time.Second

// membershipLockRetries controls the acquisition retry policy for
// membership changes; joins are short so contention clears quickly.
const (
	membershipLockRetries    = 5
	membershipLockRetryDelay = 100 * time.Millisecond
)

// GroupService handles groups, their key pairs and membership.
type GroupService struct {
	groupRepo      repository.GroupRepository
	membershipRepo repository.MembershipRepository
	userRepo       repository.UserRepository
	locker         lock.Locker
	logger         zerolog.Logger

	lockKeys repository.LockKey
}

// NewGroupService creates a new GroupService.
func NewGroupService(
	groupRepo repository.GroupRepository,
	membershipRepo repository.MembershipRepository,
	userRepo repository.UserRepository,
	locker lock.Locker,
	logger zerolog.Logger,
) *GroupService {
	return &GroupService{
		groupRepo:      groupRepo,
		membershipRepo: membershipRepo,
		userRepo:       userRepo,
		locker:         locker,
		logger:         logger.With().Str("service", "group").Logger(),
	}
}

// CreateGroupInput contains the data needed to create a group.
type CreateGroupInput struct {
	Name              string
	Description       string
	Type              domain.GroupType
	CreatedBy         uuid.UUID
	MaxMembers        int
	AllowMemberInvite bool
}

// CreateGroupOutput contains the result of creating a group.
type CreateGroupOutput struct {
	Group *domain.Group
}

// Create creates a group and provisions its key pair. Group private keys
// are stored in clear PEM: there is no group password to derive a wrapping
// key from.
func (s *GroupService) Create(ctx context.Context, input CreateGroupInput) (*CreateGroupOutput, error) {
	if input.Name == "" || len(input.Name) > 255 {
		return nil, ErrInvalidGroupName
	}
	if input.Type != "" && !input.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGroupType, input.Type)
	}

	group := domain.NewGroup(input.Name, input.Type, input.CreatedBy)
	group.Description = input.Description
	group.AllowMemberInvite = input.AllowMemberInvite
	if input.MaxMembers > 0 {
		group.MaxMembers = input.MaxMembers
	}

	if err := s.ensureKeys(group); err != nil {
		return nil, err
	}

	if err := s.groupRepo.Create(ctx, group); err != nil {
		s.logger.Error().Err(err).Str("name", input.Name).Msg("failed to create group")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("group_id", group.ID.String()).
		Str("name", group.Name).
		Str("type", string(group.Type)).
		Int("max_members", group.MaxMembers).
		Msg("group created")

	return &CreateGroupOutput{Group: group}, nil
}

// ensureKeys generates the group's key pair if absent. Keys are generated
// exactly once and preserved on subsequent saves.
func (s *GroupService) ensureKeys(group *domain.Group) error {
	if group.HasKeys() {
		return nil
	}
	privatePEM, publicPEM, err := crypto.GenerateKeyPair()
	if err != nil {
		s.logger.Error().Err(err).Str("group_id", group.ID.String()).Msg("failed to generate group keys")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	group.PrivateKey = privatePEM
	group.PublicKey = publicPEM
	return nil
}

// EnsureKeys backfills key material for a persisted group that lacks it.
func (s *GroupService) EnsureKeys(ctx context.Context, groupID uuid.UUID) (*domain.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.HasKeys() {
		return group, nil
	}

	if err := s.ensureKeys(group); err != nil {
		return nil, err
	}
	if err := s.groupRepo.UpdateKeys(ctx, group.ID, group.PrivateKey, group.PublicKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("group_id", group.ID.String()).Msg("group keys provisioned")
	return group, nil
}

// GetByID retrieves a group by ID.
func (s *GroupService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	return s.groupRepo.GetByID(ctx, id)
}

// AddMemberInput contains the data needed to add a group member.
type AddMemberInput struct {
	GroupID uuid.UUID
	UserID  uuid.UUID
	AddedBy *uuid.UUID
	Role    domain.MembershipRole
}

// AddMember adds a user to a group. The capacity check and insert run
// under the per-group membership lock, so concurrent joins cannot push the
// member count past MaxMembers.
func (s *GroupService) AddMember(ctx context.Context, input AddMemberInput) (*domain.GroupMembership, error) {
	if input.Role != "" && !input.Role.Valid() {
		return nil, fmt.Errorf("%w: membership role %s", ErrInvalidRole, input.Role)
	}

	group, err := s.groupRepo.GetByID(ctx, input.GroupID)
	if err != nil {
		return nil, err
	}
	if !group.IsActive {
		return nil, domain.ErrGroupInactive
	}
	if _, err := s.userRepo.GetByID(ctx, input.UserID); err != nil {
		return nil, err
	}

	lockKey := s.lockKeys.GroupMembership(group.ID)
	acquired, err := s.locker.AcquireWithRetry(ctx, lockKey, membershipLockTTL, membershipLockRetries, membershipLockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		return nil, ErrOperationInProgress
	}
	defer func() {
		if _, err := s.locker.Release(ctx, lockKey); err != nil {
			s.logger.Warn().Err(err).Str("key", lockKey).Msg("failed to release membership lock")
		}
	}()

	exists, err := s.membershipRepo.Exists(ctx, group.ID, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, domain.ErrAlreadyMember
	}

	count, err := s.membershipRepo.CountByGroup(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if count >= int64(group.MaxMembers) {
		return nil, domain.NewDomainError(domain.ErrGroupAtCapacity,
			fmt.Sprintf("%d of %d members", count, group.MaxMembers), group.Name)
	}

	membership := domain.NewGroupMembership(group.ID, input.UserID, input.AddedBy, input.Role)
	if err := s.membershipRepo.Create(ctx, membership); err != nil {
		return nil, err
	}

	group.TouchActivity(time.Now().UTC())
	if err := s.groupRepo.Update(ctx, group); err != nil {
		s.logger.Warn().Err(err).Str("group_id", group.ID.String()).Msg("failed to stamp group activity")
	}

	s.logger.Info().
		Str("group_id", group.ID.String()).
		Str("user_id", input.UserID.String()).
		Str("role", string(membership.Role)).
		Msg("member added")

	return membership, nil
}

// RemoveMember removes a user from a group.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}

	if err := s.membershipRepo.Delete(ctx, groupID, userID); err != nil {
		return err
	}

	group.TouchActivity(time.Now().UTC())
	if err := s.groupRepo.Update(ctx, group); err != nil {
		s.logger.Warn().Err(err).Str("group_id", group.ID.String()).Msg("failed to stamp group activity")
	}

	s.logger.Info().
		Str("group_id", groupID.String()).
		Str("user_id", userID.String()).
		Msg("member removed")

	return nil
}

// CanUserInvite reports whether the user may send invitations for the
// group: group admins always may, plain members only when the group allows
// member invites.
func (s *GroupService) CanUserInvite(ctx context.Context, group *domain.Group, userID uuid.UUID) (bool, error) {
	if group.IsAdmin(userID) {
		return true, nil
	}
	if !group.AllowMemberInvite {
		return false, nil
	}
	return s.membershipRepo.Exists(ctx, group.ID, userID)
}

// Members returns the group's memberships.
func (s *GroupService) Members(ctx context.Context, groupID uuid.UUID) ([]*domain.GroupMembership, error) {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.membershipRepo.ListByGroup(ctx, groupID)
}

// TouchMember stamps a member's last-seen timestamp.
func (s *GroupService) TouchMember(ctx context.Context, groupID, userID uuid.UUID) error {
	membership, err := s.membershipRepo.Get(ctx, groupID, userID)
	if err != nil {
		return err
	}
	membership.TouchLastSeen(time.Now().UTC())
	return s.membershipRepo.Update(ctx, membership)
}

// ListByMember returns the groups a user belongs to.
func (s *GroupService) ListByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Group, error) {
	return s.groupRepo.ListByMember(ctx, userID)
}

// ListGroupsInput contains pagination options for listing groups.
type ListGroupsInput struct {
	Limit  int
	Offset int
}

// ListGroupsOutput contains the result of listing groups.
type ListGroupsOutput struct {
	Groups     []*domain.Group
	TotalCount int64
}

// List returns groups with pagination.
func (s *GroupService) List(ctx context.Context, input ListGroupsInput) (*ListGroupsOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}

	result, err := s.groupRepo.List(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list groups")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ListGroupsOutput{
		Groups:     result.Items,
		TotalCount: result.Total,
	}, nil
}
