package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/lock"
	"github.com/drlab-io/drlab/internal/metrics"
	"github.com/drlab-io/drlab/internal/repository"
)

// InvitationService handles group invitations and their expiry sweep.
type InvitationService struct {
	invitationRepo repository.InvitationRepository
	groupService   *GroupService
	userRepo       repository.UserRepository
	locker         lock.Locker
	ttl            time.Duration
	logger         zerolog.Logger

	lockKeys repository.LockKey
}

// NewInvitationService creates a new InvitationService.
func NewInvitationService(
	invitationRepo repository.InvitationRepository,
	groupService *GroupService,
	userRepo repository.UserRepository,
	locker lock.Locker,
	ttl time.Duration,
	logger zerolog.Logger,
) *InvitationService {
	if ttl <= 0 {
		ttl = domain.DefaultInvitationTTL
	}
	return &InvitationService{
		invitationRepo: invitationRepo,
		groupService:   groupService,
		userRepo:       userRepo,
		locker:         locker,
		ttl:            ttl,
		logger:         logger.With().Str("service", "invitation").Logger(),
	}
}

// InviteInput contains the data needed to issue an invitation.
type InviteInput struct {
	GroupID       uuid.UUID
	InvitedUserID uuid.UUID
	InvitedBy     uuid.UUID
	Message       string
	ExpiresAt     time.Time
}

// Invite issues a pending invitation. The inviter must be a group admin
// or, when the group allows it, a member. At most one pending invitation
// exists per (group, user) pair.
func (s *InvitationService) Invite(ctx context.Context, input InviteInput) (*domain.GroupInvitation, error) {
	group, err := s.groupService.GetByID(ctx, input.GroupID)
	if err != nil {
		return nil, err
	}
	if !group.IsActive {
		return nil, domain.ErrGroupInactive
	}
	if _, err := s.userRepo.GetByID(ctx, input.InvitedUserID); err != nil {
		return nil, err
	}

	allowed, err := s.groupService.CanUserInvite(ctx, group, input.InvitedBy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !allowed {
		return nil, domain.ErrInviteNotAllowed
	}

	member, err := s.groupService.membershipRepo.Exists(ctx, group.ID, input.InvitedUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if member {
		return nil, domain.ErrAlreadyMember
	}

	expiresAt := input.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().UTC().Add(s.ttl)
	}
	inv := domain.NewGroupInvitation(group.ID, input.InvitedUserID, input.InvitedBy, input.Message, expiresAt)

	if err := s.invitationRepo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("invitation_id", inv.ID.String()).
		Str("group_id", group.ID.String()).
		Str("invited_user_id", input.InvitedUserID.String()).
		Time("expires_at", inv.ExpiresAt).
		Msg("invitation sent")
	metrics.InvitationsTotal.WithLabelValues("sent").Inc()

	return inv, nil
}

// Accept accepts a pending invitation and joins the invitee to the group.
// An invitation past its deadline transitions to EXPIRED (persisted) and
// the accept fails. If the join itself fails, for example because the
// group is at capacity, the invitation stays PENDING and the join failure
// is returned.
func (s *InvitationService) Accept(ctx context.Context, invitationID uuid.UUID) (*domain.GroupMembership, error) {
	inv, err := s.invitationRepo.GetByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvitationPending {
		return nil, domain.NewDomainError(domain.ErrInvitationNotPending, "status "+string(inv.Status), inv.ID.String())
	}

	now := time.Now().UTC()
	if inv.IsExpired(now) {
		inv.MarkResponded(domain.InvitationExpired, now)
		if err := s.invitationRepo.Update(ctx, inv); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		metrics.InvitationsTotal.WithLabelValues("expired").Inc()
		return nil, domain.ErrInvitationExpired
	}

	membership, err := s.groupService.AddMember(ctx, AddMemberInput{
		GroupID: inv.GroupID,
		UserID:  inv.InvitedUserID,
		AddedBy: &inv.InvitedBy,
		Role:    domain.MembershipMember,
	})
	if err != nil {
		// The invitation remains PENDING; the caller may retry later.
		return nil, err
	}

	inv.MarkResponded(domain.InvitationAccepted, now)
	if err := s.invitationRepo.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("invitation_id", inv.ID.String()).
		Str("group_id", inv.GroupID.String()).
		Str("user_id", inv.InvitedUserID.String()).
		Msg("invitation accepted")
	metrics.InvitationsTotal.WithLabelValues("accepted").Inc()

	return membership, nil
}

// Decline declines a pending invitation.
func (s *InvitationService) Decline(ctx context.Context, invitationID uuid.UUID) error {
	inv, err := s.invitationRepo.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.Status != domain.InvitationPending {
		return domain.NewDomainError(domain.ErrInvitationNotPending, "status "+string(inv.Status), inv.ID.String())
	}

	inv.MarkResponded(domain.InvitationDeclined, time.Now().UTC())
	if err := s.invitationRepo.Update(ctx, inv); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("invitation_id", inv.ID.String()).
		Str("group_id", inv.GroupID.String()).
		Msg("invitation declined")
	metrics.InvitationsTotal.WithLabelValues("declined").Inc()

	return nil
}

// ListPendingByUser returns a user's pending invitations.
func (s *InvitationService) ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*domain.GroupInvitation, error) {
	return s.invitationRepo.ListPendingByUser(ctx, userID)
}

// SweepExpired marks overdue pending invitations EXPIRED. The sweep is
// idempotent and runs under a distributed lock so only one instance sweeps
// at a time. Returns the number of invitations expired.
func (s *InvitationService) SweepExpired(ctx context.Context, lockTTL time.Duration) (int64, error) {
	lockKey := s.lockKeys.InvitationSweep()
	acquired, err := s.locker.Acquire(ctx, lockKey, lockTTL)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		s.logger.Debug().Msg("invitation sweep already running elsewhere")
		return 0, nil
	}
	defer func() {
		if _, err := s.locker.Release(ctx, lockKey); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release invitation sweep lock")
		}
	}()

	start := time.Now()
	expired, err := s.invitationRepo.ExpirePending(ctx, start.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	metrics.SweepDuration.WithLabelValues("invitation").Observe(time.Since(start).Seconds())

	if expired > 0 {
		s.logger.Info().Int64("expired", expired).Msg("invitation sweep completed")
	}
	return expired, nil
}
