package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/lock"
)

type invitationFixture struct {
	svc            *InvitationService
	groupSvc       *GroupService
	invitationRepo *mockInvitationRepo
	membershipRepo *mockMembershipRepo
	userRepo       *mockUserRepo
}

func newInvitationFixture() *invitationFixture {
	invitationRepo := newMockInvitationRepo()
	membershipRepo := newMockMembershipRepo()
	userRepo := newMockUserRepo()
	locker := lock.NewMemoryLocker()

	groupSvc := NewGroupService(newMockGroupRepo(), membershipRepo, userRepo, locker, zerolog.Nop())
	svc := NewInvitationService(invitationRepo, groupSvc, userRepo, locker, 0, zerolog.Nop())

	return &invitationFixture{
		svc:            svc,
		groupSvc:       groupSvc,
		invitationRepo: invitationRepo,
		membershipRepo: membershipRepo,
		userRepo:       userRepo,
	}
}

func TestInvitationServiceInvite(t *testing.T) {
	f := newInvitationFixture()
	ctx := context.Background()
	admin := addTestUser(t, f.userRepo, "admin@drlab.io")
	invitee := addTestUser(t, f.userRepo, "invitee@drlab.io")

	out, err := f.groupSvc.Create(ctx, CreateGroupInput{Name: "Inviting", CreatedBy: admin.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	group := out.Group

	inv, err := f.svc.Invite(ctx, InviteInput{
		GroupID:       group.ID,
		InvitedUserID: invitee.ID,
		InvitedBy:     admin.ID,
		Message:       "join us",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Status != domain.InvitationPending {
		t.Errorf("expected PENDING, got %s", inv.Status)
	}
	wantExpiry := time.Now().UTC().Add(domain.DefaultInvitationTTL)
	if inv.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || inv.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("expected default TTL expiry near %v, got %v", wantExpiry, inv.ExpiresAt)
	}

	// One pending invitation per (group, user) pair.
	_, err = f.svc.Invite(ctx, InviteInput{GroupID: group.ID, InvitedUserID: invitee.ID, InvitedBy: admin.ID})
	if !errors.Is(err, domain.ErrInvitationExists) {
		t.Fatalf("expected ErrInvitationExists, got %v", err)
	}
}

func TestInvitationServiceInvitePermissions(t *testing.T) {
	f := newInvitationFixture()
	ctx := context.Background()
	admin := addTestUser(t, f.userRepo, "perm-admin@drlab.io")
	member := addTestUser(t, f.userRepo, "perm-member@drlab.io")
	invitee := addTestUser(t, f.userRepo, "perm-invitee@drlab.io")

	out, err := f.groupSvc.Create(ctx, CreateGroupInput{Name: "Perms", CreatedBy: admin.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	group := out.Group
	if _, err := f.groupSvc.AddMember(ctx, AddMemberInput{GroupID: group.ID, UserID: member.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A plain member cannot invite unless the group allows it.
	_, err = f.svc.Invite(ctx, InviteInput{GroupID: group.ID, InvitedUserID: invitee.ID, InvitedBy: member.ID})
	if !errors.Is(err, domain.ErrInviteNotAllowed) {
		t.Fatalf("expected ErrInviteNotAllowed, got %v", err)
	}

	// Inviting an existing member is rejected.
	_, err = f.svc.Invite(ctx, InviteInput{GroupID: group.ID, InvitedUserID: member.ID, InvitedBy: admin.ID})
	if !errors.Is(err, domain.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestInvitationServiceAccept(t *testing.T) {
	f := newInvitationFixture()
	ctx := context.Background()
	admin := addTestUser(t, f.userRepo, "acc-admin@drlab.io")
	invitee := addTestUser(t, f.userRepo, "acc-invitee@drlab.io")

	out, err := f.groupSvc.Create(ctx, CreateGroupInput{Name: "Accepting", CreatedBy: admin.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv, err := f.svc.Invite(ctx, InviteInput{GroupID: out.Group.ID, InvitedUserID: invitee.ID, InvitedBy: admin.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	membership, err := f.svc.Accept(ctx, inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if membership.UserID != invitee.ID {
		t.Error("expected membership for the invitee")
	}

	stored, err := f.invitationRepo.GetByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != domain.InvitationAccepted {
		t.Errorf("expected ACCEPTED, got %s", stored.Status)
	}
	if stored.RespondedAt == nil {
		t.Error("expected responded_at to be stamped")
	}

	// Accepting twice is rejected.
	if _, err := f.svc.Accept(ctx, inv.ID); !errors.Is(err, domain.ErrInvitationNotPending) {
		t.Fatalf("expected ErrInvitationNotPending, got %v", err)
	}
}

func TestInvitationServiceAcceptExpired(t *testing.T) {
	f := newInvitationFixture()
	ctx := context.Background()
	admin := addTestUser(t, f.userRepo, "exp-admin@drlab.io")
	invitee := addTestUser(t, f.userRepo, "exp-invitee@drlab.io")

	out, err := f.groupSvc.Create(ctx, CreateGroupInput{Name: "Expiring", CreatedBy: admin.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv, err := f.svc.Invite(ctx, InviteInput{
		GroupID:       out.Group.ID,
		InvitedUserID: invitee.ID,
		InvitedBy:     admin.ID,
		ExpiresAt:     time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = f.svc.Accept(ctx, inv.ID)
	if !errors.Is(err, domain.ErrInvitationExpired) {
		t.Fatalf("expected ErrInvitationExpired, got %v", err)
	}

	// The expiry is persisted and no membership was created.
	stored, err := f.invitationRepo.GetByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != domain.InvitationExpired {
		t.Errorf("expected EXPIRED to be persisted, got %s", stored.Status)
	}
	isMember, err := f.membershipRepo.Exists(ctx, out.Group.ID, invitee.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isMember {
		t.Error("expected no membership from an expired invitation")
	}
}

func TestInvitationServiceAcceptAtCapacity(t *testing.T) {
	f := newInvitationFixture()
	ctx := context.Background()
	admin := addTestUser(t, f.userRepo, "cap-admin@drlab.io")
	first := addTestUser(t, f.userRepo, "cap-first@drlab.io")
	second := addTestUser(t, f.userRepo, "cap-second@drlab.io")

	// A one-seat group: the first accept fills it, the second bounces.
	out, err := f.groupSvc.Create(ctx, CreateGroupInput{Name: "One Seat", CreatedBy: admin.ID, MaxMembers: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	group := out.Group

	invFirst, err := f.svc.Invite(ctx, InviteInput{GroupID: group.ID, InvitedUserID: first.ID, InvitedBy: admin.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	invSecond, err := f.svc.Invite(ctx, InviteInput{GroupID: group.ID, InvitedUserID: second.ID, InvitedBy: admin.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.svc.Accept(ctx, invFirst.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = f.svc.Accept(ctx, invSecond.ID)
	if !errors.Is(err, domain.ErrGroupAtCapacity) {
		t.Fatalf("expected ErrGroupAtCapacity, got %v", err)
	}

	// The bounced invitation stays PENDING so it can be retried after a
	// seat frees up.
	stored, err := f.invitationRepo.GetByID(ctx, invSecond.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != domain.InvitationPending {
		t.Errorf("expected PENDING after capacity failure, got %s", stored.Status)
	}

	if err := f.groupSvc.RemoveMember(ctx, group.ID, first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Accept(ctx, invSecond.ID); err != nil {
		t.Fatalf("expected retry to succeed after seat freed, got %v", err)
	}
}

func TestInvitationServiceDecline(t *testing.T) {
	f := newInvitationFixture()
	ctx := context.Background()
	admin := addTestUser(t, f.userRepo, "dec-admin@drlab.io")
	invitee := addTestUser(t, f.userRepo, "dec-invitee@drlab.io")

	out, err := f.groupSvc.Create(ctx, CreateGroupInput{Name: "Declining", CreatedBy: admin.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv, err := f.svc.Invite(ctx, InviteInput{GroupID: out.Group.ID, InvitedUserID: invitee.ID, InvitedBy: admin.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.svc.Decline(ctx, inv.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, err := f.invitationRepo.GetByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != domain.InvitationDeclined {
		t.Errorf("expected DECLINED, got %s", stored.Status)
	}

	// Declining is terminal.
	if err := f.svc.Decline(ctx, inv.ID); !errors.Is(err, domain.ErrInvitationNotPending) {
		t.Fatalf("expected ErrInvitationNotPending, got %v", err)
	}
}

func TestInvitationServiceSweepExpired(t *testing.T) {
	f := newInvitationFixture()
	ctx := context.Background()
	admin := addTestUser(t, f.userRepo, "sweep-admin@drlab.io")
	stale := addTestUser(t, f.userRepo, "sweep-stale@drlab.io")
	fresh := addTestUser(t, f.userRepo, "sweep-fresh@drlab.io")

	out, err := f.groupSvc.Create(ctx, CreateGroupInput{Name: "Sweeping", CreatedBy: admin.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	group := out.Group

	expired, err := f.svc.Invite(ctx, InviteInput{
		GroupID: group.ID, InvitedUserID: stale.ID, InvitedBy: admin.ID,
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pending, err := f.svc.Invite(ctx, InviteInput{GroupID: group.ID, InvitedUserID: fresh.ID, InvitedBy: admin.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := f.svc.SweepExpired(ctx, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 invitation expired, got %d", n)
	}

	got, _ := f.invitationRepo.GetByID(ctx, expired.ID)
	if got.Status != domain.InvitationExpired {
		t.Errorf("expected EXPIRED, got %s", got.Status)
	}
	got, _ = f.invitationRepo.GetByID(ctx, pending.ID)
	if got.Status != domain.InvitationPending {
		t.Errorf("expected PENDING to survive the sweep, got %s", got.Status)
	}

	// The sweep is idempotent.
	n, err = f.svc.SweepExpired(ctx, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing left to expire, got %d", n)
	}
}
