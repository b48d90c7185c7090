package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/lock"
)

func newTestGroupService() (*GroupService, *mockMembershipRepo, *mockUserRepo) {
	membershipRepo := newMockMembershipRepo()
	userRepo := newMockUserRepo()
	svc := NewGroupService(newMockGroupRepo(), membershipRepo, userRepo, lock.NewMemoryLocker(), zerolog.Nop())
	return svc, membershipRepo, userRepo
}

func addTestUser(t *testing.T, repo *mockUserRepo, email string) *domain.User {
	t.Helper()
	u := domain.NewUser(email, domain.RoleTechnician, "hash")
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return u
}

func TestGroupServiceCreate(t *testing.T) {
	svc, _, userRepo := newTestGroupService()
	ctx := context.Background()
	creator := addTestUser(t, userRepo, "creator@drlab.io")

	out, err := svc.Create(ctx, CreateGroupInput{
		Name:      "Microbiology Leads",
		Type:      domain.GroupPrivate,
		CreatedBy: creator.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g := out.Group
	if !g.HasKeys() {
		t.Error("expected key pair to be provisioned at creation")
	}
	if g.MaxMembers != domain.DefaultMaxMembers {
		t.Errorf("expected default max members %d, got %d", domain.DefaultMaxMembers, g.MaxMembers)
	}
	if !g.IsAdmin(creator.ID) {
		t.Error("expected creator to be a group admin")
	}

	// Creation does not enroll anyone; the group starts empty.
	members, err := svc.Members(ctx, g.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 0 {
		t.Errorf("expected empty group after creation, got %d members", len(members))
	}
}

func TestGroupServiceCreateValidation(t *testing.T) {
	svc, _, _ := newTestGroupService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateGroupInput{Name: ""})
	if !errors.Is(err, ErrInvalidGroupName) {
		t.Fatalf("expected ErrInvalidGroupName, got %v", err)
	}

	_, err = svc.Create(ctx, CreateGroupInput{Name: "x", Type: "SECRET"})
	if !errors.Is(err, ErrInvalidGroupType) {
		t.Fatalf("expected ErrInvalidGroupType, got %v", err)
	}
}

func TestGroupServiceEnsureKeysIsStable(t *testing.T) {
	svc, _, userRepo := newTestGroupService()
	ctx := context.Background()
	creator := addTestUser(t, userRepo, "keys@drlab.io")

	out, err := svc.Create(ctx, CreateGroupInput{Name: "Stable", CreatedBy: creator.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	original := out.Group.PublicKey

	// EnsureKeys on a keyed group is a no-op.
	again, err := svc.EnsureKeys(ctx, out.Group.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.PublicKey != original {
		t.Error("expected existing keys to be preserved")
	}
}

func TestGroupServiceAddMember(t *testing.T) {
	svc, _, userRepo := newTestGroupService()
	ctx := context.Background()
	creator := addTestUser(t, userRepo, "admin@drlab.io")
	member := addTestUser(t, userRepo, "member@drlab.io")

	out, err := svc.Create(ctx, CreateGroupInput{Name: "Team", CreatedBy: creator.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, err := svc.AddMember(ctx, AddMemberInput{
		GroupID: out.Group.ID,
		UserID:  member.ID,
		AddedBy: &creator.ID,
		Role:    domain.MembershipMember,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.GroupID != out.Group.ID || m.UserID != member.ID {
		t.Error("expected membership to reference group and user")
	}

	// Joining twice is rejected.
	_, err = svc.AddMember(ctx, AddMemberInput{GroupID: out.Group.ID, UserID: member.ID})
	if !errors.Is(err, domain.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}

	// Unknown users cannot join.
	_, err = svc.AddMember(ctx, AddMemberInput{GroupID: out.Group.ID, UserID: uuid.New()})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGroupServiceAddMemberCapacity(t *testing.T) {
	svc, membershipRepo, userRepo := newTestGroupService()
	ctx := context.Background()
	creator := addTestUser(t, userRepo, "cap@drlab.io")
	first := addTestUser(t, userRepo, "first@drlab.io")
	second := addTestUser(t, userRepo, "second@drlab.io")

	out, err := svc.Create(ctx, CreateGroupInput{Name: "Tiny", CreatedBy: creator.ID, MaxMembers: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	groupID := out.Group.ID

	if _, err := svc.AddMember(ctx, AddMemberInput{GroupID: groupID, UserID: first.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.AddMember(ctx, AddMemberInput{GroupID: groupID, UserID: second.ID})
	if !errors.Is(err, domain.ErrGroupAtCapacity) {
		t.Fatalf("expected ErrGroupAtCapacity, got %v", err)
	}

	// The failed join must not change the member count.
	count, err := membershipRepo.CountByGroup(ctx, groupID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 member, got %d", count)
	}
}

func TestGroupServiceRemoveMember(t *testing.T) {
	svc, _, userRepo := newTestGroupService()
	ctx := context.Background()
	creator := addTestUser(t, userRepo, "rm-admin@drlab.io")
	member := addTestUser(t, userRepo, "rm-member@drlab.io")

	out, err := svc.Create(ctx, CreateGroupInput{Name: "Removals", CreatedBy: creator.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.AddMember(ctx, AddMemberInput{GroupID: out.Group.ID, UserID: member.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RemoveMember(ctx, out.Group.ID, member.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RemoveMember(ctx, out.Group.ID, member.ID); !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestGroupServiceCanUserInvite(t *testing.T) {
	svc, _, userRepo := newTestGroupService()
	ctx := context.Background()
	creator := addTestUser(t, userRepo, "inv-admin@drlab.io")
	member := addTestUser(t, userRepo, "inv-member@drlab.io")
	outsider := addTestUser(t, userRepo, "inv-outsider@drlab.io")

	out, err := svc.Create(ctx, CreateGroupInput{Name: "Inviters", CreatedBy: creator.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	group := out.Group
	if _, err := svc.AddMember(ctx, AddMemberInput{GroupID: group.ID, UserID: member.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name              string
		userID            uuid.UUID
		allowMemberInvite bool
		want              bool
	}{
		{name: "admin always", userID: creator.ID, want: true},
		{name: "member when allowed", userID: member.ID, allowMemberInvite: true, want: true},
		{name: "member when not allowed", userID: member.ID, want: false},
		{name: "outsider", userID: outsider.ID, allowMemberInvite: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group.AllowMemberInvite = tt.allowMemberInvite
			got, err := svc.CanUserInvite(ctx, group, tt.userID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
