package postgres

import (
	"github.com/drlab-io/drlab/internal/repository"
)

// NewRepositories wires up the full repository bundle on one pool.
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		User:       NewUserRepository(db),
		Token:      NewTokenRepository(db),
		Session:    NewSessionRepository(db),
		Group:      NewGroupRepository(db),
		Membership: NewMembershipRepository(db),
		Invitation: NewInvitationRepository(db),
		Client:     NewClientRepository(db),
		Project:    NewProjectRepository(db),
		Batch:      NewBatchRepository(db),
		Sample:     NewSampleRepository(db),
		Worksheet:  NewWorksheetRepository(db),
		Sequence:   NewSequenceRepository(db),
	}
}
