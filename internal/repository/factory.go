// Package repository provides the data access layer for drlab.
// This file contains the repository bundle wired up by the server entrypoint.
package repository

import (
	"context"
)

// Repositories holds all repository instances.
type Repositories struct {
	User       UserRepository
	Token      TokenRepository
	Session    SessionRepository
	Group      GroupRepository
	Membership MembershipRepository
	Invitation InvitationRepository
	Client     ClientRepository
	Project    ProjectRepository
	Batch      BatchRepository
	Sample     SampleRepository
	Worksheet  WorksheetRepository
	Sequence   SequenceRepository
}

// DatabaseHealth is an interface for database health checks.
// This interface satisfies handler.DatabaseChecker for health endpoints.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
