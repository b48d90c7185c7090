// Package domain contains the core business entities for drlab.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserInactive indicates the user account is disabled.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSetupNotRequired indicates the user has already completed setup.
	ErrSetupNotRequired = errors.New("user has already completed setup")

	// ErrSetupRequired indicates the user must complete setup before the operation.
	ErrSetupRequired = errors.New("user has not completed setup")

	// ===========================================
	// Key Management Errors
	// ===========================================

	// ErrNoKeyMaterial indicates no encrypted private key is stored for the subject.
	// Callers should run key generation (setup) first.
	ErrNoKeyMaterial = errors.New("no key material present")

	// ErrKeyDecryptionFailed indicates the private key could not be decrypted,
	// either because the supplied password is wrong or the stored blob is corrupt.
	ErrKeyDecryptionFailed = errors.New("private key decryption failed")

	// ===========================================
	// Group Errors
	// ===========================================

	// ErrGroupNotFound indicates the requested group does not exist.
	ErrGroupNotFound = errors.New("group not found")

	// ErrGroupInactive indicates the group is disabled.
	ErrGroupInactive = errors.New("group is inactive")

	// ErrAlreadyMember indicates the user already belongs to the group.
	ErrAlreadyMember = errors.New("user is already a member")

	// ErrNotMember indicates the user does not belong to the group.
	ErrNotMember = errors.New("user is not a member of this group")

	// ErrGroupAtCapacity indicates the group has reached max_members.
	ErrGroupAtCapacity = errors.New("group has reached maximum members")

	// ErrInviteNotAllowed indicates the user may not invite others to the group.
	ErrInviteNotAllowed = errors.New("user is not allowed to invite to this group")

	// ===========================================
	// Invitation Errors
	// ===========================================

	// ErrInvitationNotFound indicates the requested invitation does not exist.
	ErrInvitationNotFound = errors.New("invitation not found")

	// ErrInvitationNotPending indicates the invitation is in a terminal state.
	ErrInvitationNotPending = errors.New("invitation is not pending")

	// ErrInvitationExpired indicates the invitation is past its expiry date.
	ErrInvitationExpired = errors.New("invitation has expired")

	// ErrInvitationExists indicates a pending invitation for this pair exists.
	ErrInvitationExists = errors.New("invitation already exists for this user")

	// ===========================================
	// Client / Project Errors
	// ===========================================

	// ErrClientNotFound indicates the requested client does not exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrClientInactive indicates the client is deactivated and cannot
	// receive new work.
	ErrClientInactive = errors.New("client is inactive")

	// ErrProjectNotFound indicates the requested project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ===========================================
	// Sample / Batch / Worksheet Errors
	// ===========================================

	// ErrBatchNotFound indicates the requested sample batch does not exist.
	ErrBatchNotFound = errors.New("sample batch not found")

	// ErrSampleNotFound indicates the requested sample does not exist.
	ErrSampleNotFound = errors.New("sample not found")

	// ErrWorksheetNotFound indicates the requested worksheet does not exist.
	ErrWorksheetNotFound = errors.New("worksheet not found")

	// ErrInvalidStatusTransition indicates a status change violating the
	// lifecycle transition table.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrNotEligibleForVerification indicates the sample cannot be verified
	// in its current state.
	ErrNotEligibleForVerification = errors.New("sample is not eligible for verification")

	// ErrRetentionNotElapsed indicates the sample's discard date has not passed.
	ErrRetentionNotElapsed = errors.New("sample retention period has not elapsed")

	// ErrDuplicateIdentifier indicates an identifier collided at the storage
	// layer (unique-constraint backstop). The operation is retryable.
	ErrDuplicateIdentifier = errors.New("identifier already exists")

	// ===========================================
	// Session / Token Errors
	// ===========================================

	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTokenNotFound indicates the auth token does not exist or was revoked.
	ErrTokenNotFound = errors.New("auth token not found")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., sample ID, group name).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// DependencyError reports a delete blocked by existing children, with counts
// so the caller can decide to deactivate instead.
type DependencyError struct {
	// Resource is the entity that could not be deleted.
	Resource string

	// Counts maps dependent kind (e.g. "projects", "samples") to row count.
	Counts map[string]int64
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("cannot delete %s: dependent records exist %v", e.Resource, e.Counts)
}

// Total returns the total number of dependent rows.
func (e *DependencyError) Total() int64 {
	var n int64
	for _, c := range e.Counts {
		n += c
	}
	return n
}
