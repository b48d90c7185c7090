// Package service provides business logic services for drlab.
package service

import "errors"

// Common service errors.
var (
	// User errors
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrInvalidPassword  = errors.New("invalid password: must be at least 8 characters")
	ErrPasswordMismatch = errors.New("password confirmation does not match")
	ErrInvalidRole      = errors.New("invalid role")

	// Group errors
	ErrInvalidGroupName = errors.New("invalid group name: must be 1-255 characters")
	ErrInvalidGroupType = errors.New("invalid group type")

	// Client / project errors
	ErrInvalidClientName    = errors.New("invalid client name: must be 1-255 characters")
	ErrInvalidClientType    = errors.New("invalid client type")
	ErrInvalidSLA           = errors.New("invalid SLA: hours must be positive")
	ErrInvalidProjectStatus = errors.New("invalid project status")

	// Sample / batch / worksheet errors
	ErrInvalidDepartment    = errors.New("invalid testing department")
	ErrInvalidStorage       = errors.New("invalid storage requirement")
	ErrDepartmentMismatch   = errors.New("sample department does not match worksheet department")
	ErrWorksheetNotEditable = errors.New("worksheet can no longer be edited")

	// Concurrency errors
	ErrOperationInProgress = errors.New("a conflicting operation is in progress")

	// General errors
	ErrInternalError = errors.New("internal server error")
)
