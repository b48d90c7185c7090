package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/repository"
	"github.com/drlab-io/drlab/internal/service"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "user not found",
			err:        domain.ErrUserNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "wrapped not found",
			err:        fmt.Errorf("lookup: %w", domain.ErrBatchNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "invalid credentials",
			err:        domain.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "inactive account",
			err:        domain.ErrUserInactive,
			wantStatus: http.StatusForbidden,
			wantCode:   "ACCOUNT_INACTIVE",
		},
		{
			name:       "duplicate identifier",
			err:        domain.ErrDuplicateIdentifier,
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
		{
			name:       "illegal transition",
			err:        domain.ErrInvalidStatusTransition,
			wantStatus: http.StatusConflict,
			wantCode:   "INVALID_TRANSITION",
		},
		{
			name:       "group at capacity",
			err:        domain.ErrGroupAtCapacity,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "GROUP_AT_CAPACITY",
		},
		{
			name:       "expired invitation",
			err:        domain.ErrInvitationExpired,
			wantStatus: http.StatusGone,
			wantCode:   "INVITATION_EXPIRED",
		},
		{
			name:       "retention not elapsed",
			err:        domain.ErrRetentionNotElapsed,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "RETENTION_NOT_ELAPSED",
		},
		{
			name:       "wrong export password",
			err:        domain.ErrKeyDecryptionFailed,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "KEY_DECRYPTION_FAILED",
		},
		{
			name:       "validation failure",
			err:        service.ErrInvalidEmail,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "lock contention",
			err:        service.ErrOperationInProgress,
			wantStatus: http.StatusConflict,
			wantCode:   "OPERATION_IN_PROGRESS",
		},
		{
			name:       "repository not found",
			err:        repository.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "unrecognized error stays opaque",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classifyError(tt.err)
			if status != tt.wantStatus {
				t.Errorf("classifyError() status = %d, want %d", status, tt.wantStatus)
			}
			if code != tt.wantCode {
				t.Errorf("classifyError() code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestWriteServiceErrorDependencyCounts(t *testing.T) {
	depErr := &domain.DependencyError{
		Resource: "client",
		Counts:   map[string]int64{"projects": 2, "samples": 7},
	}

	rec := httptest.NewRecorder()
	writeServiceError(rec, depErr)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}

	var body struct {
		Status string           `json:"status"`
		Code   string           `json:"code"`
		Counts map[string]int64 `json:"counts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "error" || body.Code != "DEPENDENTS_EXIST" {
		t.Errorf("body = %+v, want error/DEPENDENTS_EXIST", body)
	}
	if body.Counts["samples"] != 7 {
		t.Errorf("counts[samples] = %d, want 7", body.Counts["samples"])
	}
}
