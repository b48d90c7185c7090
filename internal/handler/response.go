// Package handler provides the HTTP API for drlab.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/repository"
	"github.com/drlab-io/drlab/internal/report"
	"github.com/drlab-io/drlab/internal/service"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"status":  "success",
		"message": message,
	})
}

func writeList(w http.ResponseWriter, items any, total int64, limit, offset int) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   items,
		"pagination": map[string]any{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

// writeServiceError translates service and domain errors into HTTP responses.
// Unrecognized errors become opaque 500s so storage details never leak.
func writeServiceError(w http.ResponseWriter, err error) {
	var depErr *domain.DependencyError
	if errors.As(err, &depErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"status":  "error",
			"code":    "DEPENDENTS_EXIST",
			"message": depErr.Error(),
			"counts":  depErr.Counts,
		})
		return
	}

	statusCode, code := classifyError(err)
	writeError(w, statusCode, code, err.Error())
}

func classifyError(err error) (int, string) {
	switch {
	// Not found
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrGroupNotFound),
		errors.Is(err, domain.ErrInvitationNotFound),
		errors.Is(err, domain.ErrClientNotFound),
		errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrBatchNotFound),
		errors.Is(err, domain.ErrSampleNotFound),
		errors.Is(err, domain.ErrWorksheetNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, report.ErrReportNotFound):
		return http.StatusNotFound, "NOT_FOUND"

	// Authentication
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrTokenNotFound):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrUserInactive):
		return http.StatusForbidden, "ACCOUNT_INACTIVE"
	case errors.Is(err, domain.ErrSetupRequired):
		return http.StatusForbidden, "SETUP_REQUIRED"

	// Conflicts
	case errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, domain.ErrSetupNotRequired),
		errors.Is(err, domain.ErrAlreadyMember),
		errors.Is(err, domain.ErrInvitationExists),
		errors.Is(err, domain.ErrDuplicateIdentifier):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrInvitationNotPending):
		return http.StatusConflict, "INVITATION_NOT_PENDING"
	case errors.Is(err, service.ErrOperationInProgress):
		return http.StatusConflict, "OPERATION_IN_PROGRESS"

	// Business rule rejections
	case errors.Is(err, domain.ErrGroupInactive),
		errors.Is(err, domain.ErrClientInactive):
		return http.StatusUnprocessableEntity, "INACTIVE"
	case errors.Is(err, domain.ErrGroupAtCapacity):
		return http.StatusUnprocessableEntity, "GROUP_AT_CAPACITY"
	case errors.Is(err, domain.ErrInviteNotAllowed):
		return http.StatusForbidden, "INVITE_NOT_ALLOWED"
	case errors.Is(err, domain.ErrNotMember):
		return http.StatusUnprocessableEntity, "NOT_MEMBER"
	case errors.Is(err, domain.ErrInvitationExpired):
		return http.StatusGone, "INVITATION_EXPIRED"
	case errors.Is(err, domain.ErrNotEligibleForVerification):
		return http.StatusUnprocessableEntity, "NOT_ELIGIBLE"
	case errors.Is(err, domain.ErrRetentionNotElapsed):
		return http.StatusUnprocessableEntity, "RETENTION_NOT_ELAPSED"
	case errors.Is(err, domain.ErrNoKeyMaterial):
		return http.StatusUnprocessableEntity, "NO_KEY_MATERIAL"
	case errors.Is(err, domain.ErrKeyDecryptionFailed):
		return http.StatusUnauthorized, "KEY_DECRYPTION_FAILED"
	case errors.Is(err, service.ErrWorksheetNotEditable):
		return http.StatusUnprocessableEntity, "WORKSHEET_NOT_EDITABLE"
	case errors.Is(err, service.ErrDepartmentMismatch):
		return http.StatusUnprocessableEntity, "DEPARTMENT_MISMATCH"

	// Validation
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrPasswordMismatch),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidGroupName),
		errors.Is(err, service.ErrInvalidGroupType),
		errors.Is(err, service.ErrInvalidClientName),
		errors.Is(err, service.ErrInvalidClientType),
		errors.Is(err, service.ErrInvalidSLA),
		errors.Is(err, service.ErrInvalidProjectStatus),
		errors.Is(err, service.ErrInvalidDepartment),
		errors.Is(err, service.ErrInvalidStorage):
		return http.StatusBadRequest, "VALIDATION_ERROR"

	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
		return false
	}
	return true
}
