package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/service"
)

// WorksheetHandler serves worksheet endpoints.
type WorksheetHandler struct {
	worksheetService *service.WorksheetService
	logger           zerolog.Logger
}

// NewWorksheetHandler creates a new WorksheetHandler.
func NewWorksheetHandler(worksheetService *service.WorksheetService, logger zerolog.Logger) *WorksheetHandler {
	return &WorksheetHandler{
		worksheetService: worksheetService,
		logger:           logger.With().Str("handler", "worksheet").Logger(),
	}
}

type createWorksheetRequest struct {
	Department string `json:"department"`
	Title      string `json:"title"`
	Notes      string `json:"notes"`
}

// Create opens a worksheet in DRAFT state.
func (h *WorksheetHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req createWorksheetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ws, err := h.worksheetService.Create(r.Context(), service.CreateWorksheetInput{
		Department: domain.Department(strings.ToUpper(req.Department)),
		Title:      req.Title,
		Notes:      req.Notes,
		CreatedBy:  user.ID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, ws)
}

// List returns a page of worksheets.
func (h *WorksheetHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	out, err := h.worksheetService.List(r.Context(), service.ListWorksheetsInput{Limit: limit, Offset: offset})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, out.Worksheets, out.TotalCount, limit, offset)
}

// ListByDepartment lists worksheets for one department.
func (h *WorksheetHandler) ListByDepartment(w http.ResponseWriter, r *http.Request) {
	dept := domain.Department(strings.ToUpper(chi.URLParam(r, "department")))
	sheets, err := h.worksheetService.ListByDepartment(r.Context(), dept)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, sheets)
}

// Get returns a worksheet by ID.
func (h *WorksheetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "worksheetID")
	if !ok {
		return
	}
	ws, err := h.worksheetService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, ws)
}

// GetByNumber returns a worksheet by its human-readable number.
func (h *WorksheetHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	ws, err := h.worksheetService.GetByNumber(r.Context(), chi.URLParam(r, "worksheetNumber"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, ws)
}

type worksheetSampleRequest struct {
	SampleID uuid.UUID `json:"sample_id"`
}

// AddSample attaches a sample to a worksheet.
func (h *WorksheetHandler) AddSample(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "worksheetID")
	if !ok {
		return
	}
	var req worksheetSampleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ws, err := h.worksheetService.AddSample(r.Context(), id, req.SampleID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, ws)
}

// RemoveSample detaches a sample from a worksheet.
func (h *WorksheetHandler) RemoveSample(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "worksheetID")
	if !ok {
		return
	}
	sampleID, ok := urlUUID(w, r, "sampleID")
	if !ok {
		return
	}

	ws, err := h.worksheetService.RemoveSample(r.Context(), id, sampleID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, ws)
}

type assignTechnicianRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

// AssignTechnician assigns a technician to a worksheet.
func (h *WorksheetHandler) AssignTechnician(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "worksheetID")
	if !ok {
		return
	}
	var req assignTechnicianRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ws, err := h.worksheetService.AssignTechnician(r.Context(), id, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, ws)
}

// Transition moves a worksheet through its lifecycle.
func (h *WorksheetHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "worksheetID")
	if !ok {
		return
	}
	var req setStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ws, err := h.worksheetService.Transition(r.Context(), id, domain.WorksheetStatus(strings.ToUpper(req.Status)))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, ws)
}

// Review signs off a completed worksheet.
func (h *WorksheetHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "worksheetID")
	if !ok {
		return
	}
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	ws, err := h.worksheetService.Review(r.Context(), id, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, ws)
}
