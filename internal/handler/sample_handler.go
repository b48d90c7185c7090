package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/service"
)

// SampleHandler serves batch and sample endpoints.
type SampleHandler struct {
	sampleService *service.SampleService
	logger        zerolog.Logger
}

// NewSampleHandler creates a new SampleHandler.
func NewSampleHandler(sampleService *service.SampleService, logger zerolog.Logger) *SampleHandler {
	return &SampleHandler{
		sampleService: sampleService,
		logger:        logger.With().Str("handler", "sample").Logger(),
	}
}

type createBatchRequest struct {
	ClientID   uuid.UUID  `json:"client_id"`
	ProjectID  *uuid.UUID `json:"project_id"`
	Department string     `json:"department"`
	SLAHours   int        `json:"sla_hours"`
}

// CreateBatch registers a sample batch for a client.
func (h *SampleHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req createBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	batch, err := h.sampleService.CreateBatch(r.Context(), service.CreateBatchInput{
		ClientID:   req.ClientID,
		ProjectID:  req.ProjectID,
		Department: domain.Department(strings.ToUpper(req.Department)),
		SLAHours:   req.SLAHours,
		CreatedBy:  user.ID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, batch)
}

// ListBatches returns a page of batches.
func (h *SampleHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	out, err := h.sampleService.ListBatches(r.Context(), service.ListBatchesInput{Limit: limit, Offset: offset})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, out.Batches, out.TotalCount, limit, offset)
}

// ListOverdueBatches returns undelivered batches past their due date.
func (h *SampleHandler) ListOverdueBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.sampleService.ListOverdueBatches(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, batches)
}

// GetBatch returns a batch by ID.
func (h *SampleHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "batchID")
	if !ok {
		return
	}
	batch, err := h.sampleService.GetBatch(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, batch)
}

// GetBatchByNumber returns a batch by its human-readable number.
func (h *SampleHandler) GetBatchByNumber(w http.ResponseWriter, r *http.Request) {
	batch, err := h.sampleService.GetBatchByNumber(r.Context(), chi.URLParam(r, "batchNumber"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, batch)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// UpdateBatchStatus moves a batch through its lifecycle.
func (h *SampleHandler) UpdateBatchStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "batchID")
	if !ok {
		return
	}
	var req setStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	batch, err := h.sampleService.UpdateBatchStatus(r.Context(), id, domain.BatchStatus(strings.ToUpper(req.Status)))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, batch)
}

// DeliverBatch marks a completed batch delivered and archives the report
// document sent as the request body.
func (h *SampleHandler) DeliverBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "batchID")
	if !ok {
		return
	}

	var reportDoc io.Reader
	if r.ContentLength != 0 {
		reportDoc = r.Body
	}
	batch, err := h.sampleService.DeliverBatch(r.Context(), id, reportDoc)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, batch)
}

// OpenReport streams a delivered batch's archived report.
func (h *SampleHandler) OpenReport(w http.ResponseWriter, r *http.Request) {
	batchNumber := chi.URLParam(r, "batchNumber")
	doc, err := h.sampleService.OpenReport(r.Context(), batchNumber)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer doc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+batchNumber+`.pdf"`)
	if _, err := io.Copy(w, doc); err != nil {
		h.logger.Error().Err(err).Str("batch_number", batchNumber).Msg("failed to stream report")
	}
}

// BatchProgress returns per-status sample counts for a batch.
func (h *SampleHandler) BatchProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "batchID")
	if !ok {
		return
	}
	progress, err := h.sampleService.BatchProgress(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, progress)
}

// ListBatchSamples lists the samples registered into a batch.
func (h *SampleHandler) ListBatchSamples(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "batchID")
	if !ok {
		return
	}
	samples, err := h.sampleService.ListSamplesByBatch(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, samples)
}

type registerSampleRequest struct {
	BatchID              uuid.UUID `json:"batch_id"`
	Department           string    `json:"department"`
	VolumeML             float64   `json:"volume_ml"`
	SampleType           string    `json:"sample_type"`
	Description          string    `json:"description"`
	TemperatureOnReceipt string    `json:"temperature_on_receipt"`
	ConditionNotes       string    `json:"condition_notes"`
	Storage              string    `json:"storage"`
	RequiresVerification *bool     `json:"requires_verification"`
}

// RegisterSample registers a sample into a batch. The sample ID and
// barcode are assigned server-side.
func (h *SampleHandler) RegisterSample(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req registerSampleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sample, err := h.sampleService.RegisterSample(r.Context(), service.RegisterSampleInput{
		BatchID:              req.BatchID,
		Department:           domain.Department(strings.ToUpper(req.Department)),
		VolumeML:             req.VolumeML,
		SampleType:           req.SampleType,
		Description:          req.Description,
		TemperatureOnReceipt: req.TemperatureOnReceipt,
		ConditionNotes:       req.ConditionNotes,
		Storage:              domain.StorageRequirement(strings.ToUpper(req.Storage)),
		RequiresVerification: req.RequiresVerification,
		ReceivedBy:           user.ID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, sample)
}

// GetSample returns a sample by ID.
func (h *SampleHandler) GetSample(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "sampleID")
	if !ok {
		return
	}
	sample, err := h.sampleService.GetSample(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, sample)
}

// GetSampleByIdentifier returns a sample by its lab identifier.
func (h *SampleHandler) GetSampleByIdentifier(w http.ResponseWriter, r *http.Request) {
	sample, err := h.sampleService.GetSampleByIdentifier(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, sample)
}

// GetSampleByBarcode returns a sample by its barcode. This is the scan
// path used at the bench.
func (h *SampleHandler) GetSampleByBarcode(w http.ResponseWriter, r *http.Request) {
	sample, err := h.sampleService.GetSampleByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, sample)
}

// UpdateSampleStatus moves a sample through its lifecycle.
func (h *SampleHandler) UpdateSampleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "sampleID")
	if !ok {
		return
	}
	var req setStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sample, err := h.sampleService.UpdateSampleStatus(r.Context(), id, domain.SampleStatus(strings.ToUpper(req.Status)))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, sample)
}

// VerifySample records a verification by the caller.
func (h *SampleHandler) VerifySample(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "sampleID")
	if !ok {
		return
	}
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}

	sample, err := h.sampleService.VerifySample(r.Context(), id, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, sample)
}

// DiscardSample discards a sample whose retention period has elapsed.
func (h *SampleHandler) DiscardSample(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "sampleID")
	if !ok {
		return
	}
	sample, err := h.sampleService.DiscardSample(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, sample)
}

// DiscardCountdown reports how many days remain before a sample may be
// discarded.
func (h *SampleHandler) DiscardCountdown(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "sampleID")
	if !ok {
		return
	}
	days, err := h.sampleService.DaysUntilDiscard(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]int{"days_until_discard": days})
}
