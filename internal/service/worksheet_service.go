package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/repository"
)

// WorksheetService handles department worksheets and their sample and
// technician assignments.
type WorksheetService struct {
	worksheetRepo repository.WorksheetRepository
	sampleRepo    repository.SampleRepository
	userRepo      repository.UserRepository
	idgen         *IdentifierGenerator
	logger        zerolog.Logger
}

// NewWorksheetService creates a new WorksheetService.
func NewWorksheetService(
	worksheetRepo repository.WorksheetRepository,
	sampleRepo repository.SampleRepository,
	userRepo repository.UserRepository,
	idgen *IdentifierGenerator,
	logger zerolog.Logger,
) *WorksheetService {
	return &WorksheetService{
		worksheetRepo: worksheetRepo,
		sampleRepo:    sampleRepo,
		userRepo:      userRepo,
		idgen:         idgen,
		logger:        logger.With().Str("service", "worksheet").Logger(),
	}
}

// CreateWorksheetInput contains the data needed to open a worksheet.
type CreateWorksheetInput struct {
	Department domain.Department
	Title      string
	Notes      string
	CreatedBy  uuid.UUID
}

// Create opens a worksheet in DRAFT state. The worksheet number is
// sequenced per department per calendar year.
func (s *WorksheetService) Create(ctx context.Context, input CreateWorksheetInput) (*domain.SampleWorksheet, error) {
	if !input.Department.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDepartment, input.Department)
	}

	var ws *domain.SampleWorksheet
	for attempt := 0; attempt < identifierRetries; attempt++ {
		now := time.Now().UTC()
		number, err := s.idgen.WorksheetNumber(ctx, input.Department, now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}

		ws = domain.NewSampleWorksheet(number, input.Department, input.Title, input.CreatedBy, now)
		ws.Notes = input.Notes

		err = s.worksheetRepo.Create(ctx, ws)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicateIdentifier) && attempt < identifierRetries-1 {
			continue
		}
		return nil, err
	}

	s.logger.Info().
		Str("worksheet_number", ws.WorksheetNumber).
		Str("department", string(ws.Department)).
		Msg("worksheet created")

	return ws, nil
}

// GetByID retrieves a worksheet by ID.
func (s *WorksheetService) GetByID(ctx context.Context, id uuid.UUID) (*domain.SampleWorksheet, error) {
	return s.worksheetRepo.GetByID(ctx, id)
}

// GetByNumber retrieves a worksheet by its worksheet number.
func (s *WorksheetService) GetByNumber(ctx context.Context, worksheetNumber string) (*domain.SampleWorksheet, error) {
	return s.worksheetRepo.GetByNumber(ctx, worksheetNumber)
}

// AddSample attaches a sample to a worksheet. The worksheet must still be
// editable and the sample must belong to the worksheet's department.
func (s *WorksheetService) AddSample(ctx context.Context, worksheetID, sampleID uuid.UUID) (*domain.SampleWorksheet, error) {
	ws, err := s.worksheetRepo.GetByID(ctx, worksheetID)
	if err != nil {
		return nil, err
	}
	if !ws.IsEditable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrWorksheetNotEditable, ws.WorksheetNumber, ws.Status)
	}

	sample, err := s.sampleRepo.GetByID(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	if sample.Department != ws.Department {
		return nil, fmt.Errorf("%w: sample %s is %s, worksheet %s is %s",
			ErrDepartmentMismatch, sample.SampleID, sample.Department, ws.WorksheetNumber, ws.Department)
	}

	ws.AddSample(sample.ID)
	ws.UpdatedAt = time.Now().UTC()
	if err := s.worksheetRepo.Update(ctx, ws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("worksheet_number", ws.WorksheetNumber).
		Str("sample_id", sample.SampleID).
		Msg("sample added to worksheet")

	return ws, nil
}

// RemoveSample detaches a sample from an editable worksheet.
func (s *WorksheetService) RemoveSample(ctx context.Context, worksheetID, sampleID uuid.UUID) (*domain.SampleWorksheet, error) {
	ws, err := s.worksheetRepo.GetByID(ctx, worksheetID)
	if err != nil {
		return nil, err
	}
	if !ws.IsEditable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrWorksheetNotEditable, ws.WorksheetNumber, ws.Status)
	}

	ws.RemoveSample(sampleID)
	ws.UpdatedAt = time.Now().UTC()
	if err := s.worksheetRepo.Update(ctx, ws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return ws, nil
}

// AssignTechnician assigns a user to an editable worksheet.
func (s *WorksheetService) AssignTechnician(ctx context.Context, worksheetID, userID uuid.UUID) (*domain.SampleWorksheet, error) {
	ws, err := s.worksheetRepo.GetByID(ctx, worksheetID)
	if err != nil {
		return nil, err
	}
	if !ws.IsEditable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrWorksheetNotEditable, ws.WorksheetNumber, ws.Status)
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	ws.AssignTechnician(userID)
	ws.UpdatedAt = time.Now().UTC()
	if err := s.worksheetRepo.Update(ctx, ws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("worksheet_number", ws.WorksheetNumber).
		Str("technician_id", userID.String()).
		Msg("technician assigned")

	return ws, nil
}

// Transition moves a worksheet through its lifecycle.
func (s *WorksheetService) Transition(ctx context.Context, worksheetID uuid.UUID, status domain.WorksheetStatus) (*domain.SampleWorksheet, error) {
	ws, err := s.worksheetRepo.GetByID(ctx, worksheetID)
	if err != nil {
		return nil, err
	}

	if err := ws.Transition(status, time.Now().UTC()); err != nil {
		return nil, err
	}
	ws.UpdatedAt = time.Now().UTC()
	if err := s.worksheetRepo.Update(ctx, ws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("worksheet_number", ws.WorksheetNumber).
		Str("status", string(status)).
		Msg("worksheet status updated")

	return ws, nil
}

// Review marks a completed worksheet REVIEWED.
func (s *WorksheetService) Review(ctx context.Context, worksheetID, reviewedBy uuid.UUID) (*domain.SampleWorksheet, error) {
	ws, err := s.worksheetRepo.GetByID(ctx, worksheetID)
	if err != nil {
		return nil, err
	}

	if err := ws.Review(reviewedBy, time.Now().UTC()); err != nil {
		return nil, err
	}
	ws.UpdatedAt = time.Now().UTC()
	if err := s.worksheetRepo.Update(ctx, ws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("worksheet_number", ws.WorksheetNumber).
		Str("reviewed_by", reviewedBy.String()).
		Msg("worksheet reviewed")

	return ws, nil
}

// ListWorksheetsInput contains pagination options for listing worksheets.
type ListWorksheetsInput struct {
	Limit  int
	Offset int
}

// ListWorksheetsOutput contains the result of listing worksheets.
type ListWorksheetsOutput struct {
	Worksheets []*domain.SampleWorksheet
	TotalCount int64
}

// List returns worksheets with pagination.
func (s *WorksheetService) List(ctx context.Context, input ListWorksheetsInput) (*ListWorksheetsOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}

	result, err := s.worksheetRepo.List(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list worksheets")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ListWorksheetsOutput{
		Worksheets: result.Items,
		TotalCount: result.Total,
	}, nil
}

// ListByDepartment returns a department's worksheets.
func (s *WorksheetService) ListByDepartment(ctx context.Context, dept domain.Department) ([]*domain.SampleWorksheet, error) {
	if !dept.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDepartment, dept)
	}
	return s.worksheetRepo.ListByDepartment(ctx, dept)
}
