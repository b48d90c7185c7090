package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/repository"
)

// statsCacheTTL bounds staleness of cached client statistics.
const statsCacheTTL = time.Minute

// ClientService handles clients and their projects.
type ClientService struct {
	clientRepo  repository.ClientRepository
	projectRepo repository.ProjectRepository
	batchRepo   repository.BatchRepository
	sampleRepo  repository.SampleRepository
	cache       repository.Cache
	logger      zerolog.Logger

	cacheKeys repository.CacheKey
}

// NewClientService creates a new ClientService.
func NewClientService(
	clientRepo repository.ClientRepository,
	projectRepo repository.ProjectRepository,
	batchRepo repository.BatchRepository,
	sampleRepo repository.SampleRepository,
	cache repository.Cache,
	logger zerolog.Logger,
) *ClientService {
	return &ClientService{
		clientRepo:  clientRepo,
		projectRepo: projectRepo,
		batchRepo:   batchRepo,
		sampleRepo:  sampleRepo,
		cache:       cache,
		logger:      logger.With().Str("service", "client").Logger(),
	}
}

// CreateClientInput contains the data needed to register a client.
type CreateClientInput struct {
	Name            string
	ContactPerson   string
	Email           string
	Phone           string
	Address         string
	Type            domain.ClientType
	DefaultSLAHours int
	BillingContact  string
	BillingEmail    string
	CreatedBy       uuid.UUID
}

// CreateClient registers a new client.
func (s *ClientService) CreateClient(ctx context.Context, input CreateClientInput) (*domain.Client, error) {
	if input.Name == "" || len(input.Name) > 255 {
		return nil, ErrInvalidClientName
	}
	if input.Type != "" && !input.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidClientType, input.Type)
	}
	if input.DefaultSLAHours < 0 {
		return nil, ErrInvalidSLA
	}

	client := domain.NewClient(input.Name, input.Email, input.CreatedBy)
	client.ContactPerson = input.ContactPerson
	client.Phone = input.Phone
	client.Address = input.Address
	client.BillingContact = input.BillingContact
	client.BillingEmail = input.BillingEmail
	if input.Type != "" {
		client.Type = input.Type
	}
	if input.DefaultSLAHours > 0 {
		client.DefaultSLAHours = input.DefaultSLAHours
	}

	if err := s.clientRepo.Create(ctx, client); err != nil {
		s.logger.Error().Err(err).Str("name", input.Name).Msg("failed to create client")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("client_id", client.ID.String()).
		Str("name", client.Name).
		Str("type", string(client.Type)).
		Int("default_sla_hours", client.DefaultSLAHours).
		Msg("client created")

	return client, nil
}

// GetClient retrieves a client by ID.
func (s *ClientService) GetClient(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	return s.clientRepo.GetByID(ctx, id)
}

// UpdateClientInput contains updatable client fields.
type UpdateClientInput struct {
	ClientID        uuid.UUID
	Name            string
	ContactPerson   string
	Email           string
	Phone           string
	Address         string
	Type            domain.ClientType
	DefaultSLAHours int
	BillingContact  string
	BillingEmail    string
}

// UpdateClient updates a client's details.
func (s *ClientService) UpdateClient(ctx context.Context, input UpdateClientInput) (*domain.Client, error) {
	if input.Name == "" || len(input.Name) > 255 {
		return nil, ErrInvalidClientName
	}
	if input.Type != "" && !input.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidClientType, input.Type)
	}

	client, err := s.clientRepo.GetByID(ctx, input.ClientID)
	if err != nil {
		return nil, err
	}

	client.Name = input.Name
	client.ContactPerson = input.ContactPerson
	client.Email = input.Email
	client.Phone = input.Phone
	client.Address = input.Address
	client.BillingContact = input.BillingContact
	client.BillingEmail = input.BillingEmail
	if input.Type != "" {
		client.Type = input.Type
	}
	if input.DefaultSLAHours > 0 {
		client.DefaultSLAHours = input.DefaultSLAHours
	}
	client.UpdatedAt = time.Now().UTC()

	if err := s.clientRepo.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.invalidateStats(ctx, client.ID)
	return client, nil
}

// ToggleActive flips a client's active flag. Deactivation is the safe
// alternative to deletion for clients with existing work.
func (s *ClientService) ToggleActive(ctx context.Context, clientID uuid.UUID) (*domain.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	client.IsActive = !client.IsActive
	client.UpdatedAt = time.Now().UTC()

	if err := s.clientRepo.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("client_id", client.ID.String()).
		Bool("is_active", client.IsActive).
		Msg("client active status toggled")

	return client, nil
}

// DeleteClient deletes a client. The delete is blocked while projects,
// batches or samples reference the client; the returned DependencyError
// carries per-kind counts so the caller can deactivate instead.
func (s *ClientService) DeleteClient(ctx context.Context, clientID uuid.UUID) error {
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		return err
	}

	counts, err := s.clientRepo.CountDependencies(ctx, clientID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	depErr := &domain.DependencyError{Resource: client.Name, Counts: counts}
	if depErr.Total() > 0 {
		return depErr
	}

	if err := s.clientRepo.Delete(ctx, clientID); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.invalidateStats(ctx, clientID)
	s.logger.Info().Str("client_id", clientID.String()).Str("name", client.Name).Msg("client deleted")
	return nil
}

// ListClientsInput contains pagination options for listing clients.
type ListClientsInput struct {
	Limit  int
	Offset int
}

// ListClientsOutput contains the result of listing clients.
type ListClientsOutput struct {
	Clients    []*domain.Client
	TotalCount int64
}

// ListClients returns clients with pagination.
func (s *ClientService) ListClients(ctx context.Context, input ListClientsInput) (*ListClientsOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}

	result, err := s.clientRepo.List(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list clients")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ListClientsOutput{
		Clients:    result.Items,
		TotalCount: result.Total,
	}, nil
}

// ClientStats summarizes a client's laboratory activity.
type ClientStats struct {
	ClientID uuid.UUID `json:"client_id"`
	Projects int64     `json:"projects"`
	Batches  int64     `json:"batches"`
	Samples  int64     `json:"samples"`
}

// Stats returns aggregate counters for a client, served from cache when
// fresh.
func (s *ClientService) Stats(ctx context.Context, clientID uuid.UUID) (*ClientStats, error) {
	cacheKey := s.cacheKeys.ClientStats(clientID)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
		var stats ClientStats
		if err := json.Unmarshal(cached, &stats); err == nil {
			return &stats, nil
		}
	}

	if _, err := s.clientRepo.GetByID(ctx, clientID); err != nil {
		return nil, err
	}

	projects, err := s.projectRepo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	batches, err := s.batchRepo.CountByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	samples, err := s.sampleRepo.CountByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	stats := &ClientStats{
		ClientID: clientID,
		Projects: int64(len(projects)),
		Batches:  batches,
		Samples:  samples,
	}

	if encoded, err := json.Marshal(stats); err == nil {
		if err := s.cache.Set(ctx, cacheKey, encoded, statsCacheTTL); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache client stats")
		}
	}
	return stats, nil
}

func (s *ClientService) invalidateStats(ctx context.Context, clientID uuid.UUID) {
	if err := s.cache.Delete(ctx, s.cacheKeys.ClientStats(clientID)); err != nil {
		s.logger.Warn().Err(err).Str("client_id", clientID.String()).Msg("failed to invalidate stats cache")
	}
}

// CreateProjectInput contains the data needed to create a project.
type CreateProjectInput struct {
	Name        string
	Description string
	ClientID    uuid.UUID
	CreatedBy   uuid.UUID
}

// CreateProject creates a project under a client.
func (s *ClientService) CreateProject(ctx context.Context, input CreateProjectInput) (*domain.Project, error) {
	if input.Name == "" || len(input.Name) > 255 {
		return nil, ErrInvalidClientName
	}

	client, err := s.clientRepo.GetByID(ctx, input.ClientID)
	if err != nil {
		return nil, err
	}

	project := domain.NewProject(input.Name, client.ID, input.CreatedBy)
	project.Description = input.Description

	if err := s.projectRepo.Create(ctx, project); err != nil {
		s.logger.Error().Err(err).Str("name", input.Name).Msg("failed to create project")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.invalidateStats(ctx, client.ID)
	s.logger.Info().
		Str("project_id", project.ID.String()).
		Str("client_id", client.ID.String()).
		Str("name", project.Name).
		Msg("project created")

	return project, nil
}

// GetProject retrieves a project by ID.
func (s *ClientService) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	return s.projectRepo.GetByID(ctx, id)
}

// SetProjectStatus applies a status change, keeping the completion
// timestamp coupled to COMPLETED.
func (s *ClientService) SetProjectStatus(ctx context.Context, projectID uuid.UUID, status domain.ProjectStatus) (*domain.Project, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProjectStatus, status)
	}

	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	project.SetStatus(status, time.Now().UTC())
	project.UpdatedAt = time.Now().UTC()

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("project_id", project.ID.String()).
		Str("status", string(status)).
		Msg("project status updated")

	return project, nil
}

// DeleteProject deletes a project. Blocked while batches or samples
// reference it.
func (s *ClientService) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return err
	}

	batches, err := s.batchRepo.CountByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	samples, err := s.sampleRepo.CountByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if batches > 0 || samples > 0 {
		return &domain.DependencyError{
			Resource: project.Name,
			Counts:   map[string]int64{"batches": batches, "samples": samples},
		}
	}

	if err := s.projectRepo.Delete(ctx, projectID); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.invalidateStats(ctx, project.ClientID)
	s.logger.Info().Str("project_id", projectID.String()).Str("name", project.Name).Msg("project deleted")
	return nil
}

// ListProjects returns a client's projects.
func (s *ClientService) ListProjects(ctx context.Context, clientID uuid.UUID) ([]*domain.Project, error) {
	if _, err := s.clientRepo.GetByID(ctx, clientID); err != nil {
		return nil, err
	}
	return s.projectRepo.ListByClient(ctx, clientID)
}
