package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/drlab-io/drlab/internal/cache/memory"
	"github.com/drlab-io/drlab/internal/domain"
)

type clientFixture struct {
	svc         *ClientService
	clientRepo  *mockClientRepo
	projectRepo *mockProjectRepo
	batchRepo   *mockBatchRepo
	sampleRepo  *mockSampleRepo
}

func newClientFixture(t *testing.T) *clientFixture {
	t.Helper()
	clientRepo := newMockClientRepo()
	projectRepo := newMockProjectRepo()
	batchRepo := newMockBatchRepo()
	sampleRepo := newMockSampleRepo()
	cache := memory.NewCache()
	t.Cleanup(cache.Stop)

	return &clientFixture{
		svc:         NewClientService(clientRepo, projectRepo, batchRepo, sampleRepo, cache, zerolog.Nop()),
		clientRepo:  clientRepo,
		projectRepo: projectRepo,
		batchRepo:   batchRepo,
		sampleRepo:  sampleRepo,
	}
}

func TestClientServiceCreateClient(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	client, err := f.svc.CreateClient(ctx, CreateClientInput{
		Name:            "Nordic Foods AB",
		Email:           "lab@nordicfoods.example",
		Type:            domain.ClientContracted,
		DefaultSLAHours: 48,
	})
	require.NoError(t, err)
	require.Equal(t, domain.ClientContracted, client.Type)
	require.Equal(t, 48, client.DefaultSLAHours)
	require.True(t, client.IsActive)

	// SLA defaults when omitted.
	defaulted, err := f.svc.CreateClient(ctx, CreateClientInput{Name: "Walk-in"})
	require.NoError(t, err)
	require.Equal(t, domain.DefaultSLAHours, defaulted.DefaultSLAHours)
}

func TestClientServiceCreateClientValidation(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateClient(ctx, CreateClientInput{Name: ""})
	require.ErrorIs(t, err, ErrInvalidClientName)

	_, err = f.svc.CreateClient(ctx, CreateClientInput{Name: "x", Type: "UNKNOWN"})
	require.ErrorIs(t, err, ErrInvalidClientType)

	_, err = f.svc.CreateClient(ctx, CreateClientInput{Name: "x", DefaultSLAHours: -1})
	require.ErrorIs(t, err, ErrInvalidSLA)
}

func TestClientServiceDeleteBlockedByDependencies(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	client, err := f.svc.CreateClient(ctx, CreateClientInput{Name: "Busy Client"})
	require.NoError(t, err)

	f.clientRepo.deps[client.ID] = map[string]int64{"projects": 2, "batches": 5, "samples": 40}

	err = f.svc.DeleteClient(ctx, client.ID)
	var depErr *domain.DependencyError
	require.ErrorAs(t, err, &depErr)
	require.Equal(t, client.Name, depErr.Resource)
	require.Equal(t, int64(47), depErr.Total())

	// The client survives the blocked delete.
	_, err = f.svc.GetClient(ctx, client.ID)
	require.NoError(t, err)
}

func TestClientServiceDeleteWithoutDependencies(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	client, err := f.svc.CreateClient(ctx, CreateClientInput{Name: "Fresh Client"})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteClient(ctx, client.ID))

	_, err = f.svc.GetClient(ctx, client.ID)
	require.ErrorIs(t, err, domain.ErrClientNotFound)
}

func TestClientServiceToggleActive(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	client, err := f.svc.CreateClient(ctx, CreateClientInput{Name: "Toggler"})
	require.NoError(t, err)

	toggled, err := f.svc.ToggleActive(ctx, client.ID)
	require.NoError(t, err)
	require.False(t, toggled.IsActive)

	toggled, err = f.svc.ToggleActive(ctx, client.ID)
	require.NoError(t, err)
	require.True(t, toggled.IsActive)
}

func TestClientServiceStats(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	client, err := f.svc.CreateClient(ctx, CreateClientInput{Name: "Stats Client"})
	require.NoError(t, err)

	_, err = f.svc.CreateProject(ctx, CreateProjectInput{Name: "Q3 Audit", ClientID: client.ID})
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Projects)
	require.Equal(t, int64(0), stats.Batches)

	// Cached result is returned until invalidated.
	again, err := f.svc.Stats(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, stats.Projects, again.Projects)
}

func TestClientServiceProjects(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	client, err := f.svc.CreateClient(ctx, CreateClientInput{Name: "Projects Client"})
	require.NoError(t, err)

	project, err := f.svc.CreateProject(ctx, CreateProjectInput{
		Name:     "Shelf Life Study",
		ClientID: client.ID,
	})
	require.NoError(t, err)
	require.Equal(t, domain.ProjectActive, project.Status)

	// Unknown clients cannot own projects.
	_, err = f.svc.CreateProject(ctx, CreateProjectInput{Name: "Orphan", ClientID: uuid.New()})
	require.ErrorIs(t, err, domain.ErrClientNotFound)

	completed, err := f.svc.SetProjectStatus(ctx, project.ID, domain.ProjectCompleted)
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)

	_, err = f.svc.SetProjectStatus(ctx, project.ID, "PAUSED")
	require.ErrorIs(t, err, ErrInvalidProjectStatus)

	projects, err := f.svc.ListProjects(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
}

func TestClientServiceDeleteProjectBlocked(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	client, err := f.svc.CreateClient(ctx, CreateClientInput{Name: "Owner"})
	require.NoError(t, err)
	project, err := f.svc.CreateProject(ctx, CreateProjectInput{Name: "In Use", ClientID: client.ID})
	require.NoError(t, err)

	// A batch referencing the project blocks deletion.
	batch := domain.NewSampleBatch("B-2026-0001", client.ID, &project.ID, domain.DeptChemistry, 48, uuid.New(), time.Now())
	require.NoError(t, f.batchRepo.Create(ctx, batch))

	err = f.svc.DeleteProject(ctx, project.ID)
	var depErr *domain.DependencyError
	require.ErrorAs(t, err, &depErr)
	require.Equal(t, int64(1), depErr.Counts["batches"])

	// Errors from unknown projects pass through.
	err = f.svc.DeleteProject(ctx, uuid.New())
	require.True(t, errors.Is(err, domain.ErrProjectNotFound))
}
