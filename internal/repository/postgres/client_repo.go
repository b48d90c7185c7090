package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/repository"
)

// clientRepository implements repository.ClientRepository for PostgreSQL.
type clientRepository struct {
	db *DB
}

// NewClientRepository creates a new PostgreSQL client repository.
func NewClientRepository(db *DB) repository.ClientRepository {
	return &clientRepository{db: db}
}

const clientColumns = `id, name, contact_person, email, phone, address, client_type,
	is_active, default_sla_hours, billing_contact, billing_email,
	created_by, created_at, updated_at`

// Create creates a new client.
func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	query := `
		INSERT INTO clients (` + clientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		client.ID.String(),
		client.Name,
		client.ContactPerson,
		client.Email,
		client.Phone,
		client.Address,
		string(client.Type),
		client.IsActive,
		client.DefaultSLAHours,
		client.BillingContact,
		client.BillingEmail,
		client.CreatedBy.String(),
		client.CreatedAt,
		client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func scanClient(scan func(dest ...any) error) (*domain.Client, error) {
	client := &domain.Client{}
	var id, clientType, createdBy string

	err := scan(
		&id,
		&client.Name,
		&client.ContactPerson,
		&client.Email,
		&client.Phone,
		&client.Address,
		&clientType,
		&client.IsActive,
		&client.DefaultSLAHours,
		&client.BillingContact,
		&client.BillingEmail,
		&createdBy,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	client.ID = parseUUID(id)
	client.Type = domain.ClientType(clientType)
	client.CreatedBy = parseUUID(createdBy)
	return client, nil
}

// GetByID retrieves a client by ID.
func (r *clientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	row := r.db.Pool.QueryRow(ctx, query, id.String())
	client, err := scanClient(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

// Update updates an existing client.
func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	client.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE clients
		SET name = $1, contact_person = $2, email = $3, phone = $4, address = $5,
		    client_type = $6, is_active = $7, default_sla_hours = $8,
		    billing_contact = $9, billing_email = $10, updated_at = $11
		WHERE id = $12
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		client.Name,
		client.ContactPerson,
		client.Email,
		client.Phone,
		client.Address,
		string(client.Type),
		client.IsActive,
		client.DefaultSLAHours,
		client.BillingContact,
		client.BillingEmail,
		client.UpdatedAt,
		client.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}

// Delete deletes a client by ID.
func (r *clientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id.String())
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: client has dependent records", err)
		}
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClientNotFound
	}
	return nil
}

// List returns clients with pagination.
func (r *clientRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.Client], error) {
	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count clients: %w", err)
	}

	query := `
		SELECT ` + clientColumns + `
		FROM clients
		ORDER BY name
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*domain.Client
	for rows.Next() {
		client, err := scanClient(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return &repository.ListResult[domain.Client]{
		Items:  clients,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// CountDependencies returns the number of projects, batches and samples
// that reference the client.
func (r *clientRepository) CountDependencies(ctx context.Context, id uuid.UUID) (map[string]int64, error) {
	counts := make(map[string]int64, 3)
	queries := map[string]string{
		"projects": `SELECT COUNT(*) FROM projects WHERE client_id = $1`,
		"batches":  `SELECT COUNT(*) FROM sample_batches WHERE client_id = $1`,
		"samples":  `SELECT COUNT(*) FROM samples WHERE client_id = $1`,
	}

	for name, query := range queries {
		var count int64
		if err := r.db.Pool.QueryRow(ctx, query, id.String()).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		counts[name] = count
	}
	return counts, nil
}

var _ repository.ClientRepository = (*clientRepository)(nil)

// projectRepository implements repository.ProjectRepository for PostgreSQL.
type projectRepository struct {
	db *DB
}

// NewProjectRepository creates a new PostgreSQL project repository.
func NewProjectRepository(db *DB) repository.ProjectRepository {
	return &projectRepository{db: db}
}

const projectColumns = `id, name, description, client_id, status, completed_at, created_by, created_at, updated_at`

// Create creates a new project.
func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		project.ID.String(),
		project.Name,
		project.Description,
		project.ClientID.String(),
		string(project.Status),
		project.CompletedAt,
		project.CreatedBy.String(),
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func scanProject(scan func(dest ...any) error) (*domain.Project, error) {
	project := &domain.Project{}
	var id, clientID, status, createdBy string

	err := scan(
		&id,
		&project.Name,
		&project.Description,
		&clientID,
		&status,
		&project.CompletedAt,
		&createdBy,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	project.ID = parseUUID(id)
	project.ClientID = parseUUID(clientID)
	project.Status = domain.ProjectStatus(status)
	project.CreatedBy = parseUUID(createdBy)
	return project, nil
}

// GetByID retrieves a project by ID.
func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	row := r.db.Pool.QueryRow(ctx, query, id.String())
	project, err := scanProject(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// Update updates an existing project.
func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	project.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE projects
		SET name = $1, description = $2, status = $3, completed_at = $4, updated_at = $5
		WHERE id = $6
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		project.Name,
		project.Description,
		string(project.Status),
		project.CompletedAt,
		project.UpdatedAt,
		project.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

// Delete deletes a project by ID.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

// ListByClient returns a client's projects.
func (r *projectRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domain.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE client_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, clientID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		project, err := scanProject(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

var _ repository.ProjectRepository = (*projectRepository)(nil)
