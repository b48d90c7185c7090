package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/repository"
)

// Map-backed mock repositories for service tests.

type mockUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	t := at.UTC()
	u.LastLogin = &t
	return nil
}

func (m *mockUserRepo) UpdateLastPing(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	t := at.UTC()
	u.LastPing = &t
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*domain.User
	for _, u := range m.users {
		items = append(items, u)
	}
	return &repository.ListResult[domain.User]{
		Items: items, Total: int64(len(items)), Offset: opts.Offset, Limit: opts.Limit,
	}, nil
}

func (m *mockUserRepo) ListOnline(ctx context.Context, cutoff time.Time) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.users {
		if u.LastPing != nil && u.LastPing.After(cutoff) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type mockTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.AuthToken
}

func newMockTokenRepo() *mockTokenRepo {
	return &mockTokenRepo{tokens: make(map[string]*domain.AuthToken)}
}

func (m *mockTokenRepo) Create(ctx context.Context, token *domain.AuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token.Key]; ok {
		return repository.ErrDuplicate
	}
	m.tokens[token.Key] = token
	return nil
}

func (m *mockTokenRepo) GetByKey(ctx context.Context, key string) (*domain.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[key]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return t, nil
}

func (m *mockTokenRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID {
			return t, nil
		}
	}
	return nil, domain.ErrTokenNotFound
}

func (m *mockTokenRepo) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, key)
			return nil
		}
	}
	return domain.ErrTokenNotFound
}

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.UserSession
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*domain.UserSession)}
}

func (m *mockSessionRepo) Create(ctx context.Context, session *domain.UserSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.SessionKey] = session
	return nil
}

func (m *mockSessionRepo) GetByKey(ctx context.Context, sessionKey string) (*domain.UserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (m *mockSessionRepo) ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.UserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.UserSession
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *domain.UserSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.SessionKey]; !ok {
		return domain.ErrSessionNotFound
	}
	m.sessions[session.SessionKey] = session
	return nil
}

func (m *mockSessionRepo) DeactivateByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

type mockGroupRepo struct {
	mu     sync.Mutex
	groups map[uuid.UUID]*domain.Group
}

func newMockGroupRepo() *mockGroupRepo {
	return &mockGroupRepo{groups: make(map[uuid.UUID]*domain.Group)}
}

func (m *mockGroupRepo) Create(ctx context.Context, group *domain.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[group.ID] = group
	return nil
}

func (m *mockGroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	return g, nil
}

func (m *mockGroupRepo) Update(ctx context.Context, group *domain.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[group.ID]; !ok {
		return domain.ErrGroupNotFound
	}
	m.groups[group.ID] = group
	return nil
}

func (m *mockGroupRepo) UpdateKeys(ctx context.Context, id uuid.UUID, privatePEM, publicPEM string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return domain.ErrGroupNotFound
	}
	g.PrivateKey = privatePEM
	g.PublicKey = publicPEM
	return nil
}

func (m *mockGroupRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return domain.ErrGroupNotFound
	}
	delete(m.groups, id)
	return nil
}

func (m *mockGroupRepo) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.Group], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*domain.Group
	for _, g := range m.groups {
		items = append(items, g)
	}
	return &repository.ListResult[domain.Group]{
		Items: items, Total: int64(len(items)), Offset: opts.Offset, Limit: opts.Limit,
	}, nil
}

func (m *mockGroupRepo) ListByMember(ctx context.Context, userID uuid.UUID) ([]*domain.Group, error) {
	return nil, nil
}

type membershipKey struct {
	groupID uuid.UUID
	userID  uuid.UUID
}

type mockMembershipRepo struct {
	mu      sync.Mutex
	members map[membershipKey]*domain.GroupMembership
}

func newMockMembershipRepo() *mockMembershipRepo {
	return &mockMembershipRepo{members: make(map[membershipKey]*domain.GroupMembership)}
}

func (m *mockMembershipRepo) Create(ctx context.Context, mem *domain.GroupMembership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := membershipKey{mem.GroupID, mem.UserID}
	if _, ok := m.members[key]; ok {
		return domain.ErrAlreadyMember
	}
	m.members[key] = mem
	return nil
}

func (m *mockMembershipRepo) Get(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupMembership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[membershipKey{groupID, userID}]
	if !ok {
		return nil, domain.ErrNotMember
	}
	return mem, nil
}

func (m *mockMembershipRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*domain.GroupMembership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.GroupMembership
	for key, mem := range m.members {
		if key.groupID == groupID {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m *mockMembershipRepo) CountByGroup(ctx context.Context, groupID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key := range m.members {
		if key.groupID == groupID {
			n++
		}
	}
	return n, nil
}

func (m *mockMembershipRepo) Update(ctx context.Context, mem *domain.GroupMembership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := membershipKey{mem.GroupID, mem.UserID}
	if _, ok := m.members[key]; !ok {
		return domain.ErrNotMember
	}
	m.members[key] = mem
	return nil
}

func (m *mockMembershipRepo) Delete(ctx context.Context, groupID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := membershipKey{groupID, userID}
	if _, ok := m.members[key]; !ok {
		return domain.ErrNotMember
	}
	delete(m.members, key)
	return nil
}

func (m *mockMembershipRepo) Exists(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.members[membershipKey{groupID, userID}]
	return ok, nil
}

type mockInvitationRepo struct {
	mu          sync.Mutex
	invitations map[uuid.UUID]*domain.GroupInvitation
}

func newMockInvitationRepo() *mockInvitationRepo {
	return &mockInvitationRepo{invitations: make(map[uuid.UUID]*domain.GroupInvitation)}
}

func (m *mockInvitationRepo) Create(ctx context.Context, inv *domain.GroupInvitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.invitations {
		if existing.GroupID == inv.GroupID && existing.InvitedUserID == inv.InvitedUserID &&
			existing.Status == domain.InvitationPending {
			return domain.ErrInvitationExists
		}
	}
	m.invitations[inv.ID] = inv
	return nil
}

func (m *mockInvitationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.GroupInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	return inv, nil
}

func (m *mockInvitationRepo) GetPending(ctx context.Context, groupID, userID uuid.UUID) (*domain.GroupInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.GroupID == groupID && inv.InvitedUserID == userID && inv.Status == domain.InvitationPending {
			return inv, nil
		}
	}
	return nil, domain.ErrInvitationNotFound
}

func (m *mockInvitationRepo) ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*domain.GroupInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.GroupInvitation
	for _, inv := range m.invitations {
		if inv.InvitedUserID == userID && inv.Status == domain.InvitationPending {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *mockInvitationRepo) Update(ctx context.Context, inv *domain.GroupInvitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invitations[inv.ID]; !ok {
		return domain.ErrInvitationNotFound
	}
	m.invitations[inv.ID] = inv
	return nil
}

func (m *mockInvitationRepo) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, inv := range m.invitations {
		if inv.Status == domain.InvitationPending && now.After(inv.ExpiresAt) {
			inv.MarkResponded(domain.InvitationExpired, now)
			n++
		}
	}
	return n, nil
}

type mockClientRepo struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*domain.Client
	deps    map[uuid.UUID]map[string]int64
}

func newMockClientRepo() *mockClientRepo {
	return &mockClientRepo{
		clients: make(map[uuid.UUID]*domain.Client),
		deps:    make(map[uuid.UUID]map[string]int64),
	}
}

func (m *mockClientRepo) Create(ctx context.Context, client *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.ID] = client
	return nil
}

func (m *mockClientRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	return c, nil
}

func (m *mockClientRepo) Update(ctx context.Context, client *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[client.ID]; !ok {
		return domain.ErrClientNotFound
	}
	m.clients[client.ID] = client
	return nil
}

func (m *mockClientRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return domain.ErrClientNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *mockClientRepo) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.Client], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*domain.Client
	for _, c := range m.clients {
		items = append(items, c)
	}
	return &repository.ListResult[domain.Client]{
		Items: items, Total: int64(len(items)), Offset: opts.Offset, Limit: opts.Limit,
	}, nil
}

func (m *mockClientRepo) CountDependencies(ctx context.Context, id uuid.UUID) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts, ok := m.deps[id]
	if !ok {
		return map[string]int64{}, nil
	}
	return counts, nil
}

type mockProjectRepo struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*domain.Project
}

func newMockProjectRepo() *mockProjectRepo {
	return &mockProjectRepo{projects: make(map[uuid.UUID]*domain.Project)}
}

func (m *mockProjectRepo) Create(ctx context.Context, project *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return p, nil
}

func (m *mockProjectRepo) Update(ctx context.Context, project *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[project.ID]; !ok {
		return domain.ErrProjectNotFound
	}
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return domain.ErrProjectNotFound
	}
	delete(m.projects, id)
	return nil
}

func (m *mockProjectRepo) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Project
	for _, p := range m.projects {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockBatchRepo struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*domain.SampleBatch
}

func newMockBatchRepo() *mockBatchRepo {
	return &mockBatchRepo{batches: make(map[uuid.UUID]*domain.SampleBatch)}
}

func (m *mockBatchRepo) Create(ctx context.Context, batch *domain.SampleBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.BatchNumber == batch.BatchNumber {
			return domain.ErrDuplicateIdentifier
		}
	}
	m.batches[batch.ID] = batch
	return nil
}

func (m *mockBatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SampleBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	return b, nil
}

func (m *mockBatchRepo) GetByNumber(ctx context.Context, batchNumber string) (*domain.SampleBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches {
		if b.BatchNumber == batchNumber {
			return b, nil
		}
	}
	return nil, domain.ErrBatchNotFound
}

func (m *mockBatchRepo) Update(ctx context.Context, batch *domain.SampleBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[batch.ID]; !ok {
		return domain.ErrBatchNotFound
	}
	m.batches[batch.ID] = batch
	return nil
}

func (m *mockBatchRepo) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.SampleBatch], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*domain.SampleBatch
	for _, b := range m.batches {
		items = append(items, b)
	}
	return &repository.ListResult[domain.SampleBatch]{
		Items: items, Total: int64(len(items)), Offset: opts.Offset, Limit: opts.Limit,
	}, nil
}

func (m *mockBatchRepo) ListOverdue(ctx context.Context, now time.Time) ([]*domain.SampleBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.SampleBatch
	for _, b := range m.batches {
		if b.IsOverdue(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBatchRepo) CountByClient(ctx context.Context, clientID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, b := range m.batches {
		if b.ClientID == clientID {
			n++
		}
	}
	return n, nil
}

func (m *mockBatchRepo) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, b := range m.batches {
		if b.ProjectID != nil && *b.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}

type mockSampleRepo struct {
	mu      sync.Mutex
	samples map[uuid.UUID]*domain.Sample
}

func newMockSampleRepo() *mockSampleRepo {
	return &mockSampleRepo{samples: make(map[uuid.UUID]*domain.Sample)}
}

func (m *mockSampleRepo) Create(ctx context.Context, sample *domain.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.samples {
		if s.SampleID == sample.SampleID || s.Barcode == sample.Barcode {
			return domain.ErrDuplicateIdentifier
		}
	}
	m.samples[sample.ID] = sample
	return nil
}

func (m *mockSampleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.samples[id]
	if !ok {
		return nil, domain.ErrSampleNotFound
	}
	return s, nil
}

func (m *mockSampleRepo) GetBySampleID(ctx context.Context, sampleID string) (*domain.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.samples {
		if s.SampleID == sampleID {
			return s, nil
		}
	}
	return nil, domain.ErrSampleNotFound
}

func (m *mockSampleRepo) GetByBarcode(ctx context.Context, barcode string) (*domain.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.samples {
		if s.Barcode == barcode {
			return s, nil
		}
	}
	return nil, domain.ErrSampleNotFound
}

func (m *mockSampleRepo) Update(ctx context.Context, sample *domain.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.samples[sample.ID]; !ok {
		return domain.ErrSampleNotFound
	}
	m.samples[sample.ID] = sample
	return nil
}

func (m *mockSampleRepo) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.Sample], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*domain.Sample
	for _, s := range m.samples {
		items = append(items, s)
	}
	return &repository.ListResult[domain.Sample]{
		Items: items, Total: int64(len(items)), Offset: opts.Offset, Limit: opts.Limit,
	}, nil
}

func (m *mockSampleRepo) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*domain.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Sample
	for _, s := range m.samples {
		if s.BatchID == batchID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSampleRepo) ListDiscardable(ctx context.Context, now time.Time) ([]*domain.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Sample
	for _, s := range m.samples {
		if s.Status != domain.SampleDiscarded && s.IsOverdue(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSampleRepo) CountByClient(ctx context.Context, clientID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.samples {
		if s.ClientID == clientID {
			n++
		}
	}
	return n, nil
}

func (m *mockSampleRepo) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.samples {
		if s.ProjectID != nil && *s.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}

func (m *mockSampleRepo) CountByBatchAndStatus(ctx context.Context, batchID uuid.UUID) (map[domain.SampleStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.SampleStatus]int64)
	for _, s := range m.samples {
		if s.BatchID == batchID {
			counts[s.Status]++
		}
	}
	return counts, nil
}

type mockWorksheetRepo struct {
	mu     sync.Mutex
	sheets map[uuid.UUID]*domain.SampleWorksheet
}

func newMockWorksheetRepo() *mockWorksheetRepo {
	return &mockWorksheetRepo{sheets: make(map[uuid.UUID]*domain.SampleWorksheet)}
}

func (m *mockWorksheetRepo) Create(ctx context.Context, ws *domain.SampleWorksheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sheets {
		if existing.WorksheetNumber == ws.WorksheetNumber {
			return domain.ErrDuplicateIdentifier
		}
	}
	m.sheets[ws.ID] = ws
	return nil
}

func (m *mockWorksheetRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SampleWorksheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.sheets[id]
	if !ok {
		return nil, domain.ErrWorksheetNotFound
	}
	return ws, nil
}

func (m *mockWorksheetRepo) GetByNumber(ctx context.Context, worksheetNumber string) (*domain.SampleWorksheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ws := range m.sheets {
		if ws.WorksheetNumber == worksheetNumber {
			return ws, nil
		}
	}
	return nil, domain.ErrWorksheetNotFound
}

func (m *mockWorksheetRepo) Update(ctx context.Context, ws *domain.SampleWorksheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[ws.ID]; !ok {
		return domain.ErrWorksheetNotFound
	}
	m.sheets[ws.ID] = ws
	return nil
}

func (m *mockWorksheetRepo) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.SampleWorksheet], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*domain.SampleWorksheet
	for _, ws := range m.sheets {
		items = append(items, ws)
	}
	return &repository.ListResult[domain.SampleWorksheet]{
		Items: items, Total: int64(len(items)), Offset: opts.Offset, Limit: opts.Limit,
	}, nil
}

func (m *mockWorksheetRepo) ListByDepartment(ctx context.Context, dept domain.Department) ([]*domain.SampleWorksheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.SampleWorksheet
	for _, ws := range m.sheets {
		if ws.Department == dept {
			out = append(out, ws)
		}
	}
	return out, nil
}

// mockSequenceRepo issues in-memory sequence values.
type mockSequenceRepo struct {
	mu     sync.Mutex
	values map[string]int64
}

func newMockSequenceRepo() *mockSequenceRepo {
	return &mockSequenceRepo{values: make(map[string]int64)}
}

func (m *mockSequenceRepo) Next(ctx context.Context, kind string, year int, scope string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s/%d/%s", kind, year, scope)
	m.values[key]++
	return m.values[key], nil
}
