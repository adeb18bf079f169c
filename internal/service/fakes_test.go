package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ngdi-portal/internal/audit"
	"ngdi-portal/internal/models"
	"ngdi-portal/internal/repository"
)

// fakeUserRepo is an in-memory UserRepository with the same uniqueness
// semantics as the Postgres implementation.
type fakeUserRepo struct {
	mu       sync.Mutex
	users    map[string]*models.User    // by id
	accounts map[string]*models.Account // by provider|provider_account_id
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:    make(map[string]*models.User),
		accounts: make(map[string]*models.Account),
	}
}

func (f *fakeUserRepo) CreateUser(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range f.users {
		if existing.Email == email {
			return &pq.Error{Code: "23505"}
		}
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.Email = email
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByEmail(email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range f.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) GetUserByID(id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) ListUsers(limit, offset int) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	users := make([]*models.User, 0, len(f.users))
	for _, user := range f.users {
		copied := *user
		users = append(users, &copied)
	}
	return users, nil
}

func (f *fakeUserRepo) UpdateRole(id, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Role = role
	return nil
}

func (f *fakeUserRepo) SetDisabled(id string, disabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Disabled = disabled
	return nil
}

func (f *fakeUserRepo) UpdateProfile(id string, name string, organization, department, phone, image *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Name = name
	if organization != nil {
		user.Organization = organization
	}
	if department != nil {
		user.Department = department
	}
	if phone != nil {
		user.Phone = phone
	}
	if image != nil {
		user.Image = image
	}
	return nil
}

func (f *fakeUserRepo) CountUsers() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeUserRepo) SyncExternalIdentity(identity models.ExternalIdentity) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(identity.Email))

	var user *models.User
	for _, existing := range f.users {
		if existing.Email == email {
			user = existing
			break
		}
	}

	if user == nil {
		user = &models.User{
			ID:        uuid.NewString(),
			Email:     email,
			Role:      models.RoleUser,
			CreatedAt: time.Now(),
		}
		f.users[user.ID] = user
	}

	user.Name = identity.Name
	if identity.Image != nil {
		user.Image = identity.Image
	}
	if identity.EmailVerified && user.EmailVerifiedAt == nil {
		now := time.Now().UTC()
		user.EmailVerifiedAt = &now
	}
	user.UpdatedAt = time.Now()

	key := identity.Provider + "|" + identity.ProviderAccountID
	account, ok := f.accounts[key]
	if !ok {
		account = &models.Account{
			ID:                uuid.NewString(),
			UserID:            user.ID,
			Provider:          identity.Provider,
			ProviderAccountID: identity.ProviderAccountID,
			CreatedAt:         time.Now(),
		}
		f.accounts[key] = account
	}
	token := identity.AccessToken
	account.AccessToken = &token
	account.UpdatedAt = time.Now()

	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetAccount(provider, providerAccountID string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	account, ok := f.accounts[provider+"|"+providerAccountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (f *fakeUserRepo) ListAccountsByUser(userID string) ([]*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	accounts := make([]*models.Account, 0)
	for _, account := range f.accounts {
		if account.UserID == userID {
			copied := *account
			accounts = append(accounts, &copied)
		}
	}
	return accounts, nil
}

// fakeMetadataRepo is an in-memory MetadataRepository.
type fakeMetadataRepo struct {
	mu      sync.Mutex
	records map[string]*models.MetadataRecord
}

func newFakeMetadataRepo() *fakeMetadataRepo {
	return &fakeMetadataRepo{records: make(map[string]*models.MetadataRecord)}
}

func (f *fakeMetadataRepo) Create(record *models.MetadataRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt

	stored := *record
	f.records[record.ID] = &stored
	return nil
}

func (f *fakeMetadataRepo) GetByID(id string) (*models.MetadataRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	record, ok := f.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (f *fakeMetadataRepo) Update(record *models.MetadataRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.records[record.ID]
	if !ok {
		return repository.ErrNotFound
	}
	record.OwnerID = existing.OwnerID
	record.Status = existing.Status
	record.ValidationStatus = existing.ValidationStatus
	record.UpdatedAt = time.Now()

	stored := *record
	f.records[record.ID] = &stored
	return nil
}

func (f *fakeMetadataRepo) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeMetadataRepo) Search(q models.MetadataSearch) (*models.MetadataPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := make([]*models.MetadataRecord, 0)
	for _, record := range f.records {
		if q.Status != "" && record.Status != q.Status {
			continue
		}
		if q.Organization != "" && record.Organization != q.Organization {
			continue
		}
		if q.DataType != "" && record.DataType != q.DataType {
			continue
		}
		if q.Query != "" && !strings.Contains(strings.ToLower(record.Title), strings.ToLower(q.Query)) {
			continue
		}
		copied := *record
		matched = append(matched, &copied)
	}

	return &models.MetadataPage{
		Records: matched,
		Total:   len(matched),
		Limit:   q.Limit,
		Offset:  q.Offset,
	}, nil
}

func (f *fakeMetadataRepo) UpdateStatus(id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	record, ok := f.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	record.Status = status
	return nil
}

func (f *fakeMetadataRepo) UpdateValidation(id, validationStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	record, ok := f.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	record.ValidationStatus = validationStatus
	return nil
}

// fakeOrgRepo is an in-memory OrganizationRepository.
type fakeOrgRepo struct {
	mu   sync.Mutex
	orgs map[string]*models.Organization
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{orgs: make(map[string]*models.Organization)}
}

func (f *fakeOrgRepo) Create(org *models.Organization) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.orgs[org.Name]; ok {
		return &pq.Error{Code: "23505"}
	}
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	org.CreatedAt = time.Now()

	stored := *org
	f.orgs[org.Name] = &stored
	return nil
}

func (f *fakeOrgRepo) GetByName(name string) (*models.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	org, ok := f.orgs[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *org
	return &copied, nil
}

func (f *fakeOrgRepo) List() ([]*models.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	orgs := make([]*models.Organization, 0, len(f.orgs))
	for _, org := range f.orgs {
		copied := *org
		orgs = append(orgs, &copied)
	}
	return orgs, nil
}

// recordingTrail captures audit events for assertions.
type recordingTrail struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingTrail) Record(_ context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingTrail) Recent(_ context.Context, n int64) ([]audit.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Event(nil), r.events...), nil
}

func (r *recordingTrail) byType(eventType string) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]audit.Event, 0)
	for _, event := range r.events {
		if event.EventType == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// recordingNotifier captures portal notifications.
type recordingNotifier struct {
	mu        sync.Mutex
	published []*models.MetadataRecord
	users     []*models.User
}

func (r *recordingNotifier) RecordPublished(record *models.MetadataRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, record)
}

func (r *recordingNotifier) UserRegistered(user *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, user)
}
