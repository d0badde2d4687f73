package mock

import (
	"context"
	"sync"

	"github.com/usergate/usergate/src/models"
	"github.com/usergate/usergate/src/repositories"
)

// UserRepository is an in-memory implementation of repositories.UserRepository.
// Function stubs can override individual methods in tests.
type UserRepository struct {
	mu    sync.Mutex
	users map[string]*models.ExternalUser // keyed by email

	CreateFunc      func(ctx context.Context, user *models.ExternalUser) error
	EmailExistsFunc func(ctx context.Context, email string) (bool, error)

	// Call tracking
	Calls map[string]int
}

// NewUserRepository creates an empty in-memory user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]*models.ExternalUser),
		Calls: make(map[string]int),
	}
}

func (m *UserRepository) track(name string) {
	m.Calls[name]++
}

func (m *UserRepository) Create(ctx context.Context, user *models.ExternalUser) error {
	if m.CreateFunc != nil {
		m.mu.Lock()
		m.track("Create")
		m.mu.Unlock()
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("Create")
	if _, ok := m.users[user.Email]; ok {
		return repositories.ErrDuplicateEmail
	}
	cp := *user
	m.users[user.Email] = &cp
	return nil
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*models.ExternalUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("GetByEmail")
	if user, ok := m.users[email]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, repositories.ErrUserNotFound
}

func (m *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.EmailExistsFunc != nil {
		m.mu.Lock()
		m.track("EmailExists")
		m.mu.Unlock()
		return m.EmailExistsFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("EmailExists")
	_, ok := m.users[email]
	return ok, nil
}

func (m *UserRepository) List(ctx context.Context) ([]*models.ExternalUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("List")
	users := make([]*models.ExternalUser, 0, len(m.users))
	for _, user := range m.users {
		cp := *user
		users = append(users, &cp)
	}
	return users, nil
}

// Ensure UserRepository implements the interface
var _ repositories.UserRepository = (*UserRepository)(nil)
