package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/realitycheck/backend/internal/domain"
)

// MockCacheRepository is an in-memory domain.CacheRepository that records calls
type MockCacheRepository struct {
	mu       sync.Mutex
	data     map[string][]byte
	getError error
	setError error
	sets     int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string][]byte)}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setError != nil {
		return m.setError
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = data
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// MockGenerator returns a canned text or error and records prompts
type MockGenerator struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

func (m *MockGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *MockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// MockProductBackend is a scripted domain.ProductBackend
type MockProductBackend struct {
	mu          sync.Mutex
	products    map[string]*domain.Product
	searchItems []domain.Product
	searchError error
	getError    error
	analysis    *domain.BackendAnalysis
	lastQuery   string
	lastPage    int
	getCalls    int
}

func NewMockProductBackend() *MockProductBackend {
	return &MockProductBackend{products: make(map[string]*domain.Product)}
}

func (m *MockProductBackend) SearchProducts(ctx context.Context, query string, page int) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery, m.lastPage = query, page
	if m.searchError != nil {
		return nil, m.searchError
	}
	return append([]domain.Product(nil), m.searchItems...), nil
}

func (m *MockProductBackend) GetProduct(ctx context.Context, ean string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getError != nil {
		return nil, m.getError
	}
	p, ok := m.products[ean]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockProductBackend) AnalyzeProduct(ctx context.Context, ean, name string) (*domain.BackendAnalysis, error) {
	if m.analysis == nil {
		return nil, domain.ErrBackendFailure
	}
	return m.analysis, nil
}

// MockAccounts is a scripted domain.BackendAccounts
type MockAccounts struct {
	mu          sync.Mutex
	token       string
	loginError  error
	registerErr error
	registered  []string
}

func (m *MockAccounts) Login(ctx context.Context, email, password string) (string, error) {
	if m.loginError != nil {
		return "", m.loginError
	}
	return m.token, nil
}

func (m *MockAccounts) Register(ctx context.Context, email, password, fullName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, email)
	return m.registerErr
}

func (m *MockAccounts) UpdatePreferences(ctx context.Context, prefs domain.Preferences) error {
	return nil
}

func (m *MockAccounts) AddFavorite(ctx context.Context, ean string) error {
	return nil
}

func (m *MockAccounts) Favorites(ctx context.Context) ([]domain.Product, error) {
	return nil, nil
}
