package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Values are stored JSON-encoded; Get returns the encoded bytes.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// TextGenerator sends a prompt to a generative model and returns its free-form text
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ProductBackend defines the operations consumed from the external product backend
type ProductBackend interface {
	SearchProducts(ctx context.Context, query string, page int) ([]Product, error)
	GetProduct(ctx context.Context, ean string) (*Product, error)
	AnalyzeProduct(ctx context.Context, ean, name string) (*BackendAnalysis, error)
}

// BackendAccounts defines the account operations of the product backend
type BackendAccounts interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password, fullName string) error
	UpdatePreferences(ctx context.Context, prefs Preferences) error
	AddFavorite(ctx context.Context, ean string) error
	Favorites(ctx context.Context) ([]Product, error)
}

// UserRepository persists user accounts
type UserRepository interface {
	Create(ctx context.Context, user *StoredUser) error
	FindByEmail(ctx context.Context, email string) (*StoredUser, error)
	FindByID(ctx context.Context, id string) (*StoredUser, error)
	Delete(ctx context.Context, id string) error
}
