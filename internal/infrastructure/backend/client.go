package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/realitycheck/backend/internal/domain"
	"github.com/realitycheck/backend/internal/logging"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type bearerKey struct{}

// WithBearer returns a context whose backend calls carry the given bearer token
func WithBearer(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerFrom(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// Client handles communication with the product backend API.
// It neither retries nor caches; callers decide how to handle failures.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	log         logrus.FieldLogger
}

// NewClient creates a new product backend client
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond int, log logrus.FieldLogger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 20
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		rateLimiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		log:         logging.Component(log, "backend"),
	}
}

// tokenResponse is the body returned by POST /token
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// SearchProducts lists products whose name matches query, 10 per page
func (c *Client) SearchProducts(ctx context.Context, query string, page int) ([]domain.Product, error) {
	q := domain.SearchQuery{Query: query, Page: page}

	params := url.Values{}
	if query != "" {
		params.Set("search", query)
	}
	params.Set("skip", strconv.Itoa(q.Skip()))
	params.Set("limit", strconv.Itoa(domain.ProductPageSize))

	var products []domain.Product
	if err := c.do(ctx, http.MethodGet, "/products/?"+params.Encode(), nil, "", &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// GetProduct fetches a single product by EAN
func (c *Client) GetProduct(ctx context.Context, ean string) (*domain.Product, error) {
	var product domain.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(ean), nil, "", &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// AnalyzeProduct asks the backend for its own reality check of a product
func (c *Client) AnalyzeProduct(ctx context.Context, ean, name string) (*domain.BackendAnalysis, error) {
	body, err := json.Marshal(map[string]string{"ean": ean, "name": name})
	if err != nil {
		return nil, err
	}

	var analysis domain.BackendAnalysis
	if err := c.do(ctx, http.MethodPost, "/products/analyze", bytes.NewReader(body), "application/json", &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// Login exchanges credentials for a backend access token (OAuth2 password form)
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var token tokenResponse
	err := c.do(ctx, http.MethodPost, "/token", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &token)
	if err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", domain.ErrBackendFailure)
	}
	return token.AccessToken, nil
}

// Register creates an account on the backend
func (c *Client) Register(ctx context.Context, email, password, fullName string) error {
	body, err := json.Marshal(map[string]string{
		"email":     email,
		"password":  password,
		"full_name": fullName,
	})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/users/", bytes.NewReader(body), "application/json", nil)
}

// UpdatePreferences stores the caller's allergies and health conditions
func (c *Client) UpdatePreferences(ctx context.Context, prefs domain.Preferences) error {
	if prefs.Allergies == nil {
		prefs.Allergies = []string{}
	}
	if prefs.HealthConditions == nil {
		prefs.HealthConditions = []string{}
	}
	body, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/users/me/preferences", bytes.NewReader(body), "application/json", nil)
}

// AddFavorite adds a product to the caller's favorites
func (c *Client) AddFavorite(ctx context.Context, ean string) error {
	return c.do(ctx, http.MethodPost, "/users/me/favorites/"+url.PathEscape(ean), nil, "", nil)
}

// Favorites lists the caller's favorite products
func (c *Client) Favorites(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.do(ctx, http.MethodGet, "/users/me/favorites", nil, "", &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// do executes one request and decodes a JSON response into out (when non-nil)
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "RealityCheck/1.0")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := bearerFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{"method": method, "path": path}).Warn("backend request error")
		return fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode,
		"latency": time.Since(start).String(),
	}).Debug("backend request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrProductNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d, body: %s", domain.ErrBackendFailure, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrBackendFailure, err)
	}
	return nil
}
