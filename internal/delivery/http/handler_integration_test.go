package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/realitycheck/backend/config"
	"github.com/realitycheck/backend/internal/domain"
	"github.com/realitycheck/backend/internal/infrastructure/backend"
	"github.com/realitycheck/backend/internal/infrastructure/cache"
	"github.com/realitycheck/backend/internal/infrastructure/userstore"
	"github.com/realitycheck/backend/internal/logging"
	"github.com/realitycheck/backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubGenerator returns canned model text and counts calls
type stubGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (g *stubGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.text, g.err
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type testEnv struct {
	router  *gin.Engine
	backend *fakeProductBackend
}

// newTestEnv wires the real services against a fake product backend.
// A nil generator means no AI credential is configured.
func newTestEnv(t *testing.T, generator domain.TextGenerator) *testEnv {
	t.Helper()

	log := logging.Discard()
	fake := newFakeProductBackend(t)
	client := backend.NewClient(fake.URL, 5*time.Second, 1000, log)

	memCache := cache.NewMemoryCache()
	t.Cleanup(func() { _ = memCache.Close() })

	analysis := usecase.NewAnalysisService(generator, log)
	products := usecase.NewProductService(client, memCache, analysis, usecase.ProductServiceConfig{CacheTTL: time.Minute}, log)
	sessions := usecase.NewSessionService(userstore.NewMemoryStore(), memCache, client, usecase.SessionConfig{
		Secret:     "test-secret",
		TTL:        time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, log)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}

	handler := NewHandler(Dependencies{
		Analysis:       analysis,
		Products:       products,
		Sessions:       sessions,
		Accounts:       client,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, log)

	return &testEnv{router: SetupRouter(cfg, handler, log), backend: fake}
}

func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, w, &body)
	return body["error"]
}

const breadRequest = `{"productName":"Test Bread","brand":"Acme","ingredients":"wheat flour, water, salt","nutritionalInfo":{"calories":250}}`

func TestHealthCheckEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("returns healthy status", func(t *testing.T) {
		w := env.do(http.MethodGet, "/health", "", "")
		require.Equal(t, http.StatusOK, w.Code)

		var response map[string]string
		decode(t, w, &response)
		assert.Equal(t, "healthy", response["status"])
		assert.Equal(t, "realitycheck-backend", response["service"])
		assert.NotEmpty(t, strings.TrimSpace(response["version"]))
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			w := env.do(method, "/health", "", "")
			assert.Equal(t, http.StatusNotFound, w.Code, method)
		}
	})
}

func TestAnalyzeEndpoint(t *testing.T) {
	t.Run("missing fields return 400 without calling the provider", func(t *testing.T) {
		gen := &stubGenerator{text: "{}"}
		env := newTestEnv(t, gen)

		for _, body := range []string{
			`{"brand":"Acme","ingredients":"wheat"}`,
			`{"productName":"Test Bread"}`,
			`{"productName":"  ","ingredients":"wheat"}`,
			``,
		} {
			w := env.do(http.MethodPost, "/api/analyze", body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
			assert.Equal(t, "Missing required product information", errorBody(t, w))
		}
		assert.Equal(t, 0, gen.callCount())
	})

	t.Run("undecodable body is reported as invalid", func(t *testing.T) {
		gen := &stubGenerator{text: "{}"}
		env := newTestEnv(t, gen)

		for _, body := range []string{
			`not json`,
			`{"productName":"Test Bread","ingredients":"wheat","nutritionalInfo":{"sugar":"5g"}}`,
			`{"productName":"Test Bread","ingredients":"wheat","claims":"x"}`,
		} {
			w := env.do(http.MethodPost, "/api/analyze", body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
			assert.Equal(t, "Invalid request body", errorBody(t, w), body)
		}
		assert.Equal(t, 0, gen.callCount())
	})

	t.Run("missing credential returns 500", func(t *testing.T) {
		env := newTestEnv(t, nil)

		w := env.do(http.MethodPost, "/api/analyze", breadRequest, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "AI provider is not configured", errorBody(t, w))
	})

	t.Run("validation happens before the credential check", func(t *testing.T) {
		env := newTestEnv(t, nil)

		w := env.do(http.MethodPost, "/api/analyze", `{"productName":"Test Bread"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("fenced JSON from the provider is returned verbatim", func(t *testing.T) {
		gen := &stubGenerator{text: "```json\n" +
			`{"claimsAnalysis":[],"healthInsights":["ok"],"consumptionRecommendation":"moderate","sideEffects":[]}` +
			"\n```"}
		env := newTestEnv(t, gen)

		w := env.do(http.MethodPost, "/api/analyze", breadRequest, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"claimsAnalysis":[],"healthInsights":["ok"],"consumptionRecommendation":"moderate","sideEffects":[]}`, w.Body.String())
	})

	t.Run("unparseable provider text returns the default analysis", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{text: "I cannot analyze this product."})

		w := env.do(http.MethodPost, "/api/analyze", breadRequest, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"claimsAnalysis":[],"healthInsights":["Could not analyze product with AI"],"consumptionRecommendation":"Please consult nutritional guidelines","sideEffects":[]}`, w.Body.String())
	})

	t.Run("provider failure returns 500 without details", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{err: errors.New("quota exceeded for key sk-123")})

		w := env.do(http.MethodPost, "/api/analyze", breadRequest, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Failed to analyze product", errorBody(t, w))
		assert.NotContains(t, w.Body.String(), "sk-123")
	})
}

func TestAnalyzeImageEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("returns the sample analysis without a credential", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/analyze-image", `{"imageUrl":"https://img.example/bread.jpg","productName":"Test Bread"}`, "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp domain.ProductAnalysisResponse
		decode(t, w, &resp)
		require.Len(t, resp.ClaimsAnalysis, 1)
		assert.Equal(t, 60, resp.ClaimsAnalysis[0].Match)
		assert.Equal(t, []string{"Contains some vitamins", "High in sugar"}, resp.HealthInsights)
	})

	t.Run("missing fields return 400", func(t *testing.T) {
		for _, body := range []string{`{"productName":"Test Bread"}`, `{"imageUrl":"x"}`, ``} {
			w := env.do(http.MethodPost, "/api/analyze-image", body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
			assert.Equal(t, "Missing image URL or product name", errorBody(t, w))
		}

		w := env.do(http.MethodPost, "/api/analyze-image", `[]`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", errorBody(t, w))
	})
}

func TestProductEndpoints(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{text: `{"claimsAnalysis":[{"claim":"Whole grain","reality":"Refined flour","match":20}],"healthInsights":[],"consumptionRecommendation":"Occasionally","sideEffects":[]}`})

	t.Run("search re-ranks by name match", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/products?search=Milk&page=1", "", "")
		require.Equal(t, http.StatusOK, w.Code)

		var products []domain.Product
		decode(t, w, &products)
		require.Len(t, products, 2)
		assert.Equal(t, "Whole Milk", products[0].Name)
		assert.Equal(t, "Oat Milk Barista", products[1].Name)
	})

	t.Run("search with no hits returns an empty list", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/products?search=caviar", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("backend failure returns 502", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/products?search=fail", "", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("invalid page returns 400", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/products?search=milk&page=abc", "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get by EAN", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/products/"+breadEAN, "", "")
		require.Equal(t, http.StatusOK, w.Code)

		var product domain.Product
		decode(t, w, &product)
		assert.Equal(t, "Test Bread", product.Name)
	})

	t.Run("invalid EAN returns 400", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/products/4006381333932", "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid EAN barcode", errorBody(t, w))
	})

	t.Run("unknown EAN returns 404", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/products/036000291452", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("scan resolves a barcode", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/products/scan/"+milkEAN, "", "")
		require.Equal(t, http.StatusOK, w.Code)

		var product domain.Product
		decode(t, w, &product)
		assert.Equal(t, "Whole Milk", product.Name)

		w = env.do(http.MethodGet, "/api/products/scan/hello", "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("backend analysis", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/products/analyze", `{"ean":"`+breadEAN+`","name":"Test Bread"}`, "")
		require.Equal(t, http.StatusOK, w.Code)

		var analysis domain.BackendAnalysis
		decode(t, w, &analysis)
		assert.Equal(t, "Claims about Test Bread are overstated", analysis.RealityCheck)

		w = env.do(http.MethodPost, "/api/products/analyze", `{"ean":"`+breadEAN+`"}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("AI analysis of a stored product", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/products/"+breadEAN+"/ai-analysis", "", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp domain.ProductAnalysisResponse
		decode(t, w, &resp)
		assert.Equal(t, "Occasionally", resp.ConsumptionRecommendation)
		require.Len(t, resp.ClaimsAnalysis, 1)
		assert.Equal(t, 20, resp.ClaimsAnalysis[0].Match)
	})
}

func TestProductAIAnalysisWithoutCredential(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/products/"+breadEAN+"/ai-analysis", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "AI provider is not configured", errorBody(t, w))
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/auth/signup", `{"name":"Bob","email":"Bob@Example.com","password":"hunter22"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var session domain.Session
	decode(t, w, &session)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, domain.SessionAuthenticated, session.State)
	assert.Equal(t, "bob@example.com", session.User.Email)
	assert.NotContains(t, w.Body.String(), "backend-", "backend token must not leak")
	assert.NotContains(t, w.Body.String(), "hunter22")

	t.Run("duplicate signup conflicts", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/auth/signup", `{"name":"Robert","email":"bob@example.com","password":"x"}`, "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid signup", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/auth/signup", `{"name":"","email":"nope","password":""}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("login", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/auth/login", `{"email":"bob@example.com","password":"hunter22"}`, "")
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(http.MethodPost, "/api/auth/login", `{"email":"bob@example.com","password":"wrong"}`, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid email or password", errorBody(t, w))
	})

	t.Run("current session", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/auth/me", "", session.Token)
		require.Equal(t, http.StatusOK, w.Code)

		var current domain.Session
		decode(t, w, &current)
		assert.Equal(t, domain.SessionAuthenticated, current.State)
		assert.Equal(t, session.User.ID, current.User.ID)

		w = env.do(http.MethodGet, "/api/auth/me", "", "")
		decode(t, w, &current)
		assert.Equal(t, domain.SessionAnonymous, current.State)
	})

	t.Run("preferences are proxied with the backend token", func(t *testing.T) {
		w := env.do(http.MethodPut, "/api/users/me/preferences", `{"allergies":["peanuts"]}`, session.Token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		prefs, ok := env.backend.preferencesOf("bob@example.com")
		require.True(t, ok)
		assert.Equal(t, []string{"peanuts"}, prefs.Allergies)
		assert.Equal(t, []string{}, prefs.HealthConditions)
	})

	t.Run("favorites", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/users/me/favorites/"+breadEAN, "", session.Token)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = env.do(http.MethodPost, "/api/users/me/favorites/123", "", session.Token)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = env.do(http.MethodGet, "/api/users/me/favorites", "", session.Token)
		require.Equal(t, http.StatusOK, w.Code)
		var favorites []domain.Product
		decode(t, w, &favorites)
		require.Len(t, favorites, 1)
		assert.Equal(t, breadEAN, favorites[0].EAN)
	})

	t.Run("user routes require a session", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/users/me/favorites", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = env.do(http.MethodGet, "/api/users/me/favorites", "", "forged.token.value")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("logout revokes the token", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/auth/logout", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = env.do(http.MethodPost, "/api/auth/logout", "", session.Token)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = env.do(http.MethodGet, "/api/users/me/favorites", "", session.Token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = env.do(http.MethodPost, "/api/auth/logout", "", session.Token)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestCORSIntegration(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
