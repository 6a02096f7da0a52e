package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/realitycheck/backend/internal/domain"
)

const (
	breadEAN = "4006381333931"
	oatEAN   = "5901234123457"
	milkEAN  = "96385074"
)

// fakeProductBackend is an httptest stand-in for the external product backend
type fakeProductBackend struct {
	*httptest.Server

	mu        sync.Mutex
	catalogue []domain.Product
	favorites map[string][]string
	prefs     map[string]domain.Preferences
}

func newFakeProductBackend(t *testing.T) *fakeProductBackend {
	f := &fakeProductBackend{
		catalogue: []domain.Product{
			{ID: 1, Name: "Test Bread", EAN: breadEAN, Brand: "Acme", Ingredients: "wheat flour, water, salt",
				NutritionalInfo: domain.NutritionalInfo{Calories: 250, Sugar: 3},
				Claims:          []domain.ClaimAnalysis{{Claim: "Whole grain"}}},
			{ID: 2, Name: "Oat Milk Barista", EAN: oatEAN, Brand: "Oatly", Ingredients: "water, oats, rapeseed oil"},
			{ID: 3, Name: "Whole Milk", EAN: milkEAN, Brand: "Dairy Co", Ingredients: "milk"},
		},
		favorites: make(map[string][]string),
		prefs:     make(map[string]domain.Preferences),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/{$}", f.search)
	mux.HandleFunc("GET /products/{ean}", f.product)
	mux.HandleFunc("POST /products/analyze", f.analyze)
	mux.HandleFunc("POST /token", f.token)
	mux.HandleFunc("POST /users/{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "created"})
	})
	mux.HandleFunc("PUT /users/me/preferences", f.withUser(f.updatePreferences))
	mux.HandleFunc("POST /users/me/favorites/{ean}", f.withUser(f.addFavorite))
	mux.HandleFunc("GET /users/me/favorites", f.withUser(f.listFavorites))

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeProductBackend) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("search")
	switch query {
	case "slow":
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
		writeJSON(w, http.StatusOK, []domain.Product{})
		return
	case "fail":
		http.Error(w, "database down", http.StatusInternalServerError)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	results := []domain.Product{}
	for _, p := range f.catalogue {
		if query == "" || strings.Contains(strings.ToLower(p.Name), query) {
			results = append(results, p)
		}
	}
	writeJSON(w, http.StatusOK, results)
}

func (f *fakeProductBackend) find(ean string) (domain.Product, bool) {
	for _, p := range f.catalogue {
		if p.EAN == ean {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (f *fakeProductBackend) product(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.find(r.PathValue("ean"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Product not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (f *fakeProductBackend) analyze(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EAN  string `json:"ean"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, domain.BackendAnalysis{
		ID:           9,
		ProductID:    1,
		RealityCheck: "Claims about " + body.Name + " are overstated",
	})
}

func (f *fakeProductBackend) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("username") == "" {
		http.Error(w, "bad form", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": "backend-" + r.PostForm.Get("username"),
		"token_type":   "bearer",
	})
}

// withUser resolves the backend user from the bearer token issued by /token
func (f *fakeProductBackend) withUser(next func(w http.ResponseWriter, r *http.Request, user string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer backend-")
		if !ok || user == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		next(w, r, user)
	}
}

func (f *fakeProductBackend) updatePreferences(w http.ResponseWriter, r *http.Request, user string) {
	var prefs domain.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		http.Error(w, "bad body", http.StatusUnprocessableEntity)
		return
	}
	f.mu.Lock()
	f.prefs[user] = prefs
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, prefs)
}

func (f *fakeProductBackend) addFavorite(w http.ResponseWriter, r *http.Request, user string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.find(r.PathValue("ean")); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Product not found"})
		return
	}
	f.favorites[user] = append(f.favorites[user], r.PathValue("ean"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (f *fakeProductBackend) listFavorites(w http.ResponseWriter, r *http.Request, user string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	products := []domain.Product{}
	for _, ean := range f.favorites[user] {
		if p, ok := f.find(ean); ok {
			products = append(products, p)
		}
	}
	writeJSON(w, http.StatusOK, products)
}

func (f *fakeProductBackend) preferencesOf(user string) (domain.Preferences, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prefs[user]
	return p, ok
}
