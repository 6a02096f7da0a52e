package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/realitycheck/backend/internal/domain"
	"github.com/realitycheck/backend/internal/logging"
	"github.com/sirupsen/logrus"
)

// ProductServiceConfig holds configuration for the product service
type ProductServiceConfig struct {
	CacheTTL            time.Duration
	EnableFuzzyMatching bool
}

// ProductService is the product catalogue facade: search, lookup by EAN,
// barcode scans and both kinds of analysis.
type ProductService struct {
	backend      domain.ProductBackend
	cache        domain.CacheRepository
	analyzer     *AnalysisService
	preprocessor *QueryPreprocessor
	matcher      *MatchingService
	cacheTTL     time.Duration
	log          logrus.FieldLogger
}

// NewProductService creates a new product service with dependencies
func NewProductService(
	backend domain.ProductBackend,
	cache domain.CacheRepository,
	analyzer *AnalysisService,
	config ProductServiceConfig,
	log logrus.FieldLogger,
) *ProductService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	return &ProductService{
		backend:      backend,
		cache:        cache,
		analyzer:     analyzer,
		preprocessor: NewQueryPreprocessor(log),
		matcher:      NewMatchingService(MatchConfig{EnableFuzzyMatching: config.EnableFuzzyMatching}, log),
		cacheTTL:     cacheTTL,
		log:          logging.Component(log, "products"),
	}
}

// Search runs a paginated product search. The query is cleaned before it is
// sent and the page is re-ranked by how well each name matches what was typed.
func (s *ProductService) Search(ctx context.Context, query domain.SearchQuery) ([]domain.Product, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	cleaned := s.preprocessor.Clean(query.Query)

	products, err := s.backend.SearchProducts(ctx, cleaned, query.Page)
	if err != nil {
		return nil, err
	}

	ranked, err := s.matcher.Rank(ctx, query.Query, products)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"query":   cleaned,
		"page":    query.Page,
		"results": len(ranked),
	}).Debug("product search")
	return ranked, nil
}

// GetByEAN fetches one product, reading through the cache
func (s *ProductService) GetByEAN(ctx context.Context, ean string) (*domain.Product, error) {
	ean = domain.NormalizeEAN(ean)
	if !domain.ValidEAN(ean) {
		return nil, domain.ErrInvalidEAN
	}

	cacheKey := productCacheKey(ean)
	var cached domain.Product
	if s.getFromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	product, err := s.backend.GetProduct(ctx, ean)
	if err != nil {
		return nil, err
	}

	s.setInCache(ctx, cacheKey, product)
	return product, nil
}

// Scan resolves the text decoded from a barcode into a product. Anything that
// is not a valid EAN yields ErrInvalidEAN.
func (s *ProductService) Scan(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidEAN
	}

	product, err := s.GetByEAN(ctx, code)
	if err != nil {
		return nil, err
	}

	s.log.WithField("ean", product.EAN).Info("barcode scanned")
	return product, nil
}

// Analyze asks the product backend for its stored reality check
func (s *ProductService) Analyze(ctx context.Context, ean, name string) (*domain.BackendAnalysis, error) {
	ean = domain.NormalizeEAN(ean)
	if !domain.ValidEAN(ean) {
		return nil, domain.ErrInvalidEAN
	}
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrInvalidRequest
	}

	return s.backend.AnalyzeProduct(ctx, ean, name)
}

// AnalyzeWithAI runs the AI analysis on a stored product. Successful
// analyses are cached per EAN; degraded default responses are not.
func (s *ProductService) AnalyzeWithAI(ctx context.Context, ean string) (*domain.ProductAnalysisResponse, error) {
	if !s.analyzer.Configured() {
		return nil, domain.ErrMissingCredential
	}

	product, err := s.GetByEAN(ctx, ean)
	if err != nil {
		return nil, err
	}

	cacheKey := analysisCacheKey(product.EAN)
	var cached domain.ProductAnalysisResponse
	if s.getFromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	req := product.ToAnalysisRequest()
	if strings.TrimSpace(req.Ingredients) == "" {
		return nil, fmt.Errorf("%w: product %s has no ingredients", domain.ErrInvalidRequest, product.EAN)
	}

	resp, degraded, err := s.analyzer.analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	if !degraded {
		s.setInCache(ctx, cacheKey, resp)
	}
	return resp, nil
}

func productCacheKey(ean string) string {
	return "product:" + ean
}

func analysisCacheKey(ean string) string {
	return "ai-analysis:" + ean
}

// getFromCache decodes a cached value into dst. Cache failures count as misses.
func (s *ProductService) getFromCache(ctx context.Context, key string, dst interface{}) bool {
	if s.cache == nil {
		return false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.log.WithError(err).WithField("key", key).Warn("cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("discarding undecodable cache entry")
		return false
	}
	return true
}

func (s *ProductService) setInCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}
