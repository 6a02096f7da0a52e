package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/realitycheck/backend/internal/domain"
	"github.com/realitycheck/backend/internal/logging"
	"github.com/sirupsen/logrus"
)

// AnalysisService turns product data into a claims-vs-reality analysis using a
// generative model. Provider failures are returned as domain.ErrAnalysisFailed;
// unparseable model output degrades to domain.DefaultAnalysisResponse.
type AnalysisService struct {
	generator  domain.TextGenerator
	extractors []Extractor
	log        logrus.FieldLogger
}

// NewAnalysisService creates the analysis service. A nil generator means no
// AI credential is configured; Configured then reports false.
func NewAnalysisService(generator domain.TextGenerator, log logrus.FieldLogger) *AnalysisService {
	return &AnalysisService{
		generator:  generator,
		extractors: DefaultExtractors(),
		log:        logging.Component(log, "analysis"),
	}
}

// Configured reports whether a text generator is available
func (s *AnalysisService) Configured() bool {
	return s != nil && s.generator != nil
}

// Analyze runs the AI analysis for a product
func (s *AnalysisService) Analyze(ctx context.Context, req *domain.ProductAnalysisRequest) (*domain.ProductAnalysisResponse, error) {
	resp, _, err := s.analyze(ctx, req)
	return resp, err
}

// analyze also reports whether the response is the degraded default
func (s *AnalysisService) analyze(ctx context.Context, req *domain.ProductAnalysisRequest) (*domain.ProductAnalysisResponse, bool, error) {
	if req == nil || strings.TrimSpace(req.ProductName) == "" || strings.TrimSpace(req.Ingredients) == "" {
		return nil, false, domain.ErrInvalidRequest
	}
	if !s.Configured() {
		return nil, false, domain.ErrMissingCredential
	}

	log := s.log.WithField("product", req.ProductName)
	log.Info("starting product analysis")

	text, err := s.generator.GenerateText(ctx, buildAnalysisPrompt(req))
	if err != nil {
		log.WithError(err).Error("AI provider call failed")
		return nil, false, fmt.Errorf("%w: %v", domain.ErrAnalysisFailed, err)
	}

	payload, strategy := extractPayload(text, s.extractors)
	resp, err := parseAnalysis(payload)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"strategy": strategy,
			"raw":      truncate(text, 200),
		}).Warn("failed to parse AI response, using default analysis")
		return domain.DefaultAnalysisResponse(), true, nil
	}

	log.WithFields(logrus.Fields{
		"strategy": strategy,
		"claims":   len(resp.ClaimsAnalysis),
	}).Info("analysis completed")
	return resp, false, nil
}

// AnalyzeImage returns the analysis for a product photo. Image analysis is not
// backed by a model yet; every valid request gets the same sample analysis.
func (s *AnalysisService) AnalyzeImage(ctx context.Context, req *domain.ImageAnalysisRequest) (*domain.ProductAnalysisResponse, error) {
	if req == nil || strings.TrimSpace(req.ImageURL) == "" || strings.TrimSpace(req.ProductName) == "" {
		return nil, domain.ErrInvalidRequest
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAnalysisFailed, err)
	}

	s.log.WithFields(logrus.Fields{"product": req.ProductName, "image": req.ImageURL}).Info("image analysis requested")

	return &domain.ProductAnalysisResponse{
		ClaimsAnalysis: []domain.ClaimAnalysis{
			{Claim: "Healthy", Reality: "May not be as healthy as it seems", Match: 60},
		},
		HealthInsights:            []string{"Contains some vitamins", "High in sugar"},
		ConsumptionRecommendation: "Consume in moderation",
		SideEffects:               []string{"May cause sugar rush"},
	}, nil
}

// rawAnalysis mirrors the JSON the model is asked to produce.
// Pointer fields tell "missing" apart from "present but empty".
type rawAnalysis struct {
	ClaimsAnalysis            []rawClaim `json:"claimsAnalysis"`
	HealthInsights            []string   `json:"healthInsights"`
	ConsumptionRecommendation *string    `json:"consumptionRecommendation"`
	SideEffects               []string   `json:"sideEffects"`
}

type rawClaim struct {
	Claim   string          `json:"claim"`
	Reality string          `json:"reality"`
	Match   json.RawMessage `json:"match"`
}

var errNotAnObject = errors.New("payload is not a JSON object")

// parseAnalysis decodes a candidate payload into a fully populated response
func parseAnalysis(payload string) (*domain.ProductAnalysisResponse, error) {
	trimmed := bytes.TrimSpace([]byte(payload))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotAnObject
	}

	var raw rawAnalysis
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}

	resp := &domain.ProductAnalysisResponse{
		ClaimsAnalysis:            make([]domain.ClaimAnalysis, 0, len(raw.ClaimsAnalysis)),
		HealthInsights:            raw.HealthInsights,
		ConsumptionRecommendation: domain.DefaultRecommendation,
		SideEffects:               raw.SideEffects,
	}

	for _, c := range raw.ClaimsAnalysis {
		resp.ClaimsAnalysis = append(resp.ClaimsAnalysis, domain.ClaimAnalysis{
			Claim:   c.Claim,
			Reality: c.Reality,
			Match:   parseMatch(c.Match),
		})
	}
	if resp.HealthInsights == nil {
		resp.HealthInsights = []string{}
	}
	if resp.SideEffects == nil {
		resp.SideEffects = []string{}
	}
	if raw.ConsumptionRecommendation != nil && *raw.ConsumptionRecommendation != "" {
		resp.ConsumptionRecommendation = *raw.ConsumptionRecommendation
	}

	return resp, nil
}

// parseMatch accepts 85, 85.4 or "85%" and clamps to 0..100. Anything else is 0.
func parseMatch(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0
		}
	}

	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 100:
		return 100
	}
	return int(math.Round(f))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
