package gemini

import (
	"context"
	"time"
)

// mockAnalysis mirrors what the model returns for a whole wheat bread
const mockAnalysis = "Here is the analysis you asked for:\n```json\n" + `{
  "claimsAnalysis": [
    {
      "claim": "100% Whole Wheat",
      "reality": "The product contains whole wheat flour as the primary ingredient, but also includes additives and preservatives.",
      "match": 85
    },
    {
      "claim": "High fiber",
      "reality": "The product contains moderate fiber content typical for whole wheat bread, but not exceptionally high.",
      "match": 70
    }
  ],
  "healthInsights": [
    "Whole wheat bread provides complex carbohydrates and dietary fiber.",
    "Contains moderate amounts of protein which supports muscle maintenance.",
    "Contains added sugar which contributes to the overall carbohydrate content."
  ],
  "consumptionRecommendation": "Can be consumed daily as part of a balanced diet. Limit to 2-3 slices per day due to sodium content.",
  "sideEffects": [
    "May cause digestive discomfort in individuals with gluten sensitivity.",
    "The sodium content may be a concern for those monitoring salt intake."
  ]
}` + "\n```\n"

// MockGenerator is a TextGenerator that answers every prompt with a canned analysis.
// It stands in for Gemini in local development when no API key is available.
type MockGenerator struct {
	delay time.Duration
}

// NewMockGenerator returns a mock generator that waits delay before answering
func NewMockGenerator(delay time.Duration) *MockGenerator {
	return &MockGenerator{delay: delay}
}

// GenerateText returns the canned analysis
func (m *MockGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.delay):
		}
	}
	return mockAnalysis, nil
}
