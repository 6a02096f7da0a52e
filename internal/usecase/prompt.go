package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/realitycheck/backend/internal/domain"
)

const analysisPromptTemplate = `Analyze this food product and provide insights:

Product: %s
Brand: %s
Ingredients: %s
Nutritional Information: %s
%s
Please provide the following in JSON format:
1. Analysis of each claim (if any) with a reality check and percentage match
2. Health insights based on ingredients and nutritional values
3. Recommended consumption frequency
4. Potential side effects or concerns

Format your response as valid JSON with the following structure:
{
  "claimsAnalysis": [
    {
      "claim": "claim text",
      "reality": "reality assessment",
      "match": percentage number
    }
  ],
  "healthInsights": ["insight 1", "insight 2"],
  "consumptionRecommendation": "recommendation text",
  "sideEffects": ["side effect 1", "side effect 2"]
}
`

// buildAnalysisPrompt renders the product into the instruction sent to the model.
// The output is deterministic for a given request.
func buildAnalysisPrompt(req *domain.ProductAnalysisRequest) string {
	nutrition := "{}"
	if len(req.NutritionalInfo) > 0 {
		// encoding/json sorts map keys
		if data, err := json.Marshal(req.NutritionalInfo); err == nil {
			nutrition = string(data)
		}
	}

	claims := ""
	if len(req.Claims) > 0 {
		claims = "Claims: " + strings.Join(req.Claims, ", ") + "\n"
	}

	return fmt.Sprintf(analysisPromptTemplate, req.ProductName, req.Brand, req.Ingredients, nutrition, claims)
}
