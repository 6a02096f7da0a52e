package domain

// ProductAnalysisRequest is the product data sent to the AI analysis adapter.
// ProductName and Ingredients are required by the analyze route.
type ProductAnalysisRequest struct {
	ProductName     string             `json:"productName"`
	Brand           string             `json:"brand"`
	Ingredients     string             `json:"ingredients"`
	NutritionalInfo map[string]float64 `json:"nutritionalInfo"`
	Claims          []string           `json:"claims,omitempty"`
	ImageURL        string             `json:"imageUrl,omitempty"`
}

// ImageAnalysisRequest asks for an analysis based on a product photo
type ImageAnalysisRequest struct {
	ImageURL    string `json:"imageUrl"`
	ProductName string `json:"productName"`
}

// ClaimAnalysis matches one manufacturer claim against its assessed reality.
// Match is a 0-100 score, taken as-is from the model.
type ClaimAnalysis struct {
	Claim   string `json:"claim"`
	Reality string `json:"reality"`
	Match   int    `json:"match"`
}

// ProductAnalysisResponse is the normalized analysis result. Every field is
// always populated so callers never see a partially structured response.
type ProductAnalysisResponse struct {
	ClaimsAnalysis            []ClaimAnalysis `json:"claimsAnalysis"`
	HealthInsights            []string        `json:"healthInsights"`
	ConsumptionRecommendation string          `json:"consumptionRecommendation"`
	SideEffects               []string        `json:"sideEffects"`
}

const (
	// DefaultRecommendation fills a parsed response that carries no recommendation
	DefaultRecommendation = "No specific recommendation"

	// FallbackInsight is the single insight of the degraded response
	FallbackInsight = "Could not analyze product with AI"

	// FallbackRecommendation is the recommendation of the degraded response
	FallbackRecommendation = "Please consult nutritional guidelines"
)

// DefaultAnalysisResponse is returned when the model answered but its text
// could not be turned into a structured result.
func DefaultAnalysisResponse() *ProductAnalysisResponse {
	return &ProductAnalysisResponse{
		ClaimsAnalysis:            []ClaimAnalysis{},
		HealthInsights:            []string{FallbackInsight},
		ConsumptionRecommendation: FallbackRecommendation,
		SideEffects:               []string{},
	}
}
