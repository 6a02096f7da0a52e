package domain

import "time"

// ProductPageSize is the fixed page size used against the product backend
const ProductPageSize = 10

// Product is a packaged food product as stored by the product backend
type Product struct {
	ID                        int             `json:"id"`
	Name                      string          `json:"name"`
	EAN                       string          `json:"ean"`
	Ingredients               string          `json:"ingredients"`
	NutritionalInfo           NutritionalInfo `json:"nutritional_info"`
	About                     string          `json:"about"`
	Brand                     string          `json:"brand"`
	Category                  string          `json:"category"`
	ImageURL                  string          `json:"image_url,omitempty"`
	Claims                    []ClaimAnalysis `json:"claims,omitempty"`
	ConsumptionRecommendation string          `json:"consumption_recommendation,omitempty"`
	SideEffects               []string        `json:"side_effects,omitempty"`
	Allergens                 []string        `json:"allergens,omitempty"`
}

// NutritionalInfo holds per-serving nutrition values reported by the manufacturer
type NutritionalInfo struct {
	Calories float64 `json:"calories"`
	Sugar    float64 `json:"sugar"`
	Sodium   float64 `json:"sodium"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// AsMap returns the nutrition values keyed by nutrient name
func (n NutritionalInfo) AsMap() map[string]float64 {
	return map[string]float64{
		"calories": n.Calories,
		"sugar":    n.Sugar,
		"sodium":   n.Sodium,
		"protein":  n.Protein,
		"fat":      n.Fat,
		"carbs":    n.Carbs,
	}
}

// BackendAnalysis is the product backend's own stored reality check
type BackendAnalysis struct {
	ID                 int       `json:"id"`
	ProductID          int       `json:"product_id"`
	RealityCheck       string    `json:"reality_check"`
	ConsumptionAdvice  string    `json:"consumption_advice"`
	HealthImplications string    `json:"health_implications"`
	CreatedAt          time.Time `json:"created_at"`
}

// SearchQuery is a paginated product search. Page is 1-based.
type SearchQuery struct {
	Query string `json:"query" form:"search"`
	Page  int    `json:"page" form:"page"`
}

// Skip returns the backend offset for the query's page
func (q SearchQuery) Skip() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * ProductPageSize
}

// Preferences are the dietary preferences stored for a user by the backend
type Preferences struct {
	Allergies        []string `json:"allergies"`
	HealthConditions []string `json:"health_conditions"`
}

// ToAnalysisRequest maps a stored product into the AI adapter's input
func (p *Product) ToAnalysisRequest() *ProductAnalysisRequest {
	var claims []string
	for _, c := range p.Claims {
		if c.Claim != "" {
			claims = append(claims, c.Claim)
		}
	}
	return &ProductAnalysisRequest{
		ProductName:     p.Name,
		Brand:           p.Brand,
		Ingredients:     p.Ingredients,
		NutritionalInfo: p.NutritionalInfo.AsMap(),
		Claims:          claims,
		ImageURL:        p.ImageURL,
	}
}
