package usecase

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/realitycheck/backend/internal/domain"
	"github.com/realitycheck/backend/internal/logging"
	"github.com/sirupsen/logrus"
)

var punctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Token weights used for query coverage
const (
	weightFood        = 3.0
	weightDescriptive = 2.0
	weightDefault     = 1.0
	fuzzyWeightFactor = 0.8
)

// Score composition
const (
	brandMatchBonus     = 20.0
	substringMatchBonus = 10.0
	baseScoreMultiplier = 70.0
	maxScore            = 100.0
)

// foodTerms are the words that identify what a product is
var foodTerms = map[string]bool{
	"chicken": true, "beef": true, "pork": true, "fish": true, "salmon": true,
	"turkey": true, "tuna": true, "ham": true, "sausage": true, "egg": true, "eggs": true,
	"milk": true, "cheese": true, "yogurt": true, "yoghurt": true, "butter": true, "cream": true,
	"bread": true, "rice": true, "pasta": true, "cereal": true, "oats": true, "oat": true,
	"granola": true, "muesli": true, "flour": true, "noodles": true, "tortilla": true,
	"apple": true, "banana": true, "orange": true, "tomato": true, "potato": true,
	"strawberry": true, "berry": true, "beans": true, "corn": true, "nuts": true,
	"juice": true, "soda": true, "cola": true, "coffee": true, "tea": true, "water": true,
	"chips": true, "crisps": true, "crackers": true, "cookies": true, "biscuits": true,
	"chocolate": true, "candy": true, "cake": true, "bar": true, "popcorn": true,
	"ketchup": true, "sauce": true, "dressing": true, "syrup": true, "honey": true, "jam": true,
	"spread": true, "pizza": true, "soup": true, "salad": true, "drink": true,
}

// descriptiveTerms narrow a product down within its kind
var descriptiveTerms = map[string]bool{
	"whole": true, "skim": true, "reduced": true, "fat": true, "low": true,
	"organic": true, "fresh": true, "frozen": true, "dried": true, "roasted": true,
	"vanilla": true, "plain": true, "flavored": true, "classic": true, "sweet": true,
	"spicy": true, "lite": true, "light": true, "diet": true, "zero": true,
	"white": true, "brown": true, "wholegrain": true, "multigrain": true,
	"unsweetened": true, "salted": true, "unsalted": true, "protein": true,
	"fiber": true, "fibre": true, "gluten": true, "free": true, "vegan": true, "sugar": true,
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "with": true, "for": true, "by": true, "from": true,
	"oz": true, "fl": true, "lb": true, "ml": true, "kg": true, "pack": true, "ct": true,
	"size": true, "value": true, "each": true, "per": true, "serving": true, "new": true,
}

// MatchConfig configures result ranking
type MatchConfig struct {
	EnableFuzzyMatching bool
	FuzzyEditDistance   int
}

// MatchingService ranks backend search results against the user's query
type MatchingService struct {
	enableFuzzyMatching bool
	fuzzyEditDistance   int
	log                 logrus.FieldLogger
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig, log logrus.FieldLogger) *MatchingService {
	fuzzyDist := config.FuzzyEditDistance
	if fuzzyDist <= 0 {
		fuzzyDist = 1
	}

	return &MatchingService{
		enableFuzzyMatching: config.EnableFuzzyMatching,
		fuzzyEditDistance:   fuzzyDist,
		log:                 logging.Component(log, "matching"),
	}
}

type scoredProduct struct {
	product domain.Product
	score   float64
}

// Rank orders products by descending match score. The sort is stable, so
// products the backend returned first win ties. An empty query keeps backend order.
func (s *MatchingService) Rank(ctx context.Context, query string, products []domain.Product) ([]domain.Product, error) {
	ranked := make([]domain.Product, len(products))
	if strings.TrimSpace(query) == "" || len(products) < 2 {
		copy(ranked, products)
		return ranked, nil
	}

	scored := make([]scoredProduct, 0, len(products))
	for _, p := range products {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		scored = append(scored, scoredProduct{product: p, score: s.Score(query, p)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	for i, sp := range scored {
		ranked[i] = sp.product
	}

	s.log.WithFields(logrus.Fields{
		"query": query,
		"top":   scored[0].product.Name,
		"score": scored[0].score,
	}).Debug("search results ranked")
	return ranked, nil
}

// Score rates how well a product matches the query on a 0..100 scale.
// Weighted query-token coverage dominates, name coverage refines it, and a
// brand mention or a verbatim substring adds a bonus.
func (s *MatchingService) Score(query string, product domain.Product) float64 {
	queryTokens := tokenize(query)
	nameTokens := tokenize(product.Name)
	if len(queryTokens) == 0 || len(nameTokens) == 0 {
		return 0
	}

	nameSet := make(map[string]bool, len(nameTokens))
	for _, t := range nameTokens {
		nameSet[t] = true
	}

	var totalWeight, matchedWeight float64
	matchedName := make(map[string]bool)
	for _, qt := range queryTokens {
		w := tokenWeight(qt)
		totalWeight += w

		if nameSet[qt] {
			matchedWeight += w
			matchedName[qt] = true
			continue
		}
		if !s.enableFuzzyMatching {
			continue
		}
		for _, nt := range nameTokens {
			if fuzzyTokenMatch(qt, nt, s.fuzzyEditDistance) {
				matchedWeight += w * fuzzyWeightFactor
				matchedName[nt] = true
				break
			}
		}
	}

	queryCoverage := matchedWeight / totalWeight
	nameCoverage := float64(len(matchedName)) / float64(len(nameSet))
	score := (queryCoverage*0.75 + nameCoverage*0.25) * baseScoreMultiplier

	queryLower := strings.ToLower(strings.TrimSpace(query))
	nameLower := strings.ToLower(product.Name)

	if brand := strings.ToLower(strings.TrimSpace(product.Brand)); brand != "" && strings.Contains(queryLower, brand) {
		score += brandMatchBonus
	}
	if len(queryLower) > 3 && strings.Contains(nameLower, queryLower) {
		score += substringMatchBonus
	}

	if score > maxScore {
		score = maxScore
	}
	return score
}

func tokenWeight(token string) float64 {
	switch {
	case foodTerms[token]:
		return weightFood
	case descriptiveTerms[token]:
		return weightDescriptive
	default:
		return weightDefault
	}
}

// tokenize splits a string into lowercase tokens, dropping punctuation,
// stop words, single characters and pure numbers.
func tokenize(s string) []string {
	words := strings.Fields(punctuationRegex.ReplaceAllString(strings.ToLower(s), " "))

	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if len([]rune(word)) <= 1 || stopWords[word] || isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fuzzyTokenMatch reports whether two tokens are within the edit distance.
// Short tokens never match fuzzily.
func fuzzyTokenMatch(a, b string, threshold int) bool {
	if a == b {
		return true
	}
	if len(a) < 4 || len(b) < 4 {
		return false
	}

	diff := len(a) - len(b)
	if diff < 0 {
		diff = -diff
	}
	if diff > threshold {
		return false
	}

	return levenshteinDistance(a, b) <= threshold
}

func levenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}
