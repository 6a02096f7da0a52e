package usecase

import (
	"regexp"
	"strings"

	"github.com/realitycheck/backend/internal/logging"
	"github.com/sirupsen/logrus"
)

// maxQueryLength caps the cleaned search text sent to the product backend
const maxQueryLength = 100

// QueryPreprocessor cleans free-text product searches before they reach the backend.
// Shoppers type what is printed on the pack ("Family Size Oat Cereal 500g") while
// the catalogue stores plain names.
type QueryPreprocessor struct {
	log logrus.FieldLogger
}

var (
	// "500g", "1.5 l", "12 oz", "330 ml", "2 lb"
	sizeQuantityPattern = regexp.MustCompile(`(?i)\b\d+[.,]?\d*\s*(fl\s*)?(oz|ounces?|lbs?|pounds?|ml|cl|l|liters?|litres?|kg|g|grams?|gallons?)\b`)

	// "6 pack", "6-pack", "pack of 6", "24 ct", "4 bars"
	packCountPattern = regexp.MustCompile(`(?i)\b\d+[-\s]*(pack|pk|count|ct|x)\b|\bpack\s*of\s*\d+\b|\b\d+\s*(cans?|bottles?|pouches?|bars?|pieces?|sachets?)\b`)

	// a dangling number left at either end after the units were removed
	standaloneNumberPattern = regexp.MustCompile(`[,\-]\s*\d+[.,]?\d*\s*$|^\s*\d+[.,]?\d*\s*[,\-]`)

	multiSpacePattern   = regexp.MustCompile(`\s+`)
	lonePunctPattern    = regexp.MustCompile(`\s+[,\-;:]+\s+`)
	trailingPunctPattern = regexp.MustCompile(`[,\-;:]+\s*$`)
	leadingPunctPattern = regexp.MustCompile(`^\s*[,\-;:]+`)
)

// queryNoiseWords are marketing and packaging terms that never narrow a search
var queryNoiseWords = map[string]bool{
	// marketing
	"value": true, "family": true, "bonus": true, "new": true, "improved": true,
	"premium": true, "select": true, "choice": true, "quality": true, "best": true,
	"great": true, "delicious": true, "tasty": true, "favorite": true, "special": true,
	"healthy": true, "natural": true, "original": true,

	// size descriptors
	"size": true, "large": true, "medium": true, "small": true, "mini": true,
	"jumbo": true, "giant": true, "big": true, "single": true, "double": true,

	// packaging
	"package": true, "pack": true, "box": true, "bag": true, "bottle": true,
	"can": true, "jar": true, "tub": true, "carton": true, "pouch": true,

	"food": true, "item": true, "product": true, "brand": true,
}

// NewQueryPreprocessor creates a query preprocessor
func NewQueryPreprocessor(log logrus.FieldLogger) *QueryPreprocessor {
	return &QueryPreprocessor{log: logging.Component(log, "query")}
}

// Clean lowercases the query and strips sizes, pack counts and noise words.
// When nothing meaningful is left the trimmed, lowercased input is returned so a
// search for "Value Pack" still reaches the backend.
func (p *QueryPreprocessor) Clean(query string) string {
	original := strings.ToLower(strings.TrimSpace(multiSpacePattern.ReplaceAllString(query, " ")))
	if original == "" {
		return ""
	}

	cleaned := sizeQuantityPattern.ReplaceAllString(original, " ")
	cleaned = packCountPattern.ReplaceAllString(cleaned, " ")
	cleaned = standaloneNumberPattern.ReplaceAllString(cleaned, " ")
	cleaned = removeNoiseWords(cleaned)
	cleaned = cleanOrphanedPunctuation(cleaned)
	cleaned = strings.TrimSpace(multiSpacePattern.ReplaceAllString(cleaned, " "))

	if cleaned == "" {
		cleaned = original
	}

	if len(cleaned) > maxQueryLength {
		cleaned = cleaned[:maxQueryLength]
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > maxQueryLength/2 {
			cleaned = cleaned[:lastSpace]
		}
	}

	p.log.WithFields(logrus.Fields{"input": query, "output": cleaned}).Debug("query cleaned")
	return cleaned
}

func removeNoiseWords(s string) string {
	words := strings.Fields(s)
	kept := make([]string, 0, len(words))

	for _, word := range words {
		if !queryNoiseWords[strings.Trim(word, ",.!?;:-'\"")] {
			kept = append(kept, word)
		}
	}

	return strings.Join(kept, " ")
}

// cleanOrphanedPunctuation drops separators that lost their neighbours
func cleanOrphanedPunctuation(s string) string {
	s = lonePunctPattern.ReplaceAllString(s, " ")
	s = trailingPunctPattern.ReplaceAllString(s, "")
	return leadingPunctPattern.ReplaceAllString(s, "")
}
