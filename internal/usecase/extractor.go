package usecase

import (
	"regexp"
	"strings"
)

// Extractor pulls a candidate JSON payload out of free-form model text
type Extractor interface {
	Name() string
	Extract(text string) (string, bool)
}

var (
	jsonFencePattern = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n?```")
	anyFencePattern  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)\\n?```")
)

// fencedExtractor returns the body of the first fenced block matching pattern
type fencedExtractor struct {
	name    string
	pattern *regexp.Regexp
}

func (e fencedExtractor) Name() string { return e.name }

func (e fencedExtractor) Extract(text string) (string, bool) {
	m := e.pattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// braceExtractor returns the span from the first '{' to the last '}'
type braceExtractor struct{}

func (braceExtractor) Name() string { return "brace" }

func (braceExtractor) Extract(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// DefaultExtractors is the extraction order: a json-tagged fence, then any
// fence, then the outermost brace-delimited span.
func DefaultExtractors() []Extractor {
	return []Extractor{
		fencedExtractor{name: "json-fence", pattern: jsonFencePattern},
		fencedExtractor{name: "fence", pattern: anyFencePattern},
		braceExtractor{},
	}
}

// extractPayload runs the extractors in order; the first match wins.
// With no match the raw text is the candidate.
func extractPayload(text string, extractors []Extractor) (payload, strategy string) {
	for _, e := range extractors {
		if candidate, ok := e.Extract(text); ok {
			return candidate, e.Name()
		}
	}
	return text, "raw"
}
