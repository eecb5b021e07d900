package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/amishk599/oppradar/internal/model"
)

// DefaultTitlePattern keeps postings whose title names a data, AI or
// engineering-adjacent role.
const DefaultTitlePattern = `\b(Data|Machine Learning|Manager|Project Manager|Computer Vision|Deep Learning|AI|ML|LLM|Analytics|Engineer|Scientist|Developer|Analyst|Designer|Programmer|Software Engineer|Data Scientist|Data Analyst|Data Engineer)\b`

var remoteRe = regexp.MustCompile(`(?i)remote|anywhere`)

// IsRemote reports whether a location string advertises remote work.
func IsRemote(location string) bool {
	return remoteRe.MatchString(location)
}

// TitleFilter matches postings by a case-insensitive title regex.
type TitleFilter struct {
	re *regexp.Regexp
}

// NewTitleFilter compiles pattern case-insensitively. An empty pattern uses
// DefaultTitlePattern.
func NewTitleFilter(pattern string) (*TitleFilter, error) {
	if pattern == "" {
		pattern = DefaultTitlePattern
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compile title pattern: %w", err)
	}
	return &TitleFilter{re: re}, nil
}

// Match reports whether the posting's title matches.
func (f *TitleFilter) Match(p model.Posting) bool {
	return f.re.MatchString(p.Title)
}

// Apply returns the postings that match, preserving order.
func (f *TitleFilter) Apply(postings []model.Posting) []model.Posting {
	var out []model.Posting
	for _, p := range postings {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// MatchMode says how keyword sets combine.
type MatchMode string

const (
	// MatchAny accepts text that hits any keyword from any set.
	MatchAny MatchMode = "any"
	// MatchAll requires at least one hit from every set.
	MatchAll MatchMode = "all"
)

// ParseMatchMode validates a configured mode. Empty means MatchAny.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchAny:
		return MatchAny, nil
	case MatchAll:
		return MatchAll, nil
	default:
		return "", fmt.Errorf("unknown match mode %q (want any or all)", s)
	}
}

// DefaultDomainKeywords mark construction-industry relevance.
var DefaultDomainKeywords = []string{
	"construction", "bim", "jobsite", "rfi", "safety", "contractor", "prefab",
	"design-build", "subcontractor", "site", "punchlist", "billing", "draw",
	"scheduleing", "project", "project management", "procurement",
	"construction management",
}

// DefaultAIKeywords mark AI/ML relevance.
var DefaultAIKeywords = []string{
	"ai", "machine learning", "ml", "deep learning", "computer vision",
	"analytics", "predictive", "llm", "chatbot", "smart", "autonomous", "agent",
	"ai-powered", "saas", "ai-enabled", "ai-driven",
}

// KeywordMatcher tests text for case-insensitive substring membership in
// one or more keyword sets.
type KeywordMatcher struct {
	sets [][]string
	mode MatchMode
}

// NewKeywordMatcher lowercases the sets once. Empty sets are ignored.
func NewKeywordMatcher(mode MatchMode, sets ...[]string) *KeywordMatcher {
	m := &KeywordMatcher{mode: mode}
	for _, set := range sets {
		var lowered []string
		for _, kw := range set {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				lowered = append(lowered, kw)
			}
		}
		if len(lowered) > 0 {
			m.sets = append(m.sets, lowered)
		}
	}
	return m
}

// Match reports whether text is relevant under the matcher's mode.
func (m *KeywordMatcher) Match(text string) bool {
	if len(m.sets) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, set := range m.sets {
		hit := containsAny(lower, set)
		if hit && m.mode != MatchAll {
			return true
		}
		if !hit && m.mode == MatchAll {
			return false
		}
	}
	return m.mode == MatchAll
}

// CountHits returns the total number of occurrences of the keywords of set
// in text. Overlapping keywords each count.
func CountHits(text string, set []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range set {
		if kw = strings.ToLower(kw); kw != "" {
			n += strings.Count(lower, kw)
		}
	}
	return n
}

func containsAny(lower string, set []string) bool {
	for _, kw := range set {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
