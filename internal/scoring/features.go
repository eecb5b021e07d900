package scoring

import (
	"strings"

	"github.com/amishk599/oppradar/internal/filter"
)

// ConstructionKeywords feed the construction relevance feature. The
// misspelling of "scheduleing" is matched as-is because that is how some
// company pages spell it.
var ConstructionKeywords = []string{
	"bim",
	"construction",
	"jobsite",
	"scheduleing",
	"project management",
	"procurement",
	"construction management",
}

// GrowthVelocity is the constant growth feature until a growth signal
// source exists.
const GrowthVelocity = 0.5

// Features are the per-posting inputs to the weighted score, each in [0,1].
type Features struct {
	SkillSimilarity       float64
	AIDepth               float64
	FundingStage          float64
	Remote                float64
	ConstructionRelevance float64
	GrowthVelocity        float64
}

// AIDepth tiers a title by how much core AI work it implies.
func AIDepth(title string) float64 {
	t := strings.ToLower(title)
	switch {
	case containsAny(t, "computer vision", "deep learning", "llm"):
		return 1.0
	case containsAny(t, "machine learning", "data scientist"):
		return 0.8
	default:
		return 0.5
	}
}

// FundingBucket maps a free-text funding stage to a maturity value.
func FundingBucket(stage string) float64 {
	s := strings.ToLower(strings.TrimSpace(stage))
	switch {
	case s == "":
		return 0.2
	case containsAny(s, "seed", "angel"):
		return 0.2
	case strings.Contains(s, "series a"):
		return 0.4
	case strings.Contains(s, "series b"):
		return 0.6
	case strings.Contains(s, "series c"):
		return 0.8
	default:
		return 1.0
	}
}

// ConstructionRelevance is min(hits/3, 1) over ConstructionKeywords in the
// company description.
func ConstructionRelevance(description string) float64 {
	return min(float64(filter.CountHits(description, ConstructionKeywords))/3, 1)
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
