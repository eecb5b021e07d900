package scoring

import (
	"fmt"
	"math"
)

// weightTolerance is how far the weight sum may drift from 1.
const weightTolerance = 1e-6

// Weights scale each feature. They must sum to 1.
type Weights struct {
	SkillSimilarity       float64 `yaml:"skill_similarity"`
	AIDepth               float64 `yaml:"ai_depth"`
	FundingStage          float64 `yaml:"funding_stage"`
	Remote                float64 `yaml:"remote"`
	ConstructionRelevance float64 `yaml:"construction_relevance"`
	GrowthVelocity        float64 `yaml:"growth_velocity"`
}

// DefaultWeights keeps funding stage computed but unweighted.
func DefaultWeights() Weights {
	return Weights{
		SkillSimilarity:       0.37,
		AIDepth:               0.28,
		FundingStage:          0.00,
		Remote:                0.15,
		ConstructionRelevance: 0.10,
		GrowthVelocity:        0.10,
	}
}

// Sum adds all weights.
func (w Weights) Sum() float64 {
	return w.SkillSimilarity + w.AIDepth + w.FundingStage + w.Remote + w.ConstructionRelevance + w.GrowthVelocity
}

// Validate rejects negative weights and sums other than 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"skill_similarity":       w.SkillSimilarity,
		"ai_depth":               w.AIDepth,
		"funding_stage":          w.FundingStage,
		"remote":                 w.Remote,
		"construction_relevance": w.ConstructionRelevance,
		"growth_velocity":        w.GrowthVelocity,
	} {
		if v < 0 {
			return fmt.Errorf("scoring weight %s is negative (%g)", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("scoring weights sum to %g, want 1", sum)
	}
	return nil
}

// Score returns the weighted sum of f scaled to 0..100 and rounded to two
// decimals.
func (w Weights) Score(f Features) float64 {
	sum := f.SkillSimilarity*w.SkillSimilarity +
		f.AIDepth*w.AIDepth +
		f.FundingStage*w.FundingStage +
		f.Remote*w.Remote +
		f.ConstructionRelevance*w.ConstructionRelevance +
		f.GrowthVelocity*w.GrowthVelocity
	return math.Round(sum*100*100) / 100
}
