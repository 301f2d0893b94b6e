package strategy

import (
	"math"

	"RSISentinel/internal/calculator"
)

// QualityInputs are the measurements a divergence score is built from.
type QualityInputs struct {
	PriceChangePct float64
	RSIChange      float64
	MinProminence  float64
	Confirmed      bool
}

// QualityTiers maps a divergence score to its label, highest first.
var QualityTiers = []struct {
	MinScore float64
	Label    string
}{
	{85, "Excellent"},
	{75, "Very Good"},
	{65, "Good"},
}

// DefaultQualityLabel applies below the lowest tier.
const DefaultQualityLabel = "Fair"

// QualityScore converts a validated pivot pair into a 0-100 score rounded to 0.1.
func QualityScore(in QualityInputs) float64 {
	score := math.Min(math.Abs(in.PriceChangePct)*6, 30) +
		math.Min(math.Abs(in.RSIChange)*3, 30) +
		math.Min(math.Max(in.MinProminence, 0)*4, 20)
	if in.Confirmed {
		score += 20
	}
	return clampScore(calculator.Round1(score))
}

// QualityLabel maps a score to a label.
func QualityLabel(score float64) string {
	for _, t := range QualityTiers {
		if score >= t.MinScore {
			return t.Label
		}
	}
	return DefaultQualityLabel
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(v, 100))
}
