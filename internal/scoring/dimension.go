package scoring

import "math"

// Dimension names one of the four scored axes.
type Dimension string

const (
	DimIndustry    Dimension = "industry"
	DimGeography   Dimension = "geography"
	DimFinancial   Dimension = "financial"
	DimTransaction Dimension = "transaction"
)

// Dimensions lists the axes in aggregation order.
var Dimensions = []Dimension{DimIndustry, DimGeography, DimFinancial, DimTransaction}

// DimensionResult captures one dimension's contribution to the total score.
type DimensionResult struct {
	Name     Dimension `json:"name"`
	Score    float64   `json:"score"`
	Weight   float64   `json:"weight"`
	Weighted float64   `json:"weighted"`
	Reason   string    `json:"reason"`
}

func result(d Dimension, score float64, reason string) DimensionResult {
	return DimensionResult{Name: d, Score: clamp(score, 0, 1), Reason: reason}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
