package scoring

import "github.com/MikeSquared-Agency/Matchmaker/internal/textnorm"

// PurposeMatrix maps an investor's M&A purpose to the target reasons it is compatible with.
var PurposeMatrix = map[string][]string{
	"Market expansion":       {"Growth capital", "International expansion", "Access to new markets", "Strategic partnership"},
	"Technology acquisition": {"Technology partnership", "Strategic partnership", "Full sale", "Growth capital"},
	"Vertical integration":   {"Full sale", "Strategic partnership", "Supply chain partnership"},
	"Horizontal integration": {"Full sale", "Merger", "Consolidation"},
	"Diversification":        {"Full sale", "Partial sale", "Growth capital"},
	"Talent acquisition":     {"Full sale", "Strategic partnership", "Merger"},
	"Consolidation":          {"Full sale", "Merger", "Succession", "Retirement"},
	"Financial investment":   {"Growth capital", "Partial sale", "Shareholder liquidity", "Debt refinancing"},
	"Turnaround":             {"Restructuring", "Financial distress", "Debt refinancing"},
	"Succession":             {"Succession", "Retirement", "Full sale"},
}

// Ownership keyword lists. Matching is substring containment on folded text; minority
// keywords are checked first so "non-controlling" is not read as "control".
var (
	FlexibleMarkers = []string{"flexible", "negotiable", "open"}
	MinorityMarkers = []string{"minority", "non-controlling", "partial"}
	MajorityMarkers = []string{"majority", "control", "full", "100%", "buyout", "acquisition"}
)

const (
	purposeSameScore      = 1.0
	purposeExactScore     = 0.9
	unknownPurposeFloor   = 0.15
	purposeSimilarityMin  = 0.7
	purposeSimilarityRate = 0.85
	purposeNoAlignment    = 0.05
	purposeMinMeaningful  = 0.3
)

var foldedMatrix = foldMatrix(PurposeMatrix)

func foldMatrix(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for purpose, reasons := range m {
		folded := make([]string, len(reasons))
		for i, r := range reasons {
			folded[i] = textnorm.Fold(r)
		}
		out[textnorm.Fold(purpose)] = folded
	}
	return out
}

// CompatibleReasons returns the matrix entry for an investor purpose, case-insensitively.
func CompatibleReasons(purpose string) ([]string, bool) {
	reasons, ok := foldedMatrix[textnorm.Fold(purpose)]
	return reasons, ok
}
