package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/Matchmaker/internal/textnorm"
)

const (
	structureWeight = 0.6
	purposeWeight   = 0.4

	flexibleScore     = 0.9
	sameClassScore    = 0.9
	opposedClassScore = 0.2
	structureSimRate  = 0.7
)

type ownershipClass int

const (
	classUnknown ownershipClass = iota
	classMajority
	classMinority
)

func (c ownershipClass) String() string {
	switch c {
	case classMajority:
		return "majority"
	case classMinority:
		return "minority"
	}
	return "unknown"
}

// TransactionScore combines ownership-structure and M&A-purpose compatibility.
func TransactionScore(invConditions, tgtConditions, invPurposes, tgtReasons []string) DimensionResult {
	structure, sReason := StructureScore(invConditions, tgtConditions)
	purpose, pReason := PurposeScore(invPurposes, tgtReasons)
	score := structureWeight*structure + purposeWeight*purpose
	return result(DimTransaction, score, fmt.Sprintf("Structure: %s; Purpose: %s", sReason, pReason))
}

// StructureScore compares ownership-condition preferences.
func StructureScore(inv, tgt []string) (float64, string) {
	if containsMarker(inv, FlexibleMarkers) || containsMarker(tgt, FlexibleMarkers) {
		return flexibleScore, "flexible ownership terms"
	}
	switch {
	case len(inv) == 0 && len(tgt) == 0:
		return 0, "no ownership preferences on either side"
	case len(inv) == 0:
		return 0, "investor has no ownership preference"
	case len(tgt) == 0:
		return 0, "target has no ownership preference"
	}

	tgtSet := make(map[string]bool, len(tgt))
	for _, t := range tgt {
		tgtSet[textnorm.Fold(t)] = true
	}
	for _, i := range inv {
		if f := textnorm.Fold(i); f != "" && tgtSet[f] {
			return 1, fmt.Sprintf("both want %q", i)
		}
	}

	ci, ct := classify(inv), classify(tgt)
	if ci != classUnknown && ct != classUnknown {
		if ci == ct {
			return sameClassScore, fmt.Sprintf("both want %s ownership", ci)
		}
		return opposedClassScore, fmt.Sprintf("investor wants %s, target wants %s", ci, ct)
	}

	var best float64
	for _, i := range inv {
		for _, t := range tgt {
			best = math.Max(best, TextSimilarity(i, t))
		}
	}
	return best * structureSimRate, "partial similarity of ownership terms"
}

// PurposeScore looks investor purposes up in PurposeMatrix against target reasons.
func PurposeScore(invPurposes, tgtReasons []string) (float64, string) {
	switch {
	case len(invPurposes) == 0 && len(tgtReasons) == 0:
		return 0, "no purpose data on either side"
	case len(invPurposes) == 0:
		return 0, "investor has no stated purpose"
	case len(tgtReasons) == 0:
		return 0, "target has no stated reason"
	}

	reasons := make([]string, 0, len(tgtReasons))
	for _, r := range tgtReasons {
		if f := textnorm.Fold(r); f != "" {
			reasons = append(reasons, f)
		}
	}

	for _, p := range invPurposes {
		if fp := textnorm.Fold(p); fp != "" && containsString(reasons, fp) {
			return purposeSameScore, fmt.Sprintf("same stated purpose %q", p)
		}
	}
	for _, p := range invPurposes {
		compatible, _ := CompatibleReasons(p)
		for _, r := range reasons {
			if containsString(compatible, r) {
				return purposeExactScore, fmt.Sprintf("%q fits target reason %q", p, r)
			}
		}
	}

	var best float64
	for _, p := range invPurposes {
		compatible, known := CompatibleReasons(p)
		if !known {
			best = math.Max(best, unknownPurposeFloor)
			continue
		}
		for _, r := range reasons {
			for _, c := range compatible {
				if sim := TextSimilarity(r, c); sim > purposeSimilarityMin {
					best = math.Max(best, sim*purposeSimilarityRate)
				}
			}
		}
	}
	if best <= purposeMinMeaningful {
		return purposeNoAlignment, "no alignment found"
	}
	return best, "partial purpose alignment"
}

func classify(conditions []string) ownershipClass {
	class := classUnknown
	for _, c := range conditions {
		var cur ownershipClass
		switch {
		case containsMarker([]string{c}, MinorityMarkers):
			cur = classMinority
		case containsMarker([]string{c}, MajorityMarkers):
			cur = classMajority
		default:
			continue
		}
		if class != classUnknown && class != cur {
			return classUnknown
		}
		class = cur
	}
	return class
}

func containsMarker(items, markers []string) bool {
	for _, item := range items {
		f := textnorm.Fold(item)
		for _, m := range markers {
			if strings.Contains(f, m) {
				return true
			}
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
