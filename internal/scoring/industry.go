package scoring

import (
	"fmt"

	"github.com/MikeSquared-Agency/Matchmaker/internal/industry"
	"github.com/MikeSquared-Agency/Matchmaker/internal/store"
	"github.com/MikeSquared-Agency/Matchmaker/internal/textnorm"
)

const (
	// minTokenLen is the shortest word counted by TokenOverlap.
	minTokenLen = 4

	// fuzzyIndustryThreshold is the lowest fuzzy score that counts as an industry match.
	fuzzyIndustryThreshold = 0.3

	tokenOverlapFactor = 0.8
	suggestionFactor   = 0.9
	suggestionLimit    = 3
)

// IndustryCatalog is the industry reference service consulted by the matcher.
// *industry.Catalog satisfies it.
type IndustryCatalog interface {
	Lookup(id int64) (store.Industry, bool)
	Related(id int64) []int64
	Suggest(label string, limit int) []industry.Suggestion
}

// IndustryScore compares investor industry preferences against target industries.
// The first non-zero stage wins: canonical ID overlap, exact name overlap, fuzzy fallback.
func IndustryScore(inv, tgt []IndustryRef, catalog IndustryCatalog) DimensionResult {
	switch {
	case len(inv) == 0 && len(tgt) == 0:
		return result(DimIndustry, 0, "No industries on either side")
	case len(inv) == 0:
		return result(DimIndustry, 0, "Investor has no industry preferences")
	case len(tgt) == 0:
		return result(DimIndustry, 0, "Target has no industries")
	}

	invIDs, tgtIDs := canonicalIDs(inv), canonicalIDs(tgt)
	if j, shared := jaccard(invIDs, tgtIDs); j > 0 {
		return result(DimIndustry, j, fmt.Sprintf("Canonical industry match (%d shared)", shared))
	}

	invNames, tgtNames := industryNames(inv), industryNames(tgt)
	if j, shared := jaccard(invNames, tgtNames); shared > 0 {
		return result(DimIndustry, j, fmt.Sprintf("Industry name match (%d shared)", shared))
	}

	best, reason := fuzzyIndustry(inv, tgt, invIDs, catalog)
	if best > fuzzyIndustryThreshold {
		return result(DimIndustry, best, reason)
	}
	return result(DimIndustry, 0, "No industry overlap")
}

func fuzzyIndustry(inv, tgt []IndustryRef, invIDs map[int64]bool, catalog IndustryCatalog) (float64, string) {
	var best float64
	var reason string
	consider := func(score float64, why string) {
		if score > best {
			best, reason = score, why
		}
	}

	for _, t := range tgt {
		if t.Name == "" {
			continue
		}
		for _, i := range inv {
			if i.Name == "" {
				continue
			}
			consider(TextSimilarity(t.Name, i.Name),
				fmt.Sprintf("Similar industry names: %q ~ %q", t.Name, i.Name))
			consider(TokenOverlap(t.Name, i.Name)*tokenOverlapFactor,
				fmt.Sprintf("Shared industry terms: %q ~ %q", t.Name, i.Name))
		}

		if t.Canonical || catalog == nil || len(invIDs) == 0 {
			continue
		}
		for _, s := range catalog.Suggest(t.Name, suggestionLimit) {
			if !investorCovers(invIDs, s.ID, catalog) {
				continue
			}
			consider(s.Score*suggestionFactor,
				fmt.Sprintf("%q maps to preferred industry %q", t.Name, s.Name))
		}
	}
	return best, reason
}

// investorCovers reports whether id, its parent or one of its sub-industries is preferred.
func investorCovers(invIDs map[int64]bool, id int64, catalog IndustryCatalog) bool {
	if invIDs[id] {
		return true
	}
	for _, rel := range catalog.Related(id) {
		if invIDs[rel] {
			return true
		}
	}
	return false
}

func canonicalIDs(refs []IndustryRef) map[int64]bool {
	set := make(map[int64]bool)
	for _, r := range refs {
		if r.Canonical && r.ID > 0 {
			set[r.ID] = true
		}
	}
	return set
}

func industryNames(refs []IndustryRef) map[string]bool {
	set := make(map[string]bool)
	for _, r := range refs {
		if n := textnorm.Fold(r.Name); n != "" {
			set[n] = true
		}
	}
	return set
}

// jaccard returns |a∩b| / |a∪b| and the intersection size.
func jaccard[K comparable](a, b map[K]bool) (float64, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}
	shared := 0
	for k := range a {
		if b[k] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union), shared
}
