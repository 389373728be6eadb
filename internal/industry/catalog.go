// Package industry holds the canonical industry reference table and suggests canonical
// industries for free-text labels.
package industry

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/MikeSquared-Agency/Matchmaker/internal/store"
	"github.com/MikeSquared-Agency/Matchmaker/internal/textnorm"
)

// MinSuggestionScore is the lowest similarity returned by Suggest.
const MinSuggestionScore = 0.6

// containmentScore is awarded when one label contains the other as a whole phrase.
const containmentScore = 0.85

type Suggestion struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Catalog is an immutable snapshot of the industry table, built once per scoring run.
type Catalog struct {
	byID     map[int64]store.Industry
	children map[int64][]int64
	folded   map[int64]string
	ordered  []int64

	jaroWinkler *metrics.JaroWinkler
}

func NewCatalog(industries []store.Industry) *Catalog {
	c := &Catalog{
		byID:        make(map[int64]store.Industry, len(industries)),
		children:    make(map[int64][]int64),
		folded:      make(map[int64]string, len(industries)),
		jaroWinkler: metrics.NewJaroWinkler(),
	}
	for _, ind := range industries {
		c.byID[ind.ID] = ind
		c.folded[ind.ID] = textnorm.Fold(ind.Name)
		c.ordered = append(c.ordered, ind.ID)
		if ind.ParentID != nil {
			c.children[*ind.ParentID] = append(c.children[*ind.ParentID], ind.ID)
		}
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i] < c.ordered[j] })
	return c
}

func (c *Catalog) Len() int { return len(c.byID) }

func (c *Catalog) Lookup(id int64) (store.Industry, bool) {
	ind, ok := c.byID[id]
	return ind, ok
}

// Related returns the parent of id and all of its sub-industries, transitively.
func (c *Catalog) Related(id int64) []int64 {
	var out []int64
	if ind, ok := c.byID[id]; ok && ind.ParentID != nil {
		out = append(out, *ind.ParentID)
	}
	seen := map[int64]bool{id: true}
	queue := append([]int64(nil), c.children[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, c.children[next]...)
	}
	return out
}

// Suggest ranks canonical industries against a free-text label. Only suggestions with a
// score of at least MinSuggestionScore are returned, best first, at most limit of them.
func (c *Catalog) Suggest(label string, limit int) []Suggestion {
	q := textnorm.Fold(label)
	if q == "" || limit <= 0 {
		return nil
	}

	var out []Suggestion
	for _, id := range c.ordered {
		ind := c.byID[id]
		if !ind.Canonical {
			continue
		}
		name := c.folded[id]
		if name == "" {
			continue
		}
		score := strutil.Similarity(q, name, c.jaroWinkler)
		if score < containmentScore && containsPhrase(q, name) {
			score = containmentScore
		}
		if score >= MinSuggestionScore {
			out = append(out, Suggestion{ID: id, Name: ind.Name, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func containsPhrase(a, b string) bool {
	if len(a) < 4 || len(b) < 4 {
		return false
	}
	return strings.Contains(" "+a+" ", " "+b+" ") || strings.Contains(" "+b+" ", " "+a+" ")
}
