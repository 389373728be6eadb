package rescan

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Matchmaker/internal/store"
)

// Criteria overrides an investor's stored preferences for a live preview. Only
// non-empty fields replace the stored value. The JSON fields accept the same shapes
// as stored profile fields.
type Criteria struct {
	Industries          json.RawMessage    `json:"industries,omitempty"`
	TargetCountries     json.RawMessage    `json:"target_countries,omitempty"`
	InvestmentRange     json.RawMessage    `json:"investment_range,omitempty"`
	Currency            string             `json:"currency,omitempty"`
	OwnershipConditions json.RawMessage    `json:"ownership_conditions,omitempty"`
	Purposes            json.RawMessage    `json:"purposes,omitempty"`
	Weights             map[string]float64 `json:"weights,omitempty"`

	// MinScore filters results. Nil uses the persistence threshold.
	MinScore *int `json:"min_score,omitempty"`
	Limit    int  `json:"limit,omitempty"`
}

type LiveResult struct {
	TargetID        uuid.UUID          `json:"target_id"`
	TargetName      string             `json:"target_name"`
	Total           int                `json:"total"`
	DimensionScores map[string]float64 `json:"dimension_scores"`
	Explanations    map[string]string  `json:"explanations"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// apply returns a copy of inv with the criteria overrides. The stored record is untouched.
func (c Criteria) apply(inv *store.Investor) *store.Investor {
	out := *inv
	if present(c.Industries) {
		out.Profile.PreferredIndustries = c.Industries
		out.Profile.Industries = nil
	}
	if present(c.TargetCountries) {
		out.Profile.TargetCountries = c.TargetCountries
	}
	if present(c.Purposes) {
		out.Profile.Purposes = c.Purposes
	}
	if present(c.InvestmentRange) {
		out.Financial.InvestmentRange = c.InvestmentRange
	}
	if c.Currency != "" {
		out.Financial.Currency = c.Currency
	}
	if present(c.OwnershipConditions) {
		out.Financial.OwnershipConditions = c.OwnershipConditions
	}
	return &out
}

// ScoreLive scores an investor, with criteria overrides applied, against all active
// targets. Nothing is persisted. Results are ordered by total, best first.
func (o *Orchestrator) ScoreLive(ctx context.Context, investorID uuid.UUID, c Criteria) ([]LiveResult, error) {
	stored, err := o.store.GetInvestor(ctx, investorID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrInvestorNotFound
	}
	targets, err := o.store.ListTargets(ctx, store.EntityFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	agg, err := o.prepare(ctx, c.Weights)
	if err != nil {
		return nil, err
	}

	minScore := o.matches.MinScore()
	if c.MinScore != nil {
		minScore = *c.MinScore
	}
	inv := c.apply(stored)

	var (
		mu      sync.Mutex
		results []LiveResult
	)
	o.forEachPair(ctx, []*store.Investor{inv}, targets, func(_ context.Context, inv *store.Investor, tgt *store.Target) error {
		ps, err := agg.Score(inv, tgt)
		if err != nil {
			return err
		}
		if ps.Total < minScore {
			return nil
		}
		dims := make(map[string]float64, len(ps.Dimensions))
		for _, d := range ps.Dimensions {
			dims[string(d.Name)] = d.Score
		}
		mu.Lock()
		results = append(results, LiveResult{
			TargetID:        tgt.ID,
			TargetName:      tgt.Name,
			Total:           ps.Total,
			DimensionScores: dims,
			Explanations:    ps.Explanations,
		})
		mu.Unlock()
		return nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Total != results[j].Total {
			return results[i].Total > results[j].Total
		}
		return results[i].TargetName < results[j].TargetName
	})
	if c.Limit > 0 && len(results) > c.Limit {
		results = results[:c.Limit]
	}
	return results, nil
}
