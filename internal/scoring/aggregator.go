package scoring

import (
	"math"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Matchmaker/internal/store"
)

// PairScore is the complete scoring output for one investor/target pair.
type PairScore struct {
	InvestorID uuid.UUID `json:"investor_id"`
	TargetID   uuid.UUID `json:"target_id"`
	Total      int       `json:"total"`

	Industry    float64 `json:"industry"`
	Geography   float64 `json:"geography"`
	Financial   float64 `json:"financial"`
	Transaction float64 `json:"transaction"`

	Explanations map[string]string `json:"explanations"`
	Dimensions   []DimensionResult `json:"dimensions"`
	Weights      WeightVector      `json:"weights"`
}

// Aggregator runs the four matchers under one weight vector. It holds no mutable state
// and does no I/O; build one per run from prefetched collaborators.
type Aggregator struct {
	weights   WeightVector
	catalog   IndustryCatalog
	converter Converter
}

func NewAggregator(weights WeightVector, catalog IndustryCatalog, converter Converter) *Aggregator {
	return &Aggregator{weights: weights, catalog: catalog, converter: converter}
}

func (a *Aggregator) Weights() WeightVector { return a.weights }

type investorInputs struct {
	industries []IndustryRef
	countries  []string
	budget     Range
	conditions []string
	purposes   []string
}

type targetInputs struct {
	industries []IndustryRef
	hq         string
	desired    Range
	conditions []string
	reasons    []string
}

// Score computes the weighted total and per-dimension explanations. The only error is
// ErrMalformedField for a nested field no coercion accepts.
func (a *Aggregator) Score(inv *store.Investor, tgt *store.Target) (PairScore, error) {
	in, err := a.investorInputs(inv)
	if err != nil {
		return PairScore{}, err
	}
	tn, err := a.targetInputs(tgt)
	if err != nil {
		return PairScore{}, err
	}

	dims := []DimensionResult{
		IndustryScore(in.industries, tn.industries, a.catalog),
		GeographyScore(in.countries, tn.hq),
		FinancialScore(in.budget, tn.desired, inv.Financial.Currency, tgt.Financial.Currency, a.converter),
		TransactionScore(in.conditions, tn.conditions, in.purposes, tn.reasons),
	}

	ps := PairScore{
		InvestorID:   inv.ID,
		TargetID:     tgt.ID,
		Explanations: make(map[string]string, len(dims)),
		Weights:      a.weights,
	}
	ps.Total, ps.Dimensions = Combine(dims, a.weights)
	for _, d := range ps.Dimensions {
		ps.Explanations[string(d.Name)] = d.Reason
		switch d.Name {
		case DimIndustry:
			ps.Industry = d.Score
		case DimGeography:
			ps.Geography = d.Score
		case DimFinancial:
			ps.Financial = d.Score
		case DimTransaction:
			ps.Transaction = d.Score
		}
	}
	return ps, nil
}

// Combine applies weights to dimension results and returns the 0-100 total along with
// the results annotated with weight and weighted contribution, scores rounded to 4
// decimals.
func Combine(dims []DimensionResult, w WeightVector) (int, []DimensionResult) {
	out := make([]DimensionResult, len(dims))
	var sum float64
	for i, d := range dims {
		d.Weight = w.Get(d.Name)
		d.Weighted = d.Score * d.Weight
		sum += d.Weighted
		d.Score = round4(d.Score)
		d.Weighted = round4(d.Weighted)
		out[i] = d
	}
	total := int(math.Round(100 * sum))
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return total, out
}

func (a *Aggregator) investorInputs(inv *store.Investor) (investorInputs, error) {
	var in investorInputs
	preferred, err := CoerceIndustries("preferred_industries", inv.Profile.PreferredIndustries, a.catalog)
	if err != nil {
		return in, err
	}
	own, err := CoerceIndustries("industries", inv.Profile.Industries, a.catalog)
	if err != nil {
		return in, err
	}
	in.industries = append(preferred, own...)
	if in.countries, err = CoerceCountryIDs("target_countries", inv.Profile.TargetCountries); err != nil {
		return in, err
	}
	if in.budget, err = CoerceRange("investment_range", inv.Financial.InvestmentRange); err != nil {
		return in, err
	}
	if in.conditions, err = CoerceStrings("ownership_conditions", inv.Financial.OwnershipConditions); err != nil {
		return in, err
	}
	if in.purposes, err = CoerceStrings("purposes", inv.Profile.Purposes); err != nil {
		return in, err
	}
	return in, nil
}

func (a *Aggregator) targetInputs(tgt *store.Target) (targetInputs, error) {
	var tn targetInputs
	var err error
	if tn.industries, err = CoerceIndustries("industries", tgt.Profile.Industries, a.catalog); err != nil {
		return tn, err
	}
	if tn.hq, err = CoerceCountryID("hq_country", tgt.Profile.HQCountry); err != nil {
		return tn, err
	}
	if tn.desired, err = CoerceRange("investment_range", tgt.Financial.InvestmentRange); err != nil {
		return tn, err
	}
	if tn.conditions, err = CoerceStrings("ownership_conditions", tgt.Financial.OwnershipConditions); err != nil {
		return tn, err
	}
	if tn.reasons, err = CoerceStrings("purposes", tgt.Profile.Purposes); err != nil {
		return tn, err
	}
	return tn, nil
}
