package scoring

import "math"

// WeightTolerance is how far a weight sum may drift from 1.0 before it is re-normalized.
const WeightTolerance = 0.05

// WeightVector defines the relative importance of each dimension.
type WeightVector struct {
	Industry    float64 `json:"industry" yaml:"industry"`
	Geography   float64 `json:"geography" yaml:"geography"`
	Financial   float64 `json:"financial" yaml:"financial"`
	Transaction float64 `json:"transaction" yaml:"transaction"`
}

// DefaultWeights returns the stock weight distribution.
func DefaultWeights() WeightVector {
	return WeightVector{
		Industry:    0.30,
		Geography:   0.25,
		Financial:   0.25,
		Transaction: 0.20,
	}
}

// Sum returns the total of all weights.
func (w WeightVector) Sum() float64 {
	return w.Industry + w.Geography + w.Financial + w.Transaction
}

func (w WeightVector) Get(d Dimension) float64 {
	switch d {
	case DimIndustry:
		return w.Industry
	case DimGeography:
		return w.Geography
	case DimFinancial:
		return w.Financial
	case DimTransaction:
		return w.Transaction
	}
	return 0
}

func (w *WeightVector) set(d Dimension, v float64) {
	switch d {
	case DimIndustry:
		w.Industry = v
	case DimGeography:
		w.Geography = v
	case DimFinancial:
		w.Financial = v
	case DimTransaction:
		w.Transaction = v
	}
}

// AsMap returns exactly the four recognized keys.
func (w WeightVector) AsMap() map[string]float64 {
	out := make(map[string]float64, len(Dimensions))
	for _, d := range Dimensions {
		out[string(d)] = w.Get(d)
	}
	return out
}

// ResolveWeights fills a partial weight map from the defaults and re-normalizes it when
// the sum is off by more than WeightTolerance. Unknown keys are ignored; missing,
// negative and non-finite values fall back to the default for that key. It never fails.
func ResolveWeights(partial map[string]float64) WeightVector {
	w := DefaultWeights()
	if len(partial) == 0 {
		return w
	}
	for _, d := range Dimensions {
		v, ok := partial[string(d)]
		if !ok || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		w.set(d, v)
	}

	sum := w.Sum()
	if sum <= 0 {
		return DefaultWeights()
	}
	if math.Abs(sum-1.0) > WeightTolerance {
		for _, d := range Dimensions {
			w.set(d, w.Get(d)/sum)
		}
	}
	return w
}
