package scoring

import (
	"fmt"
	"math"
)

const (
	overlapScore   = 0.7
	nearMissFactor = 0.4
)

// Converter converts an amount into the reference currency. ok is false when the
// currency is unknown. *currency.RateTable satisfies it.
type Converter interface {
	ToReference(amount float64, code string) (float64, bool)
}

// FinancialScore compares the target's desired investment with the investor's budget
// after converting both into the reference currency.
func FinancialScore(inv, tgt Range, invCurrency, tgtCurrency string, conv Converter) DimensionResult {
	switch {
	case inv.Empty() && tgt.Empty():
		return result(DimFinancial, 0, "No financial data on either side")
	case inv.Empty():
		return result(DimFinancial, 0, "Investor has no budget range")
	case tgt.Empty():
		return result(DimFinancial, 0, "Target has no desired investment")
	}

	iLo, iHi, ok := investorBounds(inv, invCurrency, conv)
	if !ok {
		return result(DimFinancial, 0, fmt.Sprintf("Investor currency %q cannot be converted", invCurrency))
	}
	tLo, tHi, ok := targetBounds(tgt, tgtCurrency, conv)
	if !ok {
		return result(DimFinancial, 0, fmt.Sprintf("Target currency %q cannot be converted", tgtCurrency))
	}

	if tLo >= iLo && tHi <= iHi {
		return result(DimFinancial, 1, "Target range fits perfectly within investor budget")
	}
	if tLo <= iHi && tHi >= iLo {
		return result(DimFinancial, overlapScore, "Partial overlap between budget and desired investment")
	}

	var gap float64
	if tHi < iLo {
		gap = iLo - tHi
	} else {
		gap = tLo - iHi
	}
	mid := iLo
	if !math.IsInf(iHi, 1) {
		mid = (iLo + iHi) / 2
	}
	if mid <= 0 {
		return result(DimFinancial, 0, "Ranges do not overlap")
	}
	rel := gap / mid
	score := nearMissFactor * math.Max(0, 1-math.Log1p(10*rel)/math.Log1p(10))
	return result(DimFinancial, score, fmt.Sprintf("Ranges do not overlap (gap %.0f%% of investor midpoint)", rel*100))
}

// investorBounds converts the budget; a missing minimum is 0 and a missing maximum is
// unbounded.
func investorBounds(r Range, code string, conv Converter) (lo, hi float64, ok bool) {
	lo, hi = 0, math.Inf(1)
	if r.Min != nil {
		if lo, ok = convert(*r.Min, code, conv); !ok {
			return 0, 0, false
		}
	}
	if r.Max != nil {
		if hi, ok = convert(*r.Max, code, conv); !ok {
			return 0, 0, false
		}
	}
	return lo, hi, true
}

// targetBounds converts the desired investment; a missing end collapses to the other.
func targetBounds(r Range, code string, conv Converter) (lo, hi float64, ok bool) {
	from, to := r.Min, r.Max
	if from == nil {
		from = to
	}
	if to == nil {
		to = from
	}
	if lo, ok = convert(*from, code, conv); !ok {
		return 0, 0, false
	}
	if hi, ok = convert(*to, code, conv); !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

func convert(amount float64, code string, conv Converter) (float64, bool) {
	if conv == nil {
		return amount, true
	}
	return conv.ToReference(amount, code)
}
