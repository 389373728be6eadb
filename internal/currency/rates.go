package currency

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RateTable converts amounts into a single reference currency. Rates are expressed as
// units of the reference currency per one unit of the keyed currency.
type RateTable struct {
	reference string
	rates     map[string]decimal.Decimal
}

// RateSource yields the rate table used for one scoring run.
type RateSource interface {
	Rates(ctx context.Context) (*RateTable, error)
}

func NewRateTable(reference string, rates map[string]decimal.Decimal) *RateTable {
	ref := normalizeCode(reference)
	t := &RateTable{reference: ref, rates: make(map[string]decimal.Decimal, len(rates)+1)}
	for code, r := range rates {
		if r.IsPositive() {
			t.rates[normalizeCode(code)] = r
		}
	}
	t.rates[ref] = decimal.NewFromInt(1)
	return t
}

// ParseRates builds a table from decimal strings, as found in config files and the
// rate service payload.
func ParseRates(reference string, raw map[string]string) (*RateTable, error) {
	rates := make(map[string]decimal.Decimal, len(raw))
	for code, s := range raw {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("rate %s: %w", code, err)
		}
		rates[code] = d
	}
	return NewRateTable(reference, rates), nil
}

func (t *RateTable) Reference() string { return t.reference }

// ToReference converts amount in code into the reference currency. An empty code is
// taken to already be in the reference currency. ok is false for unknown codes.
func (t *RateTable) ToReference(amount float64, code string) (float64, bool) {
	c := normalizeCode(code)
	if c == "" {
		c = t.reference
	}
	rate, ok := t.rates[c]
	if !ok {
		return 0, false
	}
	v, _ := decimal.NewFromFloat(amount).Mul(rate).Float64()
	return v, true
}

func (t *RateTable) Rates(context.Context) (*RateTable, error) { return t, nil }

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
