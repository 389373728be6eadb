package currency

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToReference(t *testing.T) {
	table := NewRateTable("usd", map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("1.10"),
		"jpy": decimal.RequireFromString("0.0067"),
		"BAD": decimal.Zero,
	})

	tests := []struct {
		name   string
		amount float64
		code   string
		want   float64
		ok     bool
	}{
		{"reference", 100, "USD", 100, true},
		{"empty code is reference", 100, "", 100, true},
		{"eur", 100, "EUR", 110, true},
		{"lowercase and padded", 1000, " jpy ", 6.7, true},
		{"non-positive rate dropped", 5, "BAD", 0, false},
		{"unknown", 5, "XXX", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table.ToReference(tt.amount, tt.code)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
	assert.Equal(t, "USD", table.Reference())
}

func TestParseRates(t *testing.T) {
	table, err := ParseRates("USD", map[string]string{"GBP": "1.25"})
	require.NoError(t, err)
	got, ok := table.ToReference(2, "gbp")
	require.True(t, ok)
	assert.True(t, math.Abs(got-2.5) < 1e-9)

	_, err = ParseRates("USD", map[string]string{"GBP": "abc"})
	assert.Error(t, err)
}

func TestHTTPClientRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rates", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("base"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"EUR":"1.08"}}`))
	}))
	defer srv.Close()

	table, err := NewHTTPClient(srv.URL, "USD").Rates(context.Background())
	require.NoError(t, err)
	got, ok := table.ToReference(100, "EUR")
	require.True(t, ok)
	assert.InDelta(t, 108.0, got, 1e-9)
}

func TestHTTPClientRatesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "USD").Rates(context.Background())
	assert.Error(t, err)
}
