package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchApproved  MatchStatus = "approved"
	MatchDismissed MatchStatus = "dismissed"
	MatchConverted MatchStatus = "converted"
)

// Valid reports whether s is one of the known match statuses.
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchPending, MatchApproved, MatchDismissed, MatchConverted:
		return true
	}
	return false
}

// Profile is the company identity and preference record owned by an Investor or Target.
// The JSON fields are user-entered and arrive in several shapes; they are kept raw and
// coerced at the matcher boundary.
type Profile struct {
	CompanyName string `json:"company_name"`

	// Target: the target's industries. Investor: the investor's own company industry.
	Industries json.RawMessage `json:"industries,omitempty"`
	// Investor only.
	PreferredIndustries json.RawMessage `json:"preferred_industries,omitempty"`

	HQCountry json.RawMessage `json:"hq_country,omitempty"`
	// Investor only.
	TargetCountries json.RawMessage `json:"target_countries,omitempty"`

	// Investor: M&A purposes. Target: reasons for M&A.
	Purposes json.RawMessage `json:"purposes,omitempty"`
}

type FinancialProfile struct {
	Currency string `json:"currency,omitempty"`
	// Investor: budget. Target: desired investment. {min,max} or [min,max].
	InvestmentRange     json.RawMessage `json:"investment_range,omitempty"`
	OwnershipConditions json.RawMessage `json:"ownership_conditions,omitempty"`
}

type Investor struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Active    bool             `json:"active"`
	Profile   Profile          `json:"profile"`
	Financial FinancialProfile `json:"financial"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type Target struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Active    bool             `json:"active"`
	Profile   Profile          `json:"profile"`
	Financial FinancialProfile `json:"financial"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Industry is a row of the curated industry reference table.
type Industry struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ParentID  *int64 `json:"parent_id,omitempty"`
	Canonical bool   `json:"canonical"`
}

type Match struct {
	ID         uuid.UUID `json:"id"`
	InvestorID uuid.UUID `json:"investor_id"`
	TargetID   uuid.UUID `json:"target_id"`

	IndustryScore    float64 `json:"industry_score"`
	GeographyScore   float64 `json:"geography_score"`
	FinancialScore   float64 `json:"financial_score"`
	TransactionScore float64 `json:"transaction_score"`
	TotalScore       int     `json:"total_score"`

	Explanations map[string]string `json:"explanations,omitempty"`

	Status     MatchStatus `json:"status"`
	DealID     *uuid.UUID  `json:"deal_id,omitempty"`
	ComputedAt time.Time   `json:"computed_at"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type EntityFilter struct {
	ActiveOnly bool
}

type MatchFilter struct {
	MinScore   int
	MaxScore   int // 0 means unbounded
	Statuses   []MatchStatus
	InvestorID *uuid.UUID
	TargetID   *uuid.UUID
	IndustryID string
	CountryID  string

	// Converted matches are hidden unless requested explicitly or by status.
	IncludeConverted bool

	Limit  int
	Offset int
}

type Store interface {
	GetInvestor(ctx context.Context, id uuid.UUID) (*Investor, error)
	GetTarget(ctx context.Context, id uuid.UUID) (*Target, error)
	ListInvestors(ctx context.Context, filter EntityFilter) ([]*Investor, error)
	ListTargets(ctx context.Context, filter EntityFilter) ([]*Target, error)
	ListIndustries(ctx context.Context) ([]Industry, error)

	// UpsertMatch writes scores for the pair. New rows take m.Status; existing rows keep
	// theirs. m is updated in place with the stored row and created reports an insert.
	UpsertMatch(ctx context.Context, m *Match) (created bool, err error)
	GetMatch(ctx context.Context, id uuid.UUID) (*Match, error)
	GetMatchByPair(ctx context.Context, investorID, targetID uuid.UUID) (*Match, error)
	ListMatches(ctx context.Context, filter MatchFilter) ([]*Match, int, error)
	// UpdateMatchStatus moves the match to status, linking dealID when given, and returns
	// the stored row. Converted rows are final and come back unchanged. Returns nil for an
	// unknown ID.
	UpdateMatchStatus(ctx context.Context, id uuid.UUID, status MatchStatus, dealID *uuid.UUID) (*Match, error)

	Close() error
}
