package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const investorQuery = `SELECT i.id, i.name, i.active, i.updated_at,
	p.company_name, p.industries, p.preferred_industries, p.hq_country, p.target_countries, p.purposes,
	f.currency, f.investment_range, f.ownership_conditions
	FROM investors i
	LEFT JOIN investor_profiles p ON p.investor_id = i.id
	LEFT JOIN investor_financial_profiles f ON f.investor_id = i.id`

const targetQuery = `SELECT t.id, t.name, t.active, t.updated_at,
	p.company_name, p.industries, NULL::jsonb, p.hq_country, NULL::jsonb, p.reasons_for_ma,
	f.currency, f.desired_investment, f.ownership_conditions
	FROM targets t
	LEFT JOIN target_profiles p ON p.target_id = t.id
	LEFT JOIN target_financial_profiles f ON f.target_id = t.id`

// entityRow is the shared column layout of investorQuery and targetQuery.
type entityRow struct {
	id        uuid.UUID
	name      string
	active    bool
	profile   Profile
	financial FinancialProfile
	updatedAt sql.NullTime
}

func scanEntity(row pgx.Row) (*entityRow, error) {
	e := &entityRow{}
	var companyName, currency sql.NullString
	var industries, preferred, hq, countries, purposes, rng, ownership []byte

	err := row.Scan(
		&e.id, &e.name, &e.active, &e.updatedAt,
		&companyName, &industries, &preferred, &hq, &countries, &purposes,
		&currency, &rng, &ownership,
	)
	if err != nil {
		return nil, err
	}
	if companyName.Valid {
		e.profile.CompanyName = companyName.String
	}
	if currency.Valid {
		e.financial.Currency = currency.String
	}
	e.profile.Industries = rawJSON(industries)
	e.profile.PreferredIndustries = rawJSON(preferred)
	e.profile.HQCountry = rawJSON(hq)
	e.profile.TargetCountries = rawJSON(countries)
	e.profile.Purposes = rawJSON(purposes)
	e.financial.InvestmentRange = rawJSON(rng)
	e.financial.OwnershipConditions = rawJSON(ownership)
	return e, nil
}

func (e *entityRow) investor() *Investor {
	inv := &Investor{ID: e.id, Name: e.name, Active: e.active, Profile: e.profile, Financial: e.financial}
	if e.updatedAt.Valid {
		inv.UpdatedAt = e.updatedAt.Time
	}
	return inv
}

func (e *entityRow) target() *Target {
	t := &Target{ID: e.id, Name: e.name, Active: e.active, Profile: e.profile, Financial: e.financial}
	if e.updatedAt.Valid {
		t.UpdatedAt = e.updatedAt.Time
	}
	return t
}

func (s *PostgresStore) GetInvestor(ctx context.Context, id uuid.UUID) (*Investor, error) {
	e, err := scanEntity(s.pool.QueryRow(ctx, investorQuery+` WHERE i.id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e.investor(), nil
}

func (s *PostgresStore) GetTarget(ctx context.Context, id uuid.UUID) (*Target, error) {
	e, err := scanEntity(s.pool.QueryRow(ctx, targetQuery+` WHERE t.id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e.target(), nil
}

func (s *PostgresStore) ListInvestors(ctx context.Context, filter EntityFilter) ([]*Investor, error) {
	query := investorQuery
	if filter.ActiveOnly {
		query += ` WHERE i.active`
	}
	rows, err := s.pool.Query(ctx, query+` ORDER BY i.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Investor
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e.investor())
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListTargets(ctx context.Context, filter EntityFilter) ([]*Target, error) {
	query := targetQuery
	if filter.ActiveOnly {
		query += ` WHERE t.active`
	}
	rows, err := s.pool.Query(ctx, query+` ORDER BY t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Target
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e.target())
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListIndustries(ctx context.Context) ([]Industry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, parent_id, canonical
		FROM industries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Industry
	for rows.Next() {
		var ind Industry
		var parent sql.NullInt64
		if err := rows.Scan(&ind.ID, &ind.Name, &parent, &ind.Canonical); err != nil {
			return nil, err
		}
		if parent.Valid {
			ind.ParentID = &parent.Int64
		}
		out = append(out, ind)
	}
	return out, rows.Err()
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
