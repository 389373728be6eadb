package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const matchColumns = `m.id, m.investor_id, m.target_id,
	m.industry_score, m.geography_score, m.financial_score, m.transaction_score, m.total_score,
	m.explanations, m.status, m.deal_id, m.computed_at, m.created_at, m.updated_at`

func scanMatch(row pgx.Row, extra ...any) (*Match, error) {
	m := &Match{}
	var explanationsJSON []byte
	dest := []any{
		&m.ID, &m.InvestorID, &m.TargetID,
		&m.IndustryScore, &m.GeographyScore, &m.FinancialScore, &m.TransactionScore, &m.TotalScore,
		&explanationsJSON, &m.Status, &m.DealID, &m.ComputedAt, &m.CreatedAt, &m.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if explanationsJSON != nil {
		_ = json.Unmarshal(explanationsJSON, &m.Explanations)
	}
	return m, nil
}

func (s *PostgresStore) UpsertMatch(ctx context.Context, m *Match) (bool, error) {
	explanationsJSON, _ := json.Marshal(m.Explanations)
	if m.Status == "" {
		m.Status = MatchPending
	}
	if m.ComputedAt.IsZero() {
		m.ComputedAt = time.Now()
	}

	// status and deal_id stay out of the conflict update: a re-score keeps the
	// lifecycle of an existing row.
	var created bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO prospect_matches (investor_id, target_id,
			industry_score, geography_score, financial_score, transaction_score, total_score,
			explanations, status, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (investor_id, target_id) DO UPDATE SET
			industry_score = EXCLUDED.industry_score,
			geography_score = EXCLUDED.geography_score,
			financial_score = EXCLUDED.financial_score,
			transaction_score = EXCLUDED.transaction_score,
			total_score = EXCLUDED.total_score,
			explanations = EXCLUDED.explanations,
			computed_at = EXCLUDED.computed_at,
			updated_at = now()
		RETURNING id, status, deal_id, created_at, updated_at, (xmax = 0)`,
		m.InvestorID, m.TargetID,
		m.IndustryScore, m.GeographyScore, m.FinancialScore, m.TransactionScore, m.TotalScore,
		explanationsJSON, m.Status, m.ComputedAt,
	).Scan(&m.ID, &m.Status, &m.DealID, &m.CreatedAt, &m.UpdatedAt, &created)
	return created, err
}

func (s *PostgresStore) GetMatch(ctx context.Context, id uuid.UUID) (*Match, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM prospect_matches m WHERE m.id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func (s *PostgresStore) GetMatchByPair(ctx context.Context, investorID, targetID uuid.UUID) (*Match, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx, `
		SELECT `+matchColumns+` FROM prospect_matches m
		WHERE m.investor_id = $1 AND m.target_id = $2`, investorID, targetID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func (s *PostgresStore) ListMatches(ctx context.Context, filter MatchFilter) ([]*Match, int, error) {
	query := `SELECT ` + matchColumns + `, COUNT(*) OVER()
		FROM prospect_matches m
		LEFT JOIN target_profiles tp ON tp.target_id = m.target_id
		WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.MinScore > 0 {
		n++
		query += fmt.Sprintf(" AND m.total_score >= $%d", n)
		args = append(args, filter.MinScore)
	}
	if filter.MaxScore > 0 {
		n++
		query += fmt.Sprintf(" AND m.total_score <= $%d", n)
		args = append(args, filter.MaxScore)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		n++
		query += fmt.Sprintf(" AND m.status = ANY($%d)", n)
		args = append(args, statuses)
	} else if !filter.IncludeConverted {
		query += " AND m.status <> 'converted'"
	}
	if filter.InvestorID != nil {
		n++
		query += fmt.Sprintf(" AND m.investor_id = $%d", n)
		args = append(args, *filter.InvestorID)
	}
	if filter.TargetID != nil {
		n++
		query += fmt.Sprintf(" AND m.target_id = $%d", n)
		args = append(args, *filter.TargetID)
	}
	if filter.IndustryID != "" {
		n++
		query += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(
				CASE WHEN jsonb_typeof(tp.industries) = 'array' THEN tp.industries ELSE '[]'::jsonb END) e
			WHERE COALESCE(e->>'id', e #>> '{}') = $%d)`, n)
		args = append(args, filter.IndustryID)
	}
	if filter.CountryID != "" {
		n++
		query += fmt.Sprintf(" AND COALESCE(tp.hq_country->>'id', tp.hq_country->>'country_id', tp.hq_country #>> '{}') = $%d", n)
		args = append(args, filter.CountryID)
	}

	query += " ORDER BY m.total_score DESC, m.computed_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var matches []*Match
	total := 0
	for rows.Next() {
		m, err := scanMatch(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		matches = append(matches, m)
	}
	return matches, total, rows.Err()
}

func (s *PostgresStore) UpdateMatchStatus(ctx context.Context, id uuid.UUID, status MatchStatus, dealID *uuid.UUID) (*Match, error) {
	_, err := s.pool.Exec(ctx, `
		UPDATE prospect_matches SET
			status = $2, deal_id = COALESCE($3, deal_id), updated_at = now()
		WHERE id = $1 AND status <> 'converted' AND status <> $2`,
		id, status, dealID,
	)
	if err != nil {
		return nil, err
	}
	return s.GetMatch(ctx, id)
}
