//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, "TRUNCATE prospect_matches CASCADE")
		_, _ = s.pool.Exec(ctx, "TRUNCATE investors, targets CASCADE")
		s.Close()
	})

	return s
}

func seedInvestor(t *testing.T, s *PostgresStore, name string, active bool) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	if _, err := s.pool.Exec(ctx, `INSERT INTO investors (id, name, active) VALUES ($1, $2, $3)`, id, name, active); err != nil {
		t.Fatalf("insert investor: %v", err)
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO investor_profiles (investor_id, company_name, preferred_industries, target_countries, purposes)
		VALUES ($1, $2, '[7]', '[{"id": 12}]', '["Market expansion"]')`, id, name); err != nil {
		t.Fatalf("insert investor profile: %v", err)
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO investor_financial_profiles (investor_id, currency, investment_range, ownership_conditions)
		VALUES ($1, 'USD', '{"min": 100000, "max": 500000}', '["Majority stake"]')`, id); err != nil {
		t.Fatalf("insert investor financials: %v", err)
	}
	return id
}

func seedTarget(t *testing.T, s *PostgresStore, name string, industries, hq string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	if _, err := s.pool.Exec(ctx, `INSERT INTO targets (id, name, active) VALUES ($1, $2, true)`, id, name); err != nil {
		t.Fatalf("insert target: %v", err)
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO target_profiles (target_id, company_name, industries, hq_country, reasons_for_ma)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, '["Growth capital"]')`, id, name, industries, hq); err != nil {
		t.Fatalf("insert target profile: %v", err)
	}
	return id
}

func TestGetAndListEntities(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	activeID := seedInvestor(t, s, "Northwind", true)
	seedInvestor(t, s, "Dormant", false)
	targetID := seedTarget(t, s, "Acme", `[7]`, `12`)

	inv, err := s.GetInvestor(ctx, activeID)
	if err != nil {
		t.Fatalf("GetInvestor failed: %v", err)
	}
	if inv == nil {
		t.Fatal("expected investor, got nil")
	}
	if inv.Financial.Currency != "USD" {
		t.Errorf("expected currency USD, got %q", inv.Financial.Currency)
	}
	if len(inv.Profile.PreferredIndustries) == 0 {
		t.Error("expected preferred industries to be loaded")
	}

	tgt, err := s.GetTarget(ctx, targetID)
	if err != nil {
		t.Fatalf("GetTarget failed: %v", err)
	}
	if tgt == nil || len(tgt.Profile.Purposes) == 0 {
		t.Fatalf("expected target with reasons for M&A, got %+v", tgt)
	}

	missing, err := s.GetInvestor(ctx, uuid.New())
	if err != nil {
		t.Fatalf("GetInvestor(missing) failed: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown investor")
	}

	active, err := s.ListInvestors(ctx, EntityFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListInvestors failed: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected 1 active investor, got %d", len(active))
	}
}

func TestUpsertMatchPreservesStatus(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	invID := seedInvestor(t, s, "Northwind", true)
	tgtID := seedTarget(t, s, "Acme", `[7]`, `12`)

	m := &Match{InvestorID: invID, TargetID: tgtID, IndustryScore: 1, TotalScore: 60,
		Explanations: map[string]string{"industry": "Canonical industry match (1 shared)"}}
	created, err := s.UpsertMatch(ctx, m)
	if err != nil {
		t.Fatalf("UpsertMatch failed: %v", err)
	}
	if !created {
		t.Error("expected first upsert to insert")
	}
	if m.Status != MatchPending {
		t.Errorf("expected pending, got %s", m.Status)
	}

	if _, err := s.UpdateMatchStatus(ctx, m.ID, MatchApproved, nil); err != nil {
		t.Fatalf("UpdateMatchStatus failed: %v", err)
	}

	again := &Match{InvestorID: invID, TargetID: tgtID, IndustryScore: 0.5, TotalScore: 45}
	created, err = s.UpsertMatch(ctx, again)
	if err != nil {
		t.Fatalf("UpsertMatch failed: %v", err)
	}
	if created {
		t.Error("expected second upsert to update")
	}
	if again.ID != m.ID {
		t.Errorf("expected same row %s, got %s", m.ID, again.ID)
	}

	got, err := s.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if got.Status != MatchApproved {
		t.Errorf("expected status approved to survive re-score, got %s", got.Status)
	}
	if got.TotalScore != 45 {
		t.Errorf("expected total 45, got %d", got.TotalScore)
	}
}

func TestListMatchesFilters(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	invID := seedInvestor(t, s, "Northwind", true)
	software := seedTarget(t, s, "Softco", `[{"id": 2}]`, `12`)
	health := seedTarget(t, s, "Acme", `[7]`, `{"id": 99}`)

	for tgt, score := range map[uuid.UUID]int{software: 85, health: 55} {
		if _, err := s.UpsertMatch(ctx, &Match{InvestorID: invID, TargetID: tgt, TotalScore: score}); err != nil {
			t.Fatalf("UpsertMatch failed: %v", err)
		}
	}

	all, total, err := s.ListMatches(ctx, MatchFilter{})
	if err != nil {
		t.Fatalf("ListMatches failed: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("expected 2 matches, got %d (total %d)", len(all), total)
	}
	if all[0].TotalScore != 85 {
		t.Errorf("expected highest score first, got %d", all[0].TotalScore)
	}

	byIndustry, _, err := s.ListMatches(ctx, MatchFilter{IndustryID: "2"})
	if err != nil {
		t.Fatalf("ListMatches failed: %v", err)
	}
	if len(byIndustry) != 1 || byIndustry[0].TargetID != software {
		t.Errorf("expected only the software target, got %+v", byIndustry)
	}

	byCountry, _, err := s.ListMatches(ctx, MatchFilter{CountryID: "99"})
	if err != nil {
		t.Fatalf("ListMatches failed: %v", err)
	}
	if len(byCountry) != 1 || byCountry[0].TargetID != health {
		t.Errorf("expected only the health target, got %+v", byCountry)
	}
}

func TestConvertedMatchIsFinal(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	invID := seedInvestor(t, s, "Northwind", true)
	tgtID := seedTarget(t, s, "Acme", `[7]`, `12`)
	m := &Match{InvestorID: invID, TargetID: tgtID, TotalScore: 80}
	if _, err := s.UpsertMatch(ctx, m); err != nil {
		t.Fatalf("UpsertMatch failed: %v", err)
	}

	first, second := uuid.New(), uuid.New()
	if _, err := s.UpdateMatchStatus(ctx, m.ID, MatchConverted, &first); err != nil {
		t.Fatalf("UpdateMatchStatus failed: %v", err)
	}
	got, err := s.UpdateMatchStatus(ctx, m.ID, MatchConverted, &second)
	if err != nil {
		t.Fatalf("UpdateMatchStatus failed: %v", err)
	}
	if got.DealID == nil || *got.DealID != first {
		t.Errorf("expected deal %s to stay linked, got %v", first, got.DealID)
	}

	got, err = s.UpdateMatchStatus(ctx, m.ID, MatchApproved, nil)
	if err != nil {
		t.Fatalf("UpdateMatchStatus failed: %v", err)
	}
	if got.Status != MatchConverted {
		t.Errorf("expected converted to be final, got %s", got.Status)
	}
}
