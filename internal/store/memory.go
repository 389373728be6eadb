package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store used when no database is configured and in tests.
type MemoryStore struct {
	mu         sync.RWMutex
	investors  map[uuid.UUID]*Investor
	targets    map[uuid.UUID]*Target
	industries []Industry
	matches    map[uuid.UUID]*Match
	pairs      map[[2]uuid.UUID]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		investors: make(map[uuid.UUID]*Investor),
		targets:   make(map[uuid.UUID]*Target),
		matches:   make(map[uuid.UUID]*Match),
		pairs:     make(map[[2]uuid.UUID]uuid.UUID),
	}
}

func (s *MemoryStore) PutInvestor(inv *Investor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	s.investors[inv.ID] = inv
}

func (s *MemoryStore) PutTarget(t *Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.targets[t.ID] = t
}

func (s *MemoryStore) SetIndustries(industries []Industry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.industries = append([]Industry(nil), industries...)
}

func (s *MemoryStore) GetInvestor(_ context.Context, id uuid.UUID) (*Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.investors[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (s *MemoryStore) GetTarget(_ context.Context, id uuid.UUID) (*Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListInvestors(_ context.Context, filter EntityFilter) ([]*Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Investor
	for _, inv := range s.investors {
		if filter.ActiveOnly && !inv.Active {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *MemoryStore) ListTargets(_ context.Context, filter EntityFilter) ([]*Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Target
	for _, t := range s.targets {
		if filter.ActiveOnly && !t.Active {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *MemoryStore) ListIndustries(_ context.Context) ([]Industry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Industry(nil), s.industries...), nil
}

func (s *MemoryStore) UpsertMatch(_ context.Context, m *Match) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if m.ComputedAt.IsZero() {
		m.ComputedAt = now
	}
	key := [2]uuid.UUID{m.InvestorID, m.TargetID}
	if id, ok := s.pairs[key]; ok {
		existing := s.matches[id]
		existing.IndustryScore = m.IndustryScore
		existing.GeographyScore = m.GeographyScore
		existing.FinancialScore = m.FinancialScore
		existing.TransactionScore = m.TransactionScore
		existing.TotalScore = m.TotalScore
		existing.Explanations = copyExplanations(m.Explanations)
		existing.ComputedAt = m.ComputedAt
		existing.UpdatedAt = now
		*m = *existing
		m.Explanations = copyExplanations(existing.Explanations)
		return false, nil
	}

	if m.Status == "" {
		m.Status = MatchPending
	}
	stored := *m
	stored.ID = uuid.New()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.Explanations = copyExplanations(m.Explanations)
	s.matches[stored.ID] = &stored
	s.pairs[key] = stored.ID

	m.ID = stored.ID
	m.CreatedAt = now
	m.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id uuid.UUID) (*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) GetMatchByPair(ctx context.Context, investorID, targetID uuid.UUID) (*Match, error) {
	s.mu.RLock()
	id, ok := s.pairs[[2]uuid.UUID{investorID, targetID}]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetMatch(ctx, id)
}

func (s *MemoryStore) ListMatches(_ context.Context, filter MatchFilter) ([]*Match, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Match
	for _, m := range s.matches {
		if !s.matchesFilter(m, filter) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].ComputedAt.After(out[j].ComputedAt)
	})

	total := len(out)
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if filter.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (s *MemoryStore) matchesFilter(m *Match, filter MatchFilter) bool {
	if m.TotalScore < filter.MinScore {
		return false
	}
	if filter.MaxScore > 0 && m.TotalScore > filter.MaxScore {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, st := range filter.Statuses {
			if m.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	} else if !filter.IncludeConverted && m.Status == MatchConverted {
		return false
	}
	if filter.InvestorID != nil && m.InvestorID != *filter.InvestorID {
		return false
	}
	if filter.TargetID != nil && m.TargetID != *filter.TargetID {
		return false
	}
	if filter.IndustryID != "" || filter.CountryID != "" {
		t, ok := s.targets[m.TargetID]
		if !ok {
			return false
		}
		if filter.IndustryID != "" && !containsString(jsonIDs(t.Profile.Industries), filter.IndustryID) {
			return false
		}
		if filter.CountryID != "" && !containsString(jsonIDs(t.Profile.HQCountry), filter.CountryID) {
			return false
		}
	}
	return true
}

func (s *MemoryStore) UpdateMatchStatus(_ context.Context, id uuid.UUID, status MatchStatus, dealID *uuid.UUID) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, nil
	}
	if m.Status != MatchConverted && m.Status != status {
		m.Status = status
		if dealID != nil {
			d := *dealID
			m.DealID = &d
		}
		m.UpdatedAt = time.Now()
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) Close() error { return nil }

func copyExplanations(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// jsonIDs flattens an id-bearing JSON value (scalar, {id}, {country_id} or a list of
// those) into string IDs. Used only for listing filters.
func jsonIDs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	var ids []string
	var walk func(interface{})
	walk = func(x interface{}) {
		switch t := x.(type) {
		case []interface{}:
			for _, e := range t {
				walk(e)
			}
		case map[string]interface{}:
			if id, ok := t["id"]; ok {
				walk(id)
			} else if id, ok := t["country_id"]; ok {
				walk(id)
			}
		case float64:
			ids = append(ids, fmt.Sprintf("%.0f", t))
		case string:
			ids = append(ids, t)
		}
	}
	walk(v)
	return ids
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
