package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMatch(inv, tgt uuid.UUID, total int) *Match {
	return &Match{
		InvestorID:     inv,
		TargetID:       tgt,
		IndustryScore:  1,
		GeographyScore: 1,
		TotalScore:     total,
		Explanations:   map[string]string{"industry": "Canonical industry match (1 shared)"},
	}
}

func TestMemoryStoreEntities(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	active := &Investor{Name: "Active", Active: true}
	dormant := &Investor{Name: "Dormant"}
	s.PutInvestor(active)
	s.PutInvestor(dormant)
	s.PutTarget(&Target{Name: "Acme", Active: true})

	require.NotEqual(t, uuid.Nil, active.ID)

	got, err := s.GetInvestor(ctx, active.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Active", got.Name)

	missing, err := s.GetInvestor(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := s.ListInvestors(ctx, EntityFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyActive, err := s.ListInvestors(ctx, EntityFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, active.ID, onlyActive[0].ID)

	targets, err := s.ListTargets(ctx, EntityFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, targets, 1)
}

func TestMemoryStoreUpsertKeepsStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	inv, tgt := uuid.New(), uuid.New()

	m := newMatch(inv, tgt, 60)
	created, err := s.UpsertMatch(ctx, m)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, MatchPending, m.Status)
	id := m.ID

	updated, err := s.UpdateMatchStatus(ctx, id, MatchApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, MatchApproved, updated.Status)

	again := newMatch(inv, tgt, 72)
	created, err = s.UpsertMatch(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again.ID)
	assert.Equal(t, MatchApproved, again.Status)
	assert.Equal(t, 72, again.TotalScore)

	all, total, err := s.ListMatches(ctx, MatchFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, all, 1)
}

func TestMemoryStoreListMatches(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	inv := uuid.New()
	software := &Target{Active: true, Profile: Profile{
		Industries: json.RawMessage(`[{"id": 2}]`),
		HQCountry:  json.RawMessage(`12`),
	}}
	health := &Target{Active: true, Profile: Profile{
		Industries: json.RawMessage(`[7]`),
		HQCountry:  json.RawMessage(`{"id": 99}`),
	}}
	third := &Target{Active: true}
	s.PutTarget(software)
	s.PutTarget(health)
	s.PutTarget(third)

	for tgt, score := range map[uuid.UUID]int{software.ID: 85, health.ID: 55, third.ID: 40} {
		_, err := s.UpsertMatch(ctx, newMatch(inv, tgt, score))
		require.NoError(t, err)
	}
	converted, err := s.GetMatchByPair(ctx, inv, third.ID)
	require.NoError(t, err)
	deal := uuid.New()
	_, err = s.UpdateMatchStatus(ctx, converted.ID, MatchConverted, &deal)
	require.NoError(t, err)

	t.Run("ordered by score and converted hidden", func(t *testing.T) {
		got, total, err := s.ListMatches(ctx, MatchFilter{})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, got, 2)
		assert.Equal(t, 85, got[0].TotalScore)
		assert.Equal(t, 55, got[1].TotalScore)
	})

	t.Run("converted on request", func(t *testing.T) {
		got, _, err := s.ListMatches(ctx, MatchFilter{Statuses: []MatchStatus{MatchConverted}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.NotNil(t, got[0].DealID)
		assert.Equal(t, deal, *got[0].DealID)
	})

	t.Run("score bounds", func(t *testing.T) {
		got, _, err := s.ListMatches(ctx, MatchFilter{MinScore: 50, MaxScore: 64})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, health.ID, got[0].TargetID)
	})

	t.Run("industry and country", func(t *testing.T) {
		got, _, err := s.ListMatches(ctx, MatchFilter{IndustryID: "2"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, software.ID, got[0].TargetID)

		got, _, err = s.ListMatches(ctx, MatchFilter{CountryID: "99"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, health.ID, got[0].TargetID)
	})

	t.Run("pagination", func(t *testing.T) {
		got, total, err := s.ListMatches(ctx, MatchFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, got, 1)
		assert.Equal(t, 55, got[0].TotalScore)

		got, _, err = s.ListMatches(ctx, MatchFilter{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMemoryStoreUpdateMatchStatusUnknownID(t *testing.T) {
	s := NewMemoryStore()
	m, err := s.UpdateMatchStatus(context.Background(), uuid.New(), MatchApproved, nil)
	assert.NoError(t, err)
	assert.Nil(t, m)
}

func TestMemoryStoreConvertedMatchIsFinal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m := newMatch(uuid.New(), uuid.New(), 80)
	_, err := s.UpsertMatch(ctx, m)
	require.NoError(t, err)

	first := uuid.New()
	got, err := s.UpdateMatchStatus(ctx, m.ID, MatchConverted, &first)
	require.NoError(t, err)
	require.NotNil(t, got.DealID)
	assert.Equal(t, first, *got.DealID)

	second := uuid.New()
	got, err = s.UpdateMatchStatus(ctx, m.ID, MatchConverted, &second)
	require.NoError(t, err)
	assert.Equal(t, first, *got.DealID, "the first linked deal wins")

	got, err = s.UpdateMatchStatus(ctx, m.ID, MatchDismissed, nil)
	require.NoError(t, err)
	assert.Equal(t, MatchConverted, got.Status)
}
