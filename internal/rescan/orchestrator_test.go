package rescan

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Matchmaker/internal/currency"
	"github.com/MikeSquared-Agency/Matchmaker/internal/hermes"
	"github.com/MikeSquared-Agency/Matchmaker/internal/matchstore"
	"github.com/MikeSquared-Agency/Matchmaker/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

type mockHermes struct {
	mu        sync.Mutex
	published []string
	handlers  map[string]func(string, []byte)
}

func newMockHermes() *mockHermes {
	return &mockHermes{handlers: make(map[string]func(string, []byte))}
}

func (m *mockHermes) Publish(subject string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, subject)
	return nil
}

func (m *mockHermes) Subscribe(subject string, handler func(string, []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[subject] = handler
	return nil
}

func (m *mockHermes) Close() {}

func (m *mockHermes) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.published...)
}

func (m *mockHermes) deliver(pattern, subject string, payload interface{}) {
	m.mu.Lock()
	h := m.handlers[pattern]
	m.mu.Unlock()
	data, _ := json.Marshal(payload)
	h(subject, data)
}

type fixture struct {
	store     *store.MemoryStore
	hermes    *mockHermes
	orch      *Orchestrator
	investors []uuid.UUID
	perfect   uuid.UUID // every dimension aligned: 100
	abroad    uuid.UUID // HQ outside preferred countries: 75
	empty     uuid.UUID // no profile data: discarded
	broken    uuid.UUID // malformed industries: failed
}

func investor(name string) *store.Investor {
	return &store.Investor{
		Name:   name,
		Active: true,
		Profile: store.Profile{
			PreferredIndustries: raw(`[7]`),
			TargetCountries:     raw(`[{"id": 12}]`),
			Purposes:            raw(`["Market expansion"]`),
		},
		Financial: store.FinancialProfile{
			Currency:            "USD",
			InvestmentRange:     raw(`{"min": 100000, "max": 500000}`),
			OwnershipConditions: raw(`["Majority stake"]`),
		},
	}
}

func target(name, industries, hq string) *store.Target {
	return &store.Target{
		Name:   name,
		Active: true,
		Profile: store.Profile{
			Industries: raw(industries),
			HQCountry:  raw(hq),
			Purposes:   raw(`["Market expansion"]`),
		},
		Financial: store.FinancialProfile{
			Currency:            "EUR",
			InvestmentRange:     raw(`[200000, 300000]`),
			OwnershipConditions: raw(`["majority stake"]`),
		},
	}
}

func newFixture(t *testing.T, s store.Store, mem *store.MemoryStore) *fixture {
	t.Helper()
	f := &fixture{store: mem, hermes: newMockHermes()}

	mem.SetIndustries([]store.Industry{
		{ID: 7, Name: "Healthcare", Canonical: true},
		{ID: 8, Name: "Medical Devices", Canonical: true},
	})
	for _, name := range []string{"Northwind", "Contoso", "Fabrikam"} {
		inv := investor(name)
		mem.PutInvestor(inv)
		f.investors = append(f.investors, inv.ID)
	}
	dormant := investor("Dormant")
	dormant.Active = false
	mem.PutInvestor(dormant)

	perfect := target("Acme Health", `[7]`, `12`)
	abroad := target("Globex Medical", `[{"id": 7}]`, `{"id": 99}`)
	empty := &store.Target{Name: "Initech", Active: true}
	broken := target("Umbrella", `not json`, `12`)
	for _, tgt := range []*store.Target{perfect, abroad, empty, broken} {
		mem.PutTarget(tgt)
	}
	f.perfect, f.abroad, f.empty, f.broken = perfect.ID, abroad.ID, empty.ID, broken.ID

	rates := currency.NewRateTable("USD", map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("1.1"),
	})
	ms := matchstore.New(s, f.hermes, nil, matchstore.DefaultMinScore, discardLogger())
	f.orch = New(s, ms, rates, f.hermes, Options{Workers: 3}, discardLogger())
	t.Cleanup(f.orch.Stop)
	return f
}

func setup(t *testing.T) *fixture {
	mem := store.NewMemoryStore()
	return newFixture(t, mem, mem)
}

func countMatches(t *testing.T, s store.Store) int {
	t.Helper()
	_, total, err := s.ListMatches(context.Background(), store.MatchFilter{IncludeConverted: true})
	require.NoError(t, err)
	return total
}

func TestRescanAllCountsOutcomes(t *testing.T) {
	f := setup(t)

	report, err := f.orch.RescanAll(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, ScopeAll, report.Scope)
	assert.Equal(t, 12, report.Pairs)
	assert.Equal(t, 9, report.Scored)
	assert.Equal(t, 6, report.Persisted)
	assert.Equal(t, 3, report.Discarded)
	assert.Equal(t, 3, report.Failed)
	assert.False(t, report.Cancelled)
	assert.Equal(t, 6, countMatches(t, f.store))
	assert.Contains(t, f.hermes.subjects(), hermes.SubjectRescanCompleted)
}

func TestRescanAllIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.orch.RescanAll(ctx, nil)
	require.NoError(t, err)
	first, err := f.store.GetMatchByPair(ctx, f.investors[0], f.perfect)
	require.NoError(t, err)
	require.NotNil(t, first)

	_, err = f.orch.RescanAll(ctx, nil)
	require.NoError(t, err)
	second, err := f.store.GetMatchByPair(ctx, f.investors[0], f.perfect)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TotalScore, second.TotalScore)
	assert.Equal(t, 6, countMatches(t, f.store))
}

func TestRescanInvestorReturnsBestFirst(t *testing.T) {
	f := setup(t)

	matches, err := f.orch.RescanInvestor(context.Background(), f.investors[0], nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, f.perfect, matches[0].TargetID)
	assert.Equal(t, 100, matches[0].TotalScore)
	assert.Equal(t, f.abroad, matches[1].TargetID)
	assert.Equal(t, 75, matches[1].TotalScore)
}

func TestRescanTargetCoversActiveInvestors(t *testing.T) {
	f := setup(t)

	matches, err := f.orch.RescanTarget(context.Background(), f.perfect, nil)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.Contains(t, f.investors, m.InvestorID)
	}
}

func TestRescanWeightOverride(t *testing.T) {
	f := setup(t)

	matches, err := f.orch.RescanInvestor(context.Background(), f.investors[0], map[string]float64{"geography": 0})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 100, matches[0].TotalScore)
	assert.Equal(t, 100, matches[1].TotalScore)
}

func TestUnknownEntities(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.orch.RescanInvestor(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrInvestorNotFound)

	_, err = f.orch.RescanTarget(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	_, err = f.orch.ScorePair(ctx, f.investors[0], uuid.New(), nil)
	assert.ErrorIs(t, err, ErrTargetNotFound)

	_, err = f.orch.ScoreLive(ctx, uuid.New(), Criteria{})
	assert.ErrorIs(t, err, ErrInvestorNotFound)
}

func TestScorePairDoesNotPersist(t *testing.T) {
	f := setup(t)

	ps, err := f.orch.ScorePair(context.Background(), f.investors[0], f.abroad, nil)
	require.NoError(t, err)
	assert.Equal(t, 75, ps.Total)
	assert.Equal(t, 0.0, ps.Geography)
	assert.Equal(t, 0, countMatches(t, f.store))
}

func TestRescanCancelledBeforeStart(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.orch.RescanAll(ctx, nil)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 0, report.Scored)
	assert.Equal(t, 0, countMatches(t, f.store))
}

func TestScoreLiveAppliesCriteriaWithoutPersisting(t *testing.T) {
	f := setup(t)

	results, err := f.orch.ScoreLive(context.Background(), f.investors[0], Criteria{
		TargetCountries: raw(`[99]`),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, f.abroad, results[0].TargetID)
	assert.Equal(t, 100, results[0].Total)
	assert.Equal(t, 1.0, results[0].DimensionScores["geography"])
	assert.Equal(t, 75, results[1].Total)
	assert.NotEmpty(t, results[0].Explanations["industry"])

	assert.Equal(t, 0, countMatches(t, f.store))

	stored, err := f.store.GetInvestor(context.Background(), f.investors[0])
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": 12}]`, string(stored.Profile.TargetCountries))
}

func TestScoreLiveMinScoreAndLimit(t *testing.T) {
	f := setup(t)
	zero := 0

	results, err := f.orch.ScoreLive(context.Background(), f.investors[0], Criteria{MinScore: &zero})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = f.orch.ScoreLive(context.Background(), f.investors[0], Criteria{Limit: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, f.perfect, results[0].TargetID)
}

func TestCriteriaIndustriesReplaceBothIndustryFields(t *testing.T) {
	inv := investor("Northwind")
	inv.Profile.Industries = raw(`[8]`)

	out := Criteria{Industries: raw(`["Fintech"]`), Currency: "EUR"}.apply(inv)
	assert.JSONEq(t, `["Fintech"]`, string(out.Profile.PreferredIndustries))
	assert.Nil(t, out.Profile.Industries)
	assert.Equal(t, "EUR", out.Financial.Currency)
	assert.Equal(t, "USD", inv.Financial.Currency)
	assert.JSONEq(t, `[8]`, string(inv.Profile.Industries))
}

func TestSafelyRecoversPanics(t *testing.T) {
	err := safely(context.Background(), &store.Investor{}, &store.Target{},
		func(context.Context, *store.Investor, *store.Target) error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

// blockingStore holds ListInvestors until released so a job stays running.
type blockingStore struct {
	*store.MemoryStore
	release chan struct{}
}

func (b *blockingStore) ListInvestors(ctx context.Context, filter store.EntityFilter) ([]*store.Investor, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.MemoryStore.ListInvestors(ctx, filter)
}

func TestFullRescanJobLifecycle(t *testing.T) {
	mem := store.NewMemoryStore()
	bs := &blockingStore{MemoryStore: mem, release: make(chan struct{})}
	f := newFixture(t, bs, mem)

	job, err := f.orch.StartFullRescan(nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, JobRunning, job.Status)

	_, err = f.orch.StartFullRescan(nil, "bob")
	assert.ErrorIs(t, err, ErrRescanInProgress)

	close(bs.release)
	require.Eventually(t, func() bool {
		got, ok := f.orch.Job(job.ID)
		return ok && got.Status == JobCompleted
	}, 2*time.Second, 10*time.Millisecond)

	got, _ := f.orch.Job(job.ID)
	require.NotNil(t, got.Report)
	assert.Equal(t, 6, got.Report.Persisted)
	assert.Equal(t, "alice", got.Actor)
	assert.NotNil(t, got.FinishedAt)

	next, err := f.orch.StartFullRescan(nil, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, next.ID)

	_, ok := f.orch.Job(uuid.New())
	assert.False(t, ok)
}

func TestFullRescanJobCancel(t *testing.T) {
	mem := store.NewMemoryStore()
	bs := &blockingStore{MemoryStore: mem, release: make(chan struct{})}
	f := newFixture(t, bs, mem)

	job, err := f.orch.StartFullRescan(nil, "alice")
	require.NoError(t, err)
	assert.False(t, f.orch.CancelJob(uuid.New()))
	assert.True(t, f.orch.CancelJob(job.ID))

	require.Eventually(t, func() bool {
		got, ok := f.orch.Job(job.ID)
		return ok && got.Status == JobCancelled
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, countMatches(t, mem))
}

func TestSubscriptionsRescanOnUpdates(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.orch.SetupSubscriptions())

	invID := f.investors[1]
	f.hermes.deliver(hermes.SubjectInvestorUpdated, "crm.investor."+invID.String()+".updated", hermes.EntityUpdatedEvent{})

	matches, _, err := f.store.ListMatches(context.Background(), store.MatchFilter{InvestorID: &invID})
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	inactive := false
	f.hermes.deliver(hermes.SubjectTargetUpdated, "crm.target."+f.abroad.String()+".updated",
		hermes.EntityUpdatedEvent{Active: &inactive})
	tgtID := f.abroad
	matches, _, err = f.store.ListMatches(context.Background(), store.MatchFilter{TargetID: &tgtID})
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	f.hermes.deliver(hermes.SubjectRescanRequest, hermes.SubjectRescanRequest,
		hermes.RescanRequestEvent{TargetID: f.abroad.String()})
	matches, _, err = f.store.ListMatches(context.Background(), store.MatchFilter{TargetID: &tgtID})
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

// cancellingStore cancels the run after a number of match writes.
type cancellingStore struct {
	*store.MemoryStore
	after  int32
	writes atomic.Int32
	cancel context.CancelFunc
}

func (c *cancellingStore) UpsertMatch(ctx context.Context, m *store.Match) (bool, error) {
	created, err := c.MemoryStore.UpsertMatch(ctx, m)
	if c.writes.Add(1) == c.after {
		c.cancel()
	}
	return created, err
}

func TestRescanCancelledMidRunKeepsCompletedMatches(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cs := &cancellingStore{MemoryStore: mem, after: 2, cancel: cancel}
	f := newFixture(t, cs, mem)

	ms := matchstore.New(cs, nil, nil, matchstore.DefaultMinScore, discardLogger())
	orch := New(cs, ms, f.orch.rates, nil, Options{Workers: 1}, discardLogger())
	t.Cleanup(orch.Stop)

	report, err := orch.RescanAll(ctx, nil)
	require.NoError(t, err)

	assert.True(t, report.Cancelled)
	assert.Equal(t, 2, report.Persisted)
	assert.Equal(t, report.Persisted, countMatches(t, mem))
	assert.Less(t, report.Scored+report.Failed, report.Pairs)
}

func TestStopRejectsNewWork(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.orch.SetupSubscriptions())
	f.orch.Stop()

	_, err := f.orch.StartFullRescan(nil, "alice")
	assert.ErrorIs(t, err, ErrStopped)

	invID := f.investors[0]
	f.hermes.deliver(hermes.SubjectInvestorUpdated, "crm.investor."+invID.String()+".updated", hermes.EntityUpdatedEvent{})
	assert.Equal(t, 0, countMatches(t, f.store))
}

func TestStopRacingStartFullRescan(t *testing.T) {
	f := setup(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.StartFullRescan(nil, "alice")
			if err != nil {
				assert.True(t, errors.Is(err, ErrRescanInProgress) || errors.Is(err, ErrStopped), "unexpected error %v", err)
			}
		}()
	}
	f.orch.Stop()
	wg.Wait()

	_, err := f.orch.StartFullRescan(nil, "alice")
	assert.ErrorIs(t, err, ErrStopped)
}

// gatedStore blocks ListTargets until the context ends and records why it ended.
type gatedStore struct {
	*store.MemoryStore
	entered chan struct{}
	ended   chan error
}

func (g *gatedStore) ListTargets(ctx context.Context, _ store.EntityFilter) ([]*store.Target, error) {
	close(g.entered)
	<-ctx.Done()
	g.ended <- ctx.Err()
	return nil, ctx.Err()
}

func TestStopCancelsEventTriggeredRescan(t *testing.T) {
	mem := store.NewMemoryStore()
	gs := &gatedStore{MemoryStore: mem, entered: make(chan struct{}), ended: make(chan error, 1)}
	f := newFixture(t, gs, mem)
	require.NoError(t, f.orch.SetupSubscriptions())

	invID := f.investors[0]
	handled := make(chan struct{})
	go func() {
		defer close(handled)
		f.hermes.deliver(hermes.SubjectInvestorUpdated, "crm.investor."+invID.String()+".updated", hermes.EntityUpdatedEvent{})
	}()

	select {
	case <-gs.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("rescan never reached the store")
	}

	stopped := make(chan struct{})
	go func() {
		f.orch.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while an event rescan was running")
	}
	assert.ErrorIs(t, <-gs.ended, context.Canceled)
	<-handled
}
