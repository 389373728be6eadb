// Package matchstore persists qualifying pair scores and owns the match status lifecycle.
package matchstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Matchmaker/internal/hermes"
	"github.com/MikeSquared-Agency/Matchmaker/internal/metrics"
	"github.com/MikeSquared-Agency/Matchmaker/internal/pipeline"
	"github.com/MikeSquared-Agency/Matchmaker/internal/scoring"
	"github.com/MikeSquared-Agency/Matchmaker/internal/store"
)

// DefaultMinScore is the lowest total that is persisted.
const DefaultMinScore = 30

var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrMatchConverted = errors.New("match already converted")
)

type MatchStore struct {
	store    store.Store
	hermes   hermes.Client
	deals    pipeline.Client
	minScore int
	logger   *slog.Logger

	locksMu sync.Mutex
	locks   map[uuid.UUID]*matchLock
}

// matchLock serializes status changes of one match within this process.
type matchLock struct {
	mu   sync.Mutex
	refs int
}

// New builds a MatchStore. hermes and deals may be nil; without a pipeline client
// converted matches get a locally issued deal ID.
func New(s store.Store, h hermes.Client, deals pipeline.Client, minScore int, logger *slog.Logger) *MatchStore {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &MatchStore{
		store:    s,
		hermes:   h,
		deals:    deals,
		minScore: minScore,
		logger:   logger.With("component", "matchstore"),
		locks:    make(map[uuid.UUID]*matchLock),
	}
}

func (m *MatchStore) lock(id uuid.UUID) (unlock func()) {
	m.locksMu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &matchLock{}
		m.locks[id] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.locksMu.Unlock()
	}
}

func (m *MatchStore) MinScore() int { return m.minScore }

// Upsert persists a pair score at or above the minimum. Lower scores are discarded
// without error and written reports false.
func (m *MatchStore) Upsert(ctx context.Context, ps scoring.PairScore) (match *store.Match, written bool, err error) {
	if ps.Total < m.minScore {
		return nil, false, nil
	}

	match = &store.Match{
		InvestorID:       ps.InvestorID,
		TargetID:         ps.TargetID,
		IndustryScore:    ps.Industry,
		GeographyScore:   ps.Geography,
		FinancialScore:   ps.Financial,
		TransactionScore: ps.Transaction,
		TotalScore:       ps.Total,
		Explanations:     ps.Explanations,
		Status:           store.MatchPending,
		ComputedAt:       time.Now().UTC(),
	}
	created, err := m.store.UpsertMatch(ctx, match)
	if err != nil {
		return nil, false, fmt.Errorf("upsert match %s/%s: %w", ps.InvestorID, ps.TargetID, err)
	}

	if created {
		m.publish(hermes.SubjectMatchCreated(match.ID.String()), hermes.MatchCreatedEvent{
			MatchID:    match.ID.String(),
			InvestorID: match.InvestorID.String(),
			TargetID:   match.TargetID.String(),
			TotalScore: match.TotalScore,
			Tier:       string(TierFor(match.TotalScore)),
		})
	}
	return match, true, nil
}

func (m *MatchStore) Get(ctx context.Context, id uuid.UUID) (*store.Match, error) {
	match, err := m.store.GetMatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", id, err)
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}
	return match, nil
}

func (m *MatchStore) Approve(ctx context.Context, id uuid.UUID, actor string) (*store.Match, error) {
	return m.transition(ctx, id, store.MatchApproved, actor)
}

func (m *MatchStore) Dismiss(ctx context.Context, id uuid.UUID, actor string) (*store.Match, error) {
	return m.transition(ctx, id, store.MatchDismissed, actor)
}

func (m *MatchStore) transition(ctx context.Context, id uuid.UUID, status store.MatchStatus, actor string) (*store.Match, error) {
	unlock := m.lock(id)
	defer unlock()

	match, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if match.Status == status {
		return match, nil
	}
	if match.Status == store.MatchConverted {
		return nil, ErrMatchConverted
	}
	match, err = m.store.UpdateMatchStatus(ctx, id, status, nil)
	if err != nil {
		return nil, fmt.Errorf("update match %s: %w", id, err)
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}
	// Another replica converted it between the read and the write.
	if match.Status == store.MatchConverted {
		return nil, ErrMatchConverted
	}

	metrics.RecordTransition(string(status))
	m.logger.Info("match status changed", "match_id", id, "status", status, "actor", actor)

	subject := hermes.SubjectMatchApproved(id.String())
	if status == store.MatchDismissed {
		subject = hermes.SubjectMatchDismissed(id.String())
	}
	m.publish(subject, statusEvent(match, actor))
	return match, nil
}

// Convert links the match to a new deal and marks it converted. Converting an already
// converted match returns its existing deal. Concurrent calls in one process create a
// single deal; across processes the first stored link wins and the pipeline can dedupe
// on the match ID carried in the request.
func (m *MatchStore) Convert(ctx context.Context, id uuid.UUID, actor string) (uuid.UUID, error) {
	unlock := m.lock(id)
	defer unlock()

	match, err := m.Get(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if match.Status == store.MatchConverted && match.DealID != nil {
		return *match.DealID, nil
	}

	dealID := uuid.New()
	if m.deals != nil {
		deal, err := m.deals.CreateDeal(ctx, pipeline.DealRequest{
			MatchID:    match.ID,
			InvestorID: match.InvestorID,
			TargetID:   match.TargetID,
			TotalScore: match.TotalScore,
			Actor:      actor,
		})
		if err != nil {
			return uuid.Nil, fmt.Errorf("create deal for match %s: %w", id, err)
		}
		dealID = deal.ID
	}

	match, err = m.store.UpdateMatchStatus(ctx, id, store.MatchConverted, &dealID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("convert match %s: %w", id, err)
	}
	if match == nil {
		return uuid.Nil, ErrMatchNotFound
	}
	if match.DealID == nil {
		return uuid.Nil, fmt.Errorf("convert match %s: no deal linked", id)
	}
	if *match.DealID != dealID {
		m.logger.Warn("match already converted elsewhere", "match_id", id, "deal_id", *match.DealID, "unlinked_deal_id", dealID)
		return *match.DealID, nil
	}

	metrics.RecordTransition(string(store.MatchConverted))
	m.logger.Info("match converted", "match_id", id, "deal_id", dealID, "actor", actor)
	m.publish(hermes.SubjectMatchConverted(id.String()), statusEvent(match, actor))
	return dealID, nil
}

func statusEvent(match *store.Match, actor string) hermes.MatchStatusEvent {
	evt := hermes.MatchStatusEvent{
		MatchID:    match.ID.String(),
		InvestorID: match.InvestorID.String(),
		TargetID:   match.TargetID.String(),
		Status:     string(match.Status),
		Actor:      actor,
	}
	if match.DealID != nil {
		evt.DealID = match.DealID.String()
	}
	return evt
}

func (m *MatchStore) publish(subject string, data interface{}) {
	if m.hermes == nil {
		return
	}
	if err := m.hermes.Publish(subject, data); err != nil {
		m.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
