// Package rescan drives pairwise scoring across investors and targets and persists
// qualifying matches.
package rescan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/Matchmaker/internal/currency"
	"github.com/MikeSquared-Agency/Matchmaker/internal/hermes"
	"github.com/MikeSquared-Agency/Matchmaker/internal/industry"
	"github.com/MikeSquared-Agency/Matchmaker/internal/matchstore"
	"github.com/MikeSquared-Agency/Matchmaker/internal/metrics"
	"github.com/MikeSquared-Agency/Matchmaker/internal/scoring"
	"github.com/MikeSquared-Agency/Matchmaker/internal/store"
)

var (
	ErrInvestorNotFound = errors.New("investor not found")
	ErrTargetNotFound   = errors.New("target not found")
	ErrRescanInProgress = errors.New("full rescan already in progress")
	ErrStopped          = errors.New("orchestrator stopped")
)

const (
	ScopeAll      = "all"
	ScopeInvestor = "investor"
	ScopeTarget   = "target"

	defaultWorkers = 8
)

type Options struct {
	// Workers bounds concurrent pair scoring.
	Workers int
	// Weights are the configured partial weights; request weights override them per key.
	Weights map[string]float64
	// Interval schedules a periodic full rescan. Zero disables it.
	Interval time.Duration
}

// RescanReport summarizes one run. Persisted is the number of matches written.
type RescanReport struct {
	Scope     string               `json:"scope"`
	Pairs     int                  `json:"pairs"`
	Scored    int                  `json:"scored"`
	Persisted int                  `json:"persisted"`
	Discarded int                  `json:"discarded"`
	Failed    int                  `json:"failed"`
	Cancelled bool                 `json:"cancelled,omitempty"`
	Weights   scoring.WeightVector `json:"weights"`
	Duration  time.Duration        `json:"duration_ns"`
}

// runMeta tags the completion event of a run.
type runMeta struct {
	jobID string
	actor string
}

type Orchestrator struct {
	store   store.Store
	matches *matchstore.MatchStore
	rates   currency.RateSource
	hermes  hermes.Client
	opts    Options
	logger  *slog.Logger

	jobsMu   sync.Mutex
	jobs     map[uuid.UUID]*Job
	jobOrder []uuid.UUID
	running  *Job
	cancel   context.CancelFunc

	// baseCtx parents background jobs and event-triggered rescans; Stop cancels it.
	baseCtx    context.Context
	baseCancel context.CancelFunc
	stopped    bool
	wg         sync.WaitGroup
}

// New builds an Orchestrator. rates and h may be nil: without a rate source amounts are
// compared as-is, without hermes no events are published or consumed.
func New(s store.Store, ms *matchstore.MatchStore, rates currency.RateSource, h hermes.Client, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:      s,
		matches:    ms,
		rates:      rates,
		hermes:     h,
		opts:       opts,
		logger:     logger.With("component", "rescan"),
		jobs:       make(map[uuid.UUID]*Job),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
}

// resolveWeights overlays request weights on the configured ones.
func (o *Orchestrator) resolveWeights(override map[string]float64) scoring.WeightVector {
	merged := make(map[string]float64, len(o.opts.Weights)+len(override))
	for k, v := range o.opts.Weights {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return scoring.ResolveWeights(merged)
}

// prepare loads the per-run collaborators once: industry catalog and currency rates.
func (o *Orchestrator) prepare(ctx context.Context, weights map[string]float64) (*scoring.Aggregator, error) {
	industries, err := o.store.ListIndustries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load industries: %w", err)
	}
	var conv scoring.Converter
	if o.rates != nil {
		table, err := o.rates.Rates(ctx)
		if err != nil {
			return nil, fmt.Errorf("load currency rates: %w", err)
		}
		conv = table
	}
	return scoring.NewAggregator(o.resolveWeights(weights), industry.NewCatalog(industries), conv), nil
}

// RescanAll scores every active investor against every active target.
func (o *Orchestrator) RescanAll(ctx context.Context, weights map[string]float64) (RescanReport, error) {
	return o.rescanAll(ctx, weights, runMeta{})
}

func (o *Orchestrator) rescanAll(ctx context.Context, weights map[string]float64, meta runMeta) (RescanReport, error) {
	investors, err := o.store.ListInvestors(ctx, store.EntityFilter{ActiveOnly: true})
	if err != nil {
		return RescanReport{}, fmt.Errorf("list investors: %w", err)
	}
	targets, err := o.store.ListTargets(ctx, store.EntityFilter{ActiveOnly: true})
	if err != nil {
		return RescanReport{}, fmt.Errorf("list targets: %w", err)
	}
	report, _, err := o.run(ctx, ScopeAll, weights, investors, targets, meta)
	return report, err
}

// RescanInvestor scores one investor against all active targets and returns the
// persisted matches, best first.
func (o *Orchestrator) RescanInvestor(ctx context.Context, id uuid.UUID, weights map[string]float64) ([]*store.Match, error) {
	inv, err := o.store.GetInvestor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get investor %s: %w", id, err)
	}
	if inv == nil {
		return nil, ErrInvestorNotFound
	}
	targets, err := o.store.ListTargets(ctx, store.EntityFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	_, matches, err := o.run(ctx, ScopeInvestor, weights, []*store.Investor{inv}, targets, runMeta{})
	return matches, err
}

// RescanTarget scores all active investors against one target and returns the
// persisted matches, best first.
func (o *Orchestrator) RescanTarget(ctx context.Context, id uuid.UUID, weights map[string]float64) ([]*store.Match, error) {
	tgt, err := o.store.GetTarget(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get target %s: %w", id, err)
	}
	if tgt == nil {
		return nil, ErrTargetNotFound
	}
	investors, err := o.store.ListInvestors(ctx, store.EntityFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list investors: %w", err)
	}
	_, matches, err := o.run(ctx, ScopeTarget, weights, investors, []*store.Target{tgt}, runMeta{})
	return matches, err
}

// ScorePair scores one pair without persisting it.
func (o *Orchestrator) ScorePair(ctx context.Context, investorID, targetID uuid.UUID, weights map[string]float64) (scoring.PairScore, error) {
	inv, err := o.store.GetInvestor(ctx, investorID)
	if err != nil {
		return scoring.PairScore{}, fmt.Errorf("get investor %s: %w", investorID, err)
	}
	if inv == nil {
		return scoring.PairScore{}, ErrInvestorNotFound
	}
	tgt, err := o.store.GetTarget(ctx, targetID)
	if err != nil {
		return scoring.PairScore{}, fmt.Errorf("get target %s: %w", targetID, err)
	}
	if tgt == nil {
		return scoring.PairScore{}, ErrTargetNotFound
	}
	agg, err := o.prepare(ctx, weights)
	if err != nil {
		return scoring.PairScore{}, err
	}
	return agg.Score(inv, tgt)
}

func (o *Orchestrator) run(ctx context.Context, scope string, weights map[string]float64, investors []*store.Investor, targets []*store.Target, meta runMeta) (RescanReport, []*store.Match, error) {
	start := time.Now()
	agg, err := o.prepare(ctx, weights)
	if err != nil {
		metrics.RecordRescan(scope, "error", time.Since(start).Seconds())
		o.publish(hermes.SubjectRescanFailed, hermes.RescanFailedEvent{
			JobID: meta.jobID,
			Scope: scope,
			Error: err.Error(),
		})
		return RescanReport{Scope: scope}, nil, err
	}

	report := RescanReport{Scope: scope, Pairs: len(investors) * len(targets), Weights: agg.Weights()}
	var (
		mu      sync.Mutex
		matches []*store.Match
	)
	failed, cancelled := o.forEachPair(ctx, investors, targets, func(ctx context.Context, inv *store.Investor, tgt *store.Target) error {
		ps, err := agg.Score(inv, tgt)
		if err != nil {
			return err
		}
		m, written, err := o.matches.Upsert(ctx, ps)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		report.Scored++
		if written {
			report.Persisted++
			matches = append(matches, m)
			metrics.RecordPair(metrics.PairPersisted, ps.Total)
		} else {
			report.Discarded++
			metrics.RecordPair(metrics.PairDiscarded, ps.Total)
		}
		return nil
	})
	report.Failed = failed
	report.Cancelled = cancelled
	report.Duration = time.Since(start)

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].TotalScore > matches[j].TotalScore })

	outcome := "completed"
	if cancelled {
		outcome = "cancelled"
	}
	metrics.RecordRescan(scope, outcome, report.Duration.Seconds())
	o.logger.Info("rescan finished",
		"scope", scope,
		"pairs", report.Pairs,
		"scored", report.Scored,
		"persisted", report.Persisted,
		"failed", report.Failed,
		"cancelled", cancelled,
		"duration_ms", report.Duration.Milliseconds(),
	)
	o.publish(hermes.SubjectRescanCompleted, hermes.RescanCompletedEvent{
		JobID:     meta.jobID,
		Scope:     scope,
		Scored:    report.Scored,
		Persisted: report.Persisted,
		Failed:    report.Failed,
		Cancelled: cancelled,
		Actor:     meta.actor,
		Duration:  report.Duration.String(),
		Timestamp: time.Now().UTC(),
	})
	return report, matches, nil
}

func (o *Orchestrator) publish(subject string, data interface{}) {
	if o.hermes == nil {
		return
	}
	if err := o.hermes.Publish(subject, data); err != nil {
		o.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// pairFunc handles one pair. A returned error or a panic marks the pair failed.
type pairFunc func(ctx context.Context, inv *store.Investor, tgt *store.Target) error

// forEachPair runs fn over the cross product on a bounded pool. Cancellation of ctx
// stops starting pairs; pairs already started run to completion.
func (o *Orchestrator) forEachPair(ctx context.Context, investors []*store.Investor, targets []*store.Target, fn pairFunc) (failed int, cancelled bool) {
	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	var (
		nFailed atomic.Int64
		skipped atomic.Bool
	)

loop:
	for _, inv := range investors {
		for _, tgt := range targets {
			if ctx.Err() != nil {
				cancelled = true
				break loop
			}
			inv, tgt := inv, tgt
			g.Go(func() error {
				// The pool slot may free up after cancellation.
				if ctx.Err() != nil {
					skipped.Store(true)
					return nil
				}
				if err := safely(ctx, inv, tgt, fn); err != nil {
					nFailed.Add(1)
					metrics.RecordPair(metrics.PairFailed, 0)
					o.logger.Warn("pair skipped",
						"investor_id", inv.ID,
						"target_id", tgt.ID,
						"error", err,
					)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return int(nFailed.Load()), cancelled || skipped.Load()
}

func safely(ctx context.Context, inv *store.Investor, tgt *store.Target, fn pairFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic scoring pair: %v", r)
		}
	}()
	return fn(ctx, inv, tgt)
}
