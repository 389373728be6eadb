package rescan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Matchmaker/internal/metrics"
)

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

const (
	maxRetainedJobs = 50
	schedulerActor  = "scheduler"
)

// Job tracks an asynchronous full rescan.
type Job struct {
	ID         uuid.UUID          `json:"id"`
	Status     JobStatus          `json:"status"`
	Actor      string             `json:"actor,omitempty"`
	Weights    map[string]float64 `json:"weights,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Report     *RescanReport      `json:"report,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Start launches the periodic full rescan when an interval is configured.
func (o *Orchestrator) Start(ctx context.Context) {
	if o.opts.Interval <= 0 {
		return
	}
	if _, done, ok := o.track(); ok {
		go func() {
			defer done()
			o.scheduleLoop(ctx)
		}()
	}
}

// Stop cancels running jobs and event-triggered rescans and waits for them to finish.
// Nothing new starts afterwards.
func (o *Orchestrator) Stop() {
	o.jobsMu.Lock()
	o.stopped = true
	o.jobsMu.Unlock()
	o.baseCancel()
	o.wg.Wait()
}

// track registers one unit of background work. ok is false once Stop has been called.
func (o *Orchestrator) track() (ctx context.Context, done func(), ok bool) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if o.stopped {
		return nil, nil, false
	}
	o.wg.Add(1)
	return o.baseCtx, o.wg.Done, true
}

func (o *Orchestrator) scheduleLoop(ctx context.Context) {
	ticker := time.NewTicker(o.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.baseCtx.Done():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.StartFullRescan(nil, schedulerActor); err != nil &&
				!errors.Is(err, ErrRescanInProgress) && !errors.Is(err, ErrStopped) {
				o.logger.Warn("scheduled rescan not started", "error", err)
			}
		}
	}
}

// StartFullRescan runs RescanAll in the background. Only one full rescan runs at a time.
func (o *Orchestrator) StartFullRescan(weights map[string]float64, actor string) (*Job, error) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if o.stopped {
		return nil, ErrStopped
	}
	if o.running != nil {
		return nil, ErrRescanInProgress
	}

	job := &Job{
		ID:        uuid.New(),
		Status:    JobRunning,
		Actor:     actor,
		Weights:   weights,
		StartedAt: time.Now().UTC(),
	}
	ctx, cancel := context.WithCancel(o.baseCtx)
	o.running = job
	o.cancel = cancel
	o.jobs[job.ID] = job
	o.jobOrder = append(o.jobOrder, job.ID)
	o.pruneJobsLocked()
	metrics.RescanJobsInFlight.Inc()

	o.logger.Info("full rescan started", "job_id", job.ID, "actor", actor)
	snapshot := *job

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		report, err := o.rescanAll(ctx, weights, runMeta{jobID: job.ID.String(), actor: actor})
		o.finishJob(job.ID, report, err)
	}()
	return &snapshot, nil
}

func (o *Orchestrator) finishJob(id uuid.UUID, report RescanReport, err error) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	metrics.RescanJobsInFlight.Dec()

	job := o.jobs[id]
	now := time.Now().UTC()
	job.FinishedAt = &now
	switch {
	case errors.Is(err, context.Canceled):
		job.Status = JobCancelled
		job.Error = err.Error()
	case err != nil:
		job.Status = JobFailed
		job.Error = err.Error()
		o.logger.Error("full rescan failed", "job_id", id, "error", err)
	case report.Cancelled:
		job.Status = JobCancelled
		job.Report = &report
	default:
		job.Status = JobCompleted
		job.Report = &report
	}
	o.running = nil
	o.cancel = nil
}

// pruneJobsLocked drops the oldest finished jobs beyond the retention limit.
func (o *Orchestrator) pruneJobsLocked() {
	for len(o.jobOrder) > maxRetainedJobs {
		oldest := o.jobOrder[0]
		if o.running != nil && o.running.ID == oldest {
			return
		}
		delete(o.jobs, oldest)
		o.jobOrder = o.jobOrder[1:]
	}
}

// Job returns a snapshot of a tracked job.
func (o *Orchestrator) Job(id uuid.UUID) (*Job, bool) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	job, ok := o.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// CancelJob requests early termination of the running job. Pairs already being scored
// complete and stay persisted.
func (o *Orchestrator) CancelJob(id uuid.UUID) bool {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if o.running == nil || o.running.ID != id || o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}
