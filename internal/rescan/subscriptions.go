package rescan

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Matchmaker/internal/hermes"
)

// SetupSubscriptions wires rescan requests and CRM profile updates to the orchestrator.
func (o *Orchestrator) SetupSubscriptions() error {
	if o.hermes == nil {
		return nil
	}

	if err := o.hermes.Subscribe(hermes.SubjectRescanRequest, o.handleRescanRequest); err != nil {
		return err
	}
	if err := o.hermes.Subscribe(hermes.SubjectInvestorUpdated, o.handleInvestorUpdated); err != nil {
		return err
	}
	return o.hermes.Subscribe(hermes.SubjectTargetUpdated, o.handleTargetUpdated)
}

func (o *Orchestrator) handleRescanRequest(_ string, data []byte) {
	var evt hermes.RescanRequestEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		o.logger.Warn("invalid rescan request", "error", err)
		return
	}
	ctx, done, ok := o.track()
	if !ok {
		return
	}
	defer done()

	switch {
	case evt.InvestorID != "":
		id, err := uuid.Parse(evt.InvestorID)
		if err != nil {
			o.logger.Warn("invalid investor id in rescan request", "investor_id", evt.InvestorID)
			return
		}
		if _, err := o.RescanInvestor(ctx, id, evt.Weights); err != nil {
			o.logger.Warn("investor rescan failed", "investor_id", id, "error", err)
		}
	case evt.TargetID != "":
		id, err := uuid.Parse(evt.TargetID)
		if err != nil {
			o.logger.Warn("invalid target id in rescan request", "target_id", evt.TargetID)
			return
		}
		if _, err := o.RescanTarget(ctx, id, evt.Weights); err != nil {
			o.logger.Warn("target rescan failed", "target_id", id, "error", err)
		}
	default:
		if _, err := o.StartFullRescan(evt.Weights, evt.Actor); err != nil {
			o.logger.Warn("full rescan not started", "error", err)
		}
	}
}

func (o *Orchestrator) handleInvestorUpdated(subject string, data []byte) {
	id, ok := o.updatedEntity(subject, data)
	if !ok {
		return
	}
	ctx, done, ok := o.track()
	if !ok {
		return
	}
	defer done()
	if _, err := o.RescanInvestor(ctx, id, nil); err != nil {
		o.logger.Warn("investor rescan after update failed", "investor_id", id, "error", err)
	}
}

func (o *Orchestrator) handleTargetUpdated(subject string, data []byte) {
	id, ok := o.updatedEntity(subject, data)
	if !ok {
		return
	}
	ctx, done, ok := o.track()
	if !ok {
		return
	}
	defer done()
	if _, err := o.RescanTarget(ctx, id, nil); err != nil {
		o.logger.Warn("target rescan after update failed", "target_id", id, "error", err)
	}
}

// updatedEntity resolves the entity ID from crm.<kind>.<id>.updated, falling back to the
// payload. Deactivated entities are skipped.
func (o *Orchestrator) updatedEntity(subject string, data []byte) (uuid.UUID, bool) {
	var evt hermes.EntityUpdatedEvent
	if len(data) > 0 {
		if err := json.Unmarshal(data, &evt); err != nil {
			o.logger.Warn("invalid entity update event", "subject", subject, "error", err)
			return uuid.Nil, false
		}
	}
	if evt.Active != nil && !*evt.Active {
		return uuid.Nil, false
	}

	raw := evt.ID
	if parts := strings.Split(subject, "."); len(parts) == 4 {
		raw = parts[2]
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		o.logger.Warn("entity update without valid id", "subject", subject)
		return uuid.Nil, false
	}
	return id, true
}
