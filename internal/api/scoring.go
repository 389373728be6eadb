package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Matchmaker/internal/rescan"
	"github.com/MikeSquared-Agency/Matchmaker/internal/store"
)

type ScoringHandler struct {
	orch *rescan.Orchestrator
}

func NewScoringHandler(o *rescan.Orchestrator) *ScoringHandler {
	return &ScoringHandler{orch: o}
}

type ScoreRequest struct {
	InvestorID string             `json:"investor_id"`
	TargetID   string             `json:"target_id"`
	Weights    map[string]float64 `json:"weights,omitempty"`
}

type RescanRequest struct {
	Weights map[string]float64 `json:"weights,omitempty"`
}

// decodeOptional decodes a JSON body that may be absent.
func decodeOptional(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *ScoringHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	investorID, err := uuid.Parse(req.InvestorID)
	if err != nil {
		badRequest(w, "invalid investor_id")
		return
	}
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		badRequest(w, "invalid target_id")
		return
	}

	ps, err := h.orch.ScorePair(r.Context(), investorID, targetID, req.Weights)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ScoringHandler) LiveScore(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid investor id")
		return
	}
	var criteria rescan.Criteria
	if err := decodeOptional(r, &criteria); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	results, err := h.orch.ScoreLive(r.Context(), id, criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []rescan.LiveResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *ScoringHandler) StartRescan(w http.ResponseWriter, r *http.Request) {
	var req RescanRequest
	if err := decodeOptional(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	job, err := h.orch.StartFullRescan(req.Weights, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *ScoringHandler) Job(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid job id")
		return
	}
	job, ok := h.orch.Job(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *ScoringHandler) CancelRescan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid job id")
		return
	}
	if !h.orch.CancelJob(id) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job is not running"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (h *ScoringHandler) RescanInvestor(w http.ResponseWriter, r *http.Request) {
	h.rescanEntity(w, r, h.orch.RescanInvestor)
}

func (h *ScoringHandler) RescanTarget(w http.ResponseWriter, r *http.Request) {
	h.rescanEntity(w, r, h.orch.RescanTarget)
}

type entityRescan func(ctx context.Context, id uuid.UUID, weights map[string]float64) ([]*store.Match, error)

func (h *ScoringHandler) rescanEntity(w http.ResponseWriter, r *http.Request, run entityRescan) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	var req RescanRequest
	if err := decodeOptional(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	matches, err := run(r.Context(), id, req.Weights)
	if err != nil {
		writeError(w, err)
		return
	}
	if matches == nil {
		matches = []*store.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}
