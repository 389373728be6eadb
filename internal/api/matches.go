package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Matchmaker/internal/matchstore"
	"github.com/MikeSquared-Agency/Matchmaker/internal/store"
)

type MatchesHandler struct {
	matches *matchstore.MatchStore
}

func NewMatchesHandler(ms *matchstore.MatchStore) *MatchesHandler {
	return &MatchesHandler{matches: ms}
}

type ConvertResponse struct {
	MatchID uuid.UUID `json:"match_id"`
	DealID  uuid.UUID `json:"deal_id"`
	Status  string    `json:"status"`
}

func parseMatchQuery(r *http.Request) (matchstore.MatchQuery, error) {
	q := r.URL.Query()
	mq := matchstore.MatchQuery{
		IndustryID: q.Get("industry_id"),
		CountryID:  q.Get("country_id"),
	}

	ints := map[string]*int{"min_score": &mq.MinScore, "limit": &mq.Limit, "offset": &mq.Offset}
	for name, dst := range ints {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return mq, errInvalidParam(name)
		}
		*dst = n
	}

	tier, err := matchstore.ParseTier(q.Get("tier"))
	if err != nil {
		return mq, err
	}
	mq.Tier = tier

	groupBy, err := matchstore.ParseGroupBy(q.Get("group_by"))
	if err != nil {
		return mq, err
	}
	mq.GroupBy = groupBy

	if v := q.Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			status := store.MatchStatus(strings.TrimSpace(s))
			if !status.Valid() {
				return mq, errInvalidParam("status")
			}
			mq.Statuses = append(mq.Statuses, status)
		}
	}
	if v := q.Get("investor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return mq, errInvalidParam("investor_id")
		}
		mq.InvestorID = &id
	}
	if v := q.Get("target_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return mq, errInvalidParam("target_id")
		}
		mq.TargetID = &id
	}
	return mq, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return "invalid " + string(e) }

func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := parseMatchQuery(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	page, err := h.matches.List(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	if page.Matches == nil && page.Clusters == nil {
		page.Matches = []matchstore.MatchView{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *MatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid match id")
		return
	}
	match, err := h.matches.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchstore.MatchView{Match: match, Tier: matchstore.TierFor(match.TotalScore)})
}

func (h *MatchesHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matches.Approve)
}

func (h *MatchesHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.matches.Dismiss)
}

func (h *MatchesHandler) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id uuid.UUID, actor string) (*store.Match, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid match id")
		return
	}
	match, err := apply(r.Context(), id, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (h *MatchesHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid match id")
		return
	}
	dealID, err := h.matches.Convert(r.Context(), id, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConvertResponse{MatchID: id, DealID: dealID, Status: string(store.MatchConverted)})
}
