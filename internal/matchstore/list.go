package matchstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Matchmaker/internal/store"
)

// GroupBy selects the clustering of a match listing.
type GroupBy string

const (
	GroupNone     GroupBy = ""
	GroupInvestor GroupBy = "investor"
	GroupTarget   GroupBy = "target"
)

func ParseGroupBy(s string) (GroupBy, error) {
	switch GroupBy(s) {
	case GroupNone, GroupInvestor, GroupTarget:
		return GroupBy(s), nil
	}
	return GroupNone, fmt.Errorf("unknown group_by %q", s)
}

type MatchQuery struct {
	MinScore   int
	Tier       Tier
	IndustryID string
	CountryID  string
	Statuses   []store.MatchStatus
	InvestorID *uuid.UUID
	TargetID   *uuid.UUID
	GroupBy    GroupBy
	Limit      int
	Offset     int
}

// MatchView is a stored match with its tier.
type MatchView struct {
	*store.Match
	Tier Tier `json:"tier"`
}

// Cluster groups the matches of one investor or one target, best first.
type Cluster struct {
	Key      uuid.UUID   `json:"key"`
	TopScore int         `json:"top_score"`
	Matches  []MatchView `json:"matches"`
}

type MatchPage struct {
	Matches  []MatchView `json:"matches,omitempty"`
	Clusters []Cluster   `json:"clusters,omitempty"`
	Total    int         `json:"total"`
	Limit    int         `json:"limit"`
	Offset   int         `json:"offset"`
}

const defaultLimit = 100

// List returns matches ordered by total score, highest first. Converted matches are
// left out unless a status filter asks for them.
func (m *MatchStore) List(ctx context.Context, q MatchQuery) (MatchPage, error) {
	filter := store.MatchFilter{
		MinScore:   q.MinScore,
		Statuses:   q.Statuses,
		InvestorID: q.InvestorID,
		TargetID:   q.TargetID,
		IndustryID: q.IndustryID,
		CountryID:  q.CountryID,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if q.Tier != TierNone {
		lo, hi := q.Tier.Bounds()
		if lo > filter.MinScore {
			filter.MinScore = lo
		}
		filter.MaxScore = hi
	}

	matches, total, err := m.store.ListMatches(ctx, filter)
	if err != nil {
		return MatchPage{}, fmt.Errorf("list matches: %w", err)
	}

	page := MatchPage{Total: total, Limit: filter.Limit, Offset: filter.Offset}
	views := make([]MatchView, len(matches))
	for i, match := range matches {
		views[i] = MatchView{Match: match, Tier: TierFor(match.TotalScore)}
	}
	if q.GroupBy == GroupNone {
		page.Matches = views
		return page, nil
	}
	page.Clusters = cluster(views, q.GroupBy)
	return page, nil
}

// cluster keeps the incoming order, so clusters are ordered by their best match.
func cluster(views []MatchView, by GroupBy) []Cluster {
	index := make(map[uuid.UUID]int)
	var out []Cluster
	for _, v := range views {
		key := v.InvestorID
		if by == GroupTarget {
			key = v.TargetID
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Cluster{Key: key, TopScore: v.TotalScore})
		}
		out[i].Matches = append(out[i].Matches, v)
	}
	return out
}
