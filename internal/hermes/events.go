package hermes

import "time"

type MatchCreatedEvent struct {
	MatchID    string `json:"match_id"`
	InvestorID string `json:"investor_id"`
	TargetID   string `json:"target_id"`
	TotalScore int    `json:"total_score"`
	Tier       string `json:"tier"`
}

type MatchStatusEvent struct {
	MatchID    string `json:"match_id"`
	InvestorID string `json:"investor_id"`
	TargetID   string `json:"target_id"`
	Status     string `json:"status"`
	DealID     string `json:"deal_id,omitempty"`
	Actor      string `json:"actor,omitempty"`
}

type RescanCompletedEvent struct {
	JobID     string    `json:"job_id,omitempty"`
	Scope     string    `json:"scope"`
	Scored    int       `json:"scored"`
	Persisted int       `json:"persisted"`
	Failed    int       `json:"failed"`
	Cancelled bool      `json:"cancelled,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Duration  string    `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

type RescanFailedEvent struct {
	JobID string `json:"job_id,omitempty"`
	Scope string `json:"scope"`
	Error string `json:"error"`
}

// RescanRequestEvent asks for a rescan. With neither ID set the whole cross product is
// rescanned.
type RescanRequestEvent struct {
	InvestorID string             `json:"investor_id,omitempty"`
	TargetID   string             `json:"target_id,omitempty"`
	Weights    map[string]float64 `json:"weights,omitempty"`
	Actor      string             `json:"actor,omitempty"`
}

// EntityUpdatedEvent is published by the CRM when an investor or target profile changes.
type EntityUpdatedEvent struct {
	ID     string `json:"id"`
	Active *bool  `json:"active,omitempty"`
}
