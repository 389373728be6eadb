package hermes

const (
	// Published by the matching engine.
	SubjectRescanCompleted = "prospect.rescan.completed"
	SubjectRescanFailed    = "prospect.rescan.failed"

	// Consumed by the matching engine.
	SubjectRescanRequest   = "prospect.rescan.request"
	SubjectInvestorUpdated = "crm.investor.*.updated"
	SubjectTargetUpdated   = "crm.target.*.updated"

	StreamName   = "PROSPECT_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

// StreamSubjects are captured by the JetStream stream for replay and audit.
var StreamSubjects = []string{"prospect.match.>", "prospect.rescan.>"}

func SubjectMatchCreated(matchID string) string   { return "prospect.match." + matchID + ".created" }
func SubjectMatchApproved(matchID string) string  { return "prospect.match." + matchID + ".approved" }
func SubjectMatchDismissed(matchID string) string { return "prospect.match." + matchID + ".dismissed" }
func SubjectMatchConverted(matchID string) string { return "prospect.match." + matchID + ".converted" }
