package model

import "strings"

// Classification tags the kind of capability that guards a position.
type Classification string

const (
	ClassificationStandard Classification = "standard"
	ClassificationLocked   Classification = "locked"
	ClassificationUnknown  Classification = "unknown"
)

// ParseClassification maps the on-chain kind field to a Classification.
// Unrecognized values map to ClassificationUnknown rather than failing,
// since new capability kinds can appear on chain before we learn about them.
func ParseClassification(kind string) Classification {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "standard":
		return ClassificationStandard
	case "locked":
		return ClassificationLocked
	default:
		return ClassificationUnknown
	}
}

// CandidateID is a normalized on-chain object address ("0x"-prefixed,
// lowercase). Produced by the event paginator; duplicates may pass through
// when dedup is disabled.
type CandidateID string

// NormalizeCandidateID lowercases an address and ensures the 0x prefix.
// Returns "" for values that cannot be an object address.
func NormalizeCandidateID(raw string) CandidateID {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	if len(s) <= 2 {
		return ""
	}
	return CandidateID(s)
}

// CapabilityRecord is a capability object resolved and parsed into the fields
// the fetch passes need: which position it grants access to, what kind of
// capability it is, and who holds it.
type CapabilityRecord struct {
	ObjectID       CandidateID    `json:"object_id"`
	PositionID     string         `json:"position_id"`
	Classification Classification `json:"classification"`
	Owner          string         `json:"owner"`
}

// PositionSummary is the per-position financial snapshot produced by a
// successful fetch, in display units (10^18 fixed-point already scaled down).
type PositionSummary struct {
	PositionID     string         `json:"position_id"`
	DepositedUSD   float64        `json:"deposited_usd"`
	BorrowedUSD    float64        `json:"borrowed_usd"`
	NetUSD         float64        `json:"net_usd"`
	Classification Classification `json:"classification"`
	Owner          string         `json:"owner"`
	ObjectID       CandidateID    `json:"object_id"`
}

// TVLReport is the final aggregate for one pipeline run. Immutable once
// built; Positions is sorted by DepositedUSD descending.
type TVLReport struct {
	RunID         string            `json:"run_id"`
	TotalTVL      float64           `json:"total_tvl"`
	TotalDeposits float64           `json:"total_deposits"`
	TotalBorrows  float64           `json:"total_borrows"`
	PositionCount int               `json:"position_count"`
	Positions     []PositionSummary `json:"positions"`

	// Attempt accounting, so a partial result is never presented as complete.
	RecordsExtracted int     `json:"records_extracted"`
	MainPassFailures int     `json:"main_pass_failures"`
	FinalFailures    int     `json:"final_failures"`
	SuccessRate      float64 `json:"success_rate"`
}
