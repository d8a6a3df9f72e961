package query

import (
	"github.com/google/uuid"
)

// RewardBalanceResponse represents a staker's reward state for API queries.
type RewardBalanceResponse struct {
	Owner uuid.UUID `json:"owner"`
	Asset string    `json:"asset"`

	// Ledger values (from journal entries)
	PendingReward   int64 `json:"pending_reward"`   // credited, not yet withdrawn
	LifetimePayouts int64 `json:"lifetime_payouts"` // sum of all payouts

	// Metadata
	AsOfSequence int64 `json:"as_of_sequence"` // last applied event sequence
}
