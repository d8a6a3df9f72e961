package projection

import (
	"sync"

	"github.com/google/uuid"
)

// RewardHistoryEntry records a single stability-pool reward payout.
type RewardHistoryEntry struct {
	Owner     uuid.UUID
	AssetID   uint16
	Amount    int64
	JournalID string
	Sequence  int64
	Timestamp int64
}

// RewardHistoryProjection maintains queryable payout history in memory.
// It is rebuilt on restart together with the other projections.
type RewardHistoryProjection struct {
	mu      sync.RWMutex
	entries []RewardHistoryEntry
}

func NewRewardHistoryProjection() *RewardHistoryProjection {
	return &RewardHistoryProjection{
		entries: make([]RewardHistoryEntry, 0),
	}
}

// AddEntry records a reward payout
func (p *RewardHistoryProjection) AddEntry(entry RewardHistoryEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
}

// QueryByOwner returns payout history for a staker, newest first.
func (p *RewardHistoryProjection) QueryByOwner(owner uuid.UUID, limit int) []RewardHistoryEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]RewardHistoryEntry, 0)
	for i := len(p.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if p.entries[i].Owner == owner {
			result = append(result, p.entries[i])
		}
	}

	return result
}
