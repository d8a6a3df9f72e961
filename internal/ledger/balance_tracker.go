package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// BalanceTracker maintains in-memory account balances
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// SetBalance overwrites an account balance (used during snapshot restore)
func (bt *BalanceTracker) SetBalance(key AccountKey, balance int64) {
	bt.balances[key] = balance
}

// === Pool and supply queries ===

// GetReservePoolBalance returns the locked collateral aggregate
func (bt *BalanceTracker) GetReservePoolBalance(assetID AssetID) int64 {
	return bt.GetBalance(ReservePoolAccount(assetID))
}

// GetStabilityPoolBalance returns the staked pegged-token aggregate
func (bt *BalanceTracker) GetStabilityPoolBalance(assetID AssetID) int64 {
	return bt.GetBalance(StabilityPoolAccount(assetID))
}

// GetStableSupply returns the outstanding pegged-token issuance. The supply
// account carries the liability side of every mint, so its balance is the
// negated circulating supply.
func (bt *BalanceTracker) GetStableSupply(assetID AssetID) int64 {
	return -bt.GetBalance(StableSupplyAccount(assetID))
}

// GetUserCollateral returns a user's tracked collateral movements
func (bt *BalanceTracker) GetUserCollateral(userID uuid.UUID, assetID AssetID) int64 {
	return bt.GetBalance(NewUserAccountKey(userID, SubTypeCollateral, assetID))
}

// GetUserRewardBalance returns a user's paid-out reward total
func (bt *BalanceTracker) GetUserRewardBalance(userID uuid.UUID, assetID AssetID) int64 {
	return bt.GetBalance(NewUserAccountKey(userID, SubTypeReward, assetID))
}

// === Invariant Checks ===

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	balance := bt.GetBalance(key)
	if balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
	}
	return nil
}

// ValidateSufficient checks an account can cover an outgoing amount
func (bt *BalanceTracker) ValidateSufficient(key AccountKey, required int64) error {
	balance := bt.GetBalance(key)
	if balance < required {
		return fmt.Errorf("insufficient balance on %s: have=%d, need=%d",
			key.AccountPath(), balance, required)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances (should be 0 for zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() map[AssetID]int64 {
	totals := make(map[AssetID]int64)

	for key, balance := range bt.balances {
		totals[key.AssetID] += balance
	}

	return totals
}

// Snapshot returns a copy of all balances (for state hashing)
func (bt *BalanceTracker) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}
