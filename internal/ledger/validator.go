package ledger

import (
	"fmt"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is balanced
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateGlobalBalance verifies system is zero-sum per asset
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}

// ValidatePoolsNonNegative verifies the custody-backed system accounts never
// go below zero
func (v *InvariantValidator) ValidatePoolsNonNegative(collateralAsset, stableAsset AssetID) error {
	if err := v.tracker.ValidateNonNegative(ReservePoolAccount(collateralAsset)); err != nil {
		return err
	}
	return v.tracker.ValidateNonNegative(StabilityPoolAccount(stableAsset))
}

// ValidatePoolBacking verifies the tracked pool accounts agree with the
// custody collaborator's totals
func (v *InvariantValidator) ValidatePoolBacking(
	collateralAsset AssetID, reserveTotal int64,
	stableAsset AssetID, stakeTotal int64,
) error {
	if got := v.tracker.GetReservePoolBalance(collateralAsset); got != reserveTotal {
		return fmt.Errorf("reserve pool account %d diverges from custody total %d", got, reserveTotal)
	}
	if got := v.tracker.GetStabilityPoolBalance(stableAsset); got != stakeTotal {
		return fmt.Errorf("stability pool account %d diverges from custody total %d", got, stakeTotal)
	}
	return nil
}

// ValidateSupplyMatches verifies the ledger's circulating supply equals the
// core's totalMint counter plus tokens parked in the stability pool
func (v *InvariantValidator) ValidateSupplyMatches(stableAsset AssetID, expected int64) error {
	if got := v.tracker.GetStableSupply(stableAsset); got != expected {
		return fmt.Errorf("stable supply %d diverges from expected %d", got, expected)
	}
	return nil
}
