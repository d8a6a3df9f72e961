package state

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"StableLedger/internal/fault"
	fpmath "StableLedger/internal/math"
)

// StabilityPool owns the mapping from staker identity to Staker records and
// implements the scaled-balance reward accounting. Pool token custody lives
// in custody.PoolTotal; this manager only tracks per-staker state.
type StabilityPool struct {
	stakers map[uuid.UUID]*Staker
	globals *Globals
}

func NewStabilityPool(globals *Globals) *StabilityPool {
	return &StabilityPool{
		stakers: make(map[uuid.UUID]*Staker),
		globals: globals,
	}
}

// Get returns existing staker or nil
func (sp *StabilityPool) Get(owner uuid.UUID) *Staker {
	return sp.stakers[owner]
}

// Require returns the staker record for owner.
func (sp *StabilityPool) Require(owner uuid.UUID) (*Staker, error) {
	staker := sp.stakers[owner]
	if staker == nil {
		return nil, fmt.Errorf("%w: no stake for %s", fault.ErrPrecondition, owner)
	}
	return staker, nil
}

// Stake creates the staker record for owner at the current global entry
// points. Fails if the owner already staked.
func (sp *StabilityPool) Stake(owner uuid.UUID, amount int64) (*Staker, error) {
	if sp.stakers[owner] != nil {
		return nil, fmt.Errorf("%w: %s already staked", fault.ErrPrecondition, owner)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: stake amount %d must be positive", fault.ErrPrecondition, amount)
	}

	staker := &Staker{
		Owner:              owner,
		StakeAmount:        amount,
		EntryIndex:         sp.globals.ADAsUSDIndex,
		EntryScalingFactor: new(big.Int).Set(sp.globals.ScalingFactor),
		EffectiveBalance:   amount,
		StakeReward:        0,
		Version:            0,
	}
	sp.stakers[owner] = staker

	return staker, nil
}

// CheckReward accrues reward earned since the last checkpoint and recomputes
// the staker's effective balance under the current dilution factor, persists
// both onto the record, and returns the accumulated reward. Repeated calls
// with no intervening liquidation or withdrawal are idempotent.
func (sp *StabilityPool) CheckReward(owner uuid.UUID) (int64, *Staker, error) {
	staker, err := sp.Require(owner)
	if err != nil {
		return 0, nil, err
	}

	indexDelta := sp.globals.ADAsUSDIndex - staker.EntryIndex
	if indexDelta < 0 {
		return 0, nil, fmt.Errorf("%w: entry index %d ahead of global index %d",
			fault.ErrArithmetic, staker.EntryIndex, sp.globals.ADAsUSDIndex)
	}

	accrued, err := fpmath.MulDiv(staker.StakeAmount, indexDelta, fpmath.IndexScale)
	if err != nil {
		return 0, nil, err
	}
	reward := staker.StakeReward + accrued

	effective, err := sp.effectiveBalance(staker)
	if err != nil {
		return 0, nil, err
	}

	// Checkpoint: fold the accrued reward in and advance the entry index so
	// the same liquidation is never counted twice.
	staker.StakeReward = reward
	staker.EntryIndex = sp.globals.ADAsUSDIndex
	staker.EffectiveBalance = effective
	staker.Version++

	return reward, staker, nil
}

// WithdrawReward runs a reward check, then deducts amount from the accrued
// reward. The caller moves the corresponding collateral out of the reserve
// pool.
func (sp *StabilityPool) WithdrawReward(owner uuid.UUID, amount int64) (*Staker, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: withdrawal amount %d must be positive", fault.ErrPrecondition, amount)
	}

	reward, staker, err := sp.CheckReward(owner)
	if err != nil {
		return nil, err
	}

	if amount > reward {
		return nil, fmt.Errorf("%w: withdrawal %d exceeds accrued reward %d",
			fault.ErrSolvency, amount, reward)
	}

	staker.StakeReward = reward - amount
	staker.Version++

	return staker, nil
}

// effectiveBalance computes stakeAmount * currentFactor / entryFactor with a
// big.Int intermediate: the ratio of factors compounds every loss event since
// the staker entered.
func (sp *StabilityPool) effectiveBalance(staker *Staker) (int64, error) {
	scaled := new(big.Int).Mul(big.NewInt(staker.StakeAmount), sp.globals.ScalingFactor)
	effective, err := fpmath.VerifiedDivideBig(scaled, staker.EntryScalingFactor)
	if err != nil {
		return 0, err
	}
	if !effective.IsInt64() {
		return 0, fmt.Errorf("%w: effective balance overflows int64", fault.ErrArithmetic)
	}
	return effective.Int64(), nil
}

// Set directly sets a staker (used for snapshot restore)
func (sp *StabilityPool) Set(staker *Staker) {
	sp.stakers[staker.Owner] = staker
}

// All returns all stakers (for iteration)
func (sp *StabilityPool) All() []*Staker {
	result := make([]*Staker, 0, len(sp.stakers))
	for _, staker := range sp.stakers {
		result = append(result, staker)
	}
	return result
}

// Count returns the number of staker records.
func (sp *StabilityPool) Count() int {
	return len(sp.stakers)
}
