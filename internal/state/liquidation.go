package state

import (
	"fmt"

	"StableLedger/internal/custody"
	"StableLedger/internal/fault"
	fpmath "StableLedger/internal/math"
	"StableLedger/internal/metadata"
)

// LiquidationEngine closes under-collateralized positions. The burned debt is
// socialized across all stakers through the two global accumulators rather
// than by iterating the staker set: the ADA/sUSD index carries the seized
// collateral to stakers, the scaling factor carries the loss.
type LiquidationEngine struct {
	positions *PositionLedger
	globals   *Globals
	metadata  metadata.Store
}

// LiquidationResult reports the pool movement of one liquidation, for
// journaling and logging.
type LiquidationResult struct {
	PositionID        [32]byte
	Debt              int64
	CollateralSeized  int64
	PoolBeforeBurn    int64
	PoolAfterBurn     int64
	IndexContribution int64
	LossRatio         int64
}

func NewLiquidationEngine(positions *PositionLedger, globals *Globals, meta metadata.Store) *LiquidationEngine {
	return &LiquidationEngine{
		positions: positions,
		globals:   globals,
		metadata:  meta,
	}
}

// Liquidate burns the position's debt out of the stability pool, accumulates
// the dilution indices, and retires the position. The caller supplies the
// collateral/debt pair computed by the external monitor; both are checked
// against the private metadata commitment before anything mutates.
func (le *LiquidationEngine) Liquidate(
	positionID [32]byte,
	collateralAmt int64,
	debt int64,
	stakePool *custody.PoolTotal,
) (*LiquidationResult, error) {
	dep := le.positions.Get(positionID)
	if dep == nil {
		return nil, fmt.Errorf("%w: position %x not found", fault.ErrPrecondition, positionID[:4])
	}
	if dep.Status != PositionStatusActive {
		return nil, fmt.Errorf("%w: position %x is %s, not Active",
			fault.ErrPrecondition, positionID[:4], dep.Status)
	}

	meta, err := metadata.Verify(le.metadata, dep.Owner, positionID, dep.MetadataHash)
	if err != nil {
		return nil, err
	}
	if meta.Debt != debt || meta.Collateral != collateralAmt {
		return nil, fmt.Errorf("%w: liquidation amounts (%d, %d) disagree with position metadata (%d, %d)",
			fault.ErrPrecondition, collateralAmt, debt, meta.Collateral, meta.Debt)
	}

	if debt <= 0 {
		return nil, fmt.Errorf("%w: nothing to liquidate, debt %d", fault.ErrPrecondition, debt)
	}

	poolBefore := stakePool.Value()
	if poolBefore < debt {
		return nil, fmt.Errorf("%w: stake pool %d cannot absorb debt %d",
			fault.ErrSolvency, poolBefore, debt)
	}

	lossRatio, err := fpmath.MulDiv(debt, fpmath.FactorScale, poolBefore)
	if err != nil {
		return nil, err
	}

	// All checks passed; mutations below must all succeed together.
	if err := stakePool.Burn(debt); err != nil {
		return nil, err
	}
	poolAfter := stakePool.Value()

	// A drained pool gets no index contribution: there is no remaining stake
	// for the seized collateral to accrue against.
	var contribution int64
	if poolAfter > 0 {
		contribution, err = fpmath.MulDiv(collateralAmt, fpmath.IndexScale, poolAfter)
		if err != nil {
			return nil, err
		}
	}

	if err := le.globals.AccumulateIndex(contribution); err != nil {
		return nil, err
	}
	if err := le.globals.ApplyLossRatio(lossRatio); err != nil {
		return nil, err
	}
	if err := le.globals.RecordDebtReduction(debt); err != nil {
		return nil, err
	}

	// Retire the position: private metadata zeroed, commitment rebound,
	// public record emptied and closed terminal.
	zeroed := metadata.MintMetadata{}
	if err := le.metadata.Put(dep.Owner, positionID, zeroed); err != nil {
		return nil, err
	}
	dep.MetadataHash = metadata.Commitment(zeroed, positionID)
	dep.HealthFactor = 0
	dep.BorrowLimit = 0
	if err := le.positions.Transition(dep, PositionStatusLiquidated); err != nil {
		return nil, err
	}

	return &LiquidationResult{
		PositionID:        positionID,
		Debt:              debt,
		CollateralSeized:  collateralAmt,
		PoolBeforeBurn:    poolBefore,
		PoolAfterBurn:     poolAfter,
		IndexContribution: contribution,
		LossRatio:         lossRatio,
	}, nil
}
