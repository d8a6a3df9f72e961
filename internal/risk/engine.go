package risk

import (
	"math"

	fpmath "StableLedger/internal/math"
)

// HealthFactor computes floor(collateral * threshold / (debt * 100)).
// A factor >= 1 is the solvency gate for minting. A position with no debt
// is always healthy.
func HealthFactor(collateral, debt int64, threshold uint8) (int64, error) {
	if debt == 0 {
		return math.MaxInt64, nil
	}

	numerator := collateral * int64(threshold)
	denominator := debt * fpmath.PercentScale
	return fpmath.VerifiedDivide(numerator, denominator)
}

// BorrowLimit computes floor(lvt * collateral / 100): the maximum debt
// mintable against the declared collateral.
func BorrowLimit(collateral int64, lvt uint8) (int64, error) {
	return fpmath.MulDiv(int64(lvt), collateral, fpmath.PercentScale)
}

// MinimumCollateralValue computes floor(debt * mcr / 100): the collateral
// value that must stay locked against the outstanding debt.
func MinimumCollateralValue(debt int64, mcr uint8) (int64, error) {
	return fpmath.MulDiv(debt, int64(mcr), fpmath.PercentScale)
}

// Withdrawable computes how much collateral can leave the position at the
// given oracle price without breaching the minimum collateral ratio:
// floor((collateral*price - minCollateralValue) / price). Returns 0 when
// the position is already at or below the floor.
func Withdrawable(collateral, debt, oraclePrice int64, mcr uint8) (int64, error) {
	minValue, err := MinimumCollateralValue(debt, mcr)
	if err != nil {
		return 0, err
	}

	value := collateral * oraclePrice
	if value <= minValue {
		return 0, nil
	}

	return fpmath.VerifiedDivide(value-minValue, oraclePrice)
}
