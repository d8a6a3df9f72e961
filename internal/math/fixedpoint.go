package math

import (
	"math/big"
	"sync"
)

// Fixed-point scales used across the core.
const (
	// PercentScale: protocol risk parameters (LVT, MCR, liquidation
	// threshold) are whole percentages.
	PercentScale = 100

	// IndexScale: resolution of the ADA/sUSD exchange index accumulated
	// per liquidation.
	IndexScale = 1_000_000_000_000 // 1e12

	// FactorScale: resolution of the cumulative scaling factor. Repeated
	// multiplication by (1 - lossRatio) across many liquidations needs the
	// wide scale to keep dilution drift below one base unit per staker.
	FactorScale = 1_000_000_000_000_000_000 // 1e18
)

// OneFactor returns the scaling factor identity (1.0 at FactorScale).
func OneFactor() *big.Int {
	return big.NewInt(FactorScale)
}

// bigIntPool recycles big.Int intermediates on the hot path.
var bigIntPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigIntPool.Get().(*big.Int)
}

func putBig(v *big.Int) {
	v.SetInt64(0)
	bigIntPool.Put(v)
}

// Mul128 performs a * b in a big.Int to prevent int64 overflow.
// The caller owns the returned value.
func Mul128(a, b int64) *big.Int {
	result := new(big.Int)
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// MulDiv computes floor(a * b / den) with a big.Int intermediate.
// Fails with ErrArithmetic when den <= 0 or the quotient exceeds int64.
func MulDiv(a, b, den int64) (int64, error) {
	if den <= 0 {
		return 0, divisorErr(den)
	}

	num := getBig()
	num.Mul(big.NewInt(a), big.NewInt(b))
	num.Div(num, big.NewInt(den))
	ok := num.IsInt64()
	out := num.Int64()
	putBig(num)

	if !ok {
		return 0, overflowErr(a, b, den)
	}
	return out, nil
}
