package state

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	fpmath "StableLedger/internal/math"

	"StableLedger/internal/fault"
)

// Globals holds the protocol-wide counters and the two liquidation dilution
// accumulators. ADAsUSDIndex only ever grows, ScalingFactor only ever
// shrinks; both monotonicity directions are enforced here so no caller can
// rewind a dilution event.
type Globals struct {
	MintCounter int64
	TotalMint   int64 // sum of debt over non-terminal positions
	Nonce       [32]byte

	// ADAsUSDIndex is scaled by fpmath.IndexScale, ScalingFactor by
	// fpmath.FactorScale (starts at exactly one).
	ADAsUSDIndex  int64
	ScalingFactor *big.Int
}

func NewGlobals() *Globals {
	return &Globals{
		ScalingFactor: fpmath.OneFactor(),
	}
}

// AdvanceNonce mixes a completed mint into the rolling nonce.
func (g *Globals) AdvanceNonce(positionID [32]byte, amount int64) {
	h := sha256.New()
	h.Write(g.Nonce[:])
	h.Write(positionID[:])
	h.Write(appendInt64LE(nil, amount))
	h.Write(appendInt64LE(nil, g.MintCounter))
	copy(g.Nonce[:], h.Sum(nil))
}

// RecordMint accounts a successful mint. A mint replaces the position's debt
// rather than adding to it, so the total tracks the delta between the new
// and previous private debt.
func (g *Globals) RecordMint(positionID [32]byte, newDebt, previousDebt int64) {
	g.MintCounter++
	g.TotalMint += newDebt - previousDebt
	g.AdvanceNonce(positionID, newDebt)
}

// RecordDebtReduction accounts debt leaving the system via repay burn or
// liquidation.
func (g *Globals) RecordDebtReduction(amount int64) error {
	if amount > g.TotalMint {
		return fmt.Errorf("%w: debt reduction %d exceeds total mint %d",
			fault.ErrArithmetic, amount, g.TotalMint)
	}
	g.TotalMint -= amount
	return nil
}

// AccumulateIndex adds a liquidation's per-unit collateral contribution
// (IndexScale fixed point) to the global index.
func (g *Globals) AccumulateIndex(delta int64) error {
	if delta < 0 {
		return fmt.Errorf("%w: negative index contribution %d", fault.ErrArithmetic, delta)
	}
	g.ADAsUSDIndex += delta
	return nil
}

// ApplyLossRatio multiplies the scaling factor by (1 - lossRatio), where
// lossRatio is FactorScale fixed point in [0, FactorScale]. Floor rounding,
// per the verified-division contract.
func (g *Globals) ApplyLossRatio(lossRatio int64) error {
	if lossRatio < 0 || lossRatio > fpmath.FactorScale {
		return fmt.Errorf("%w: loss ratio %d outside [0, %d]",
			fault.ErrArithmetic, lossRatio, int64(fpmath.FactorScale))
	}

	keep := big.NewInt(fpmath.FactorScale - lossRatio)
	next := new(big.Int).Mul(g.ScalingFactor, keep)
	next.Quo(next, big.NewInt(fpmath.FactorScale))

	if next.Cmp(g.ScalingFactor) > 0 {
		return fmt.Errorf("%w: scaling factor would increase", fault.ErrArithmetic)
	}
	g.ScalingFactor = next
	return nil
}

// CanonicalBytes returns deterministic serialization for hashing
func (g *Globals) CanonicalBytes() []byte {
	buf := make([]byte, 0, 128)

	buf = appendInt64LE(buf, g.MintCounter)
	buf = appendInt64LE(buf, g.TotalMint)
	buf = append(buf, g.Nonce[:]...)
	buf = appendInt64LE(buf, g.ADAsUSDIndex)

	// scaling_factor (length-prefixed big-endian magnitude)
	factorBytes := g.ScalingFactor.Bytes()
	buf = append(buf, byte(len(factorBytes)))
	buf = append(buf, factorBytes...)

	return buf
}
