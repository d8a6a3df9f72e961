package state

import (
	"math/big"

	"github.com/google/uuid"
)

// Staker is one stability-pool participant. Reward and dilution accounting is
// lazy: liquidations only touch the global index and scaling factor, and each
// staker's record catches up to the globals the next time a reward check runs
// against it.
type Staker struct {
	Owner       uuid.UUID
	StakeAmount int64

	// EntryIndex is the global ADA/sUSD index captured when reward accrual
	// last checkpointed (IndexScale fixed point).
	EntryIndex int64

	// EntryScalingFactor is the global scaling factor captured at stake time
	// (FactorScale fixed point). The ratio current/entry is this staker's
	// share of every loss event since.
	EntryScalingFactor *big.Int

	EffectiveBalance int64
	StakeReward      int64
	Version          int64
}

// CanonicalBytes returns deterministic serialization for hashing
func (s *Staker) CanonicalBytes() []byte {
	buf := make([]byte, 0, 96)

	// owner (16 bytes UUID binary)
	buf = append(buf, s.Owner[:]...)

	// stake_amount (8 bytes LE)
	buf = appendInt64LE(buf, s.StakeAmount)

	// entry_index (8 bytes LE)
	buf = appendInt64LE(buf, s.EntryIndex)

	// entry_scaling_factor (length-prefixed big-endian magnitude)
	factorBytes := s.EntryScalingFactor.Bytes()
	buf = append(buf, byte(len(factorBytes)))
	buf = append(buf, factorBytes...)

	// effective_balance (8 bytes LE)
	buf = appendInt64LE(buf, s.EffectiveBalance)

	// stake_reward (8 bytes LE)
	buf = appendInt64LE(buf, s.StakeReward)

	return buf
}
