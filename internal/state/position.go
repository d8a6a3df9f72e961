package state

import (
	"github.com/google/uuid"
)

// PositionStatus tracks a collateral position's lifecycle.
type PositionStatus int32

const (
	PositionStatusInactive PositionStatus = iota
	PositionStatusActive
	PositionStatusClosed
	PositionStatusLiquidated
)

func (ps PositionStatus) String() string {
	switch ps {
	case PositionStatusInactive:
		return "Inactive"
	case PositionStatusActive:
		return "Active"
	case PositionStatusClosed:
		return "Closed"
	case PositionStatusLiquidated:
		return "Liquidated"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates status transitions. Closed and Liquidated are
// terminal: no transition leaves them.
func (ps PositionStatus) CanTransitionTo(next PositionStatus) bool {
	validTransitions := map[PositionStatus][]PositionStatus{
		PositionStatusInactive: {
			PositionStatusActive, // first mint
			PositionStatusClosed, // withdraw before ever minting
		},
		PositionStatusActive: {
			PositionStatusClosed, // debt repaid to zero
			PositionStatusLiquidated,
		},
		PositionStatusClosed:     {},
		PositionStatusLiquidated: {},
	}

	allowed, ok := validTransitions[ps]
	if !ok {
		return false
	}

	for _, allowedStatus := range allowed {
		if next == allowedStatus {
			return true
		}
	}

	return false
}

// IsTerminal reports whether no further mutation is allowed.
func (ps PositionStatus) IsTerminal() bool {
	return ps == PositionStatusClosed || ps == PositionStatusLiquidated
}

// Depositor is the public record of one collateral position. The raw
// collateral/debt pair never appears here: only MetadataHash, the commitment
// binding the private pair to this record.
type Depositor struct {
	PositionID   [32]byte
	Owner        uuid.UUID
	MetadataHash [32]byte
	HealthFactor int64
	Status       PositionStatus
	CoinColor    string
	BorrowLimit  int64
	Version      int64 // Optimistic concurrency control
}

// CanonicalBytes returns deterministic serialization for hashing
func (d *Depositor) CanonicalBytes() []byte {
	buf := make([]byte, 0, 128)

	// position_id (32 bytes)
	buf = append(buf, d.PositionID[:]...)

	// owner (16 bytes UUID binary)
	buf = append(buf, d.Owner[:]...)

	// metadata_hash (32 bytes)
	buf = append(buf, d.MetadataHash[:]...)

	// health_factor (8 bytes LE)
	buf = appendInt64LE(buf, d.HealthFactor)

	// status (1 byte)
	buf = append(buf, byte(d.Status))

	// coin_color (length-prefixed)
	buf = append(buf, byte(len(d.CoinColor)))
	buf = append(buf, []byte(d.CoinColor)...)

	// borrow_limit (8 bytes LE)
	buf = appendInt64LE(buf, d.BorrowLimit)

	return buf
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}
