package state

import (
	"fmt"

	"github.com/google/uuid"

	"StableLedger/internal/fault"
)

// PositionLedger owns the mapping from position identifier to Depositor
// records. Records are never deleted: Closed and Liquidated entries stay in
// the map so a reused position id is always rejected.
type PositionLedger struct {
	positions map[[32]byte]*Depositor
}

func NewPositionLedger() *PositionLedger {
	return &PositionLedger{
		positions: make(map[[32]byte]*Depositor),
	}
}

// Get returns existing depositor or nil
func (pl *PositionLedger) Get(positionID [32]byte) *Depositor {
	return pl.positions[positionID]
}

// Require returns the depositor for positionID owned by owner.
func (pl *PositionLedger) Require(positionID [32]byte, owner uuid.UUID) (*Depositor, error) {
	dep := pl.positions[positionID]
	if dep == nil {
		return nil, fmt.Errorf("%w: position %x not found", fault.ErrPrecondition, positionID[:4])
	}
	if dep.Owner != owner {
		return nil, fmt.Errorf("%w: position %x not owned by caller", fault.ErrAuthorization, positionID[:4])
	}
	return dep, nil
}

// Create inserts a new Inactive depositor. Fails if the position id was ever
// used, including by a closed or liquidated position.
func (pl *PositionLedger) Create(
	positionID [32]byte,
	owner uuid.UUID,
	metadataHash [32]byte,
	coinColor string,
	borrowLimit int64,
) (*Depositor, error) {
	if pl.positions[positionID] != nil {
		return nil, fmt.Errorf("%w: position %x already exists", fault.ErrPrecondition, positionID[:4])
	}

	dep := &Depositor{
		PositionID:   positionID,
		Owner:        owner,
		MetadataHash: metadataHash,
		HealthFactor: 0,
		Status:       PositionStatusInactive,
		CoinColor:    coinColor,
		BorrowLimit:  borrowLimit,
		Version:      0,
	}
	pl.positions[positionID] = dep

	return dep, nil
}

// Transition moves a depositor to the next status, enforcing the lifecycle
// machine.
func (pl *PositionLedger) Transition(dep *Depositor, next PositionStatus) error {
	if dep.Status == next {
		return nil
	}
	if !dep.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: invalid status transition %s -> %s",
			fault.ErrPrecondition, dep.Status, next)
	}
	dep.Status = next
	dep.Version++
	return nil
}

// Set directly sets a depositor (used for snapshot restore)
func (pl *PositionLedger) Set(dep *Depositor) {
	pl.positions[dep.PositionID] = dep
}

// All returns all depositors (for iteration)
func (pl *PositionLedger) All() []*Depositor {
	result := make([]*Depositor, 0, len(pl.positions))
	for _, dep := range pl.positions {
		result = append(result, dep)
	}
	return result
}

// OwnedBy returns all positions belonging to one owner.
func (pl *PositionLedger) OwnedBy(owner uuid.UUID) []*Depositor {
	result := make([]*Depositor, 0)
	for _, dep := range pl.positions {
		if dep.Owner == owner {
			result = append(result, dep)
		}
	}
	return result
}

// Count returns the number of depositor records.
func (pl *PositionLedger) Count() int {
	return len(pl.positions)
}
