package event

import (
	"fmt"

	"github.com/google/uuid"
)

// LiquidationRequested is emitted by the external health monitor once a
// position's health factor falls below threshold. The collateral/debt pair
// is re-verified against the position's metadata commitment before applying.
type LiquidationRequested struct {
	LiquidationID uuid.UUID
	PositionID    [32]byte
	CollateralAmt int64
	Debt          int64
	Sequence      int64
	Timestamp     int64
}

func (l *LiquidationRequested) IdempotencyKey() string {
	return l.LiquidationID.String()
}

func (l *LiquidationRequested) EventType() EventType {
	return EventTypeLiquidationRequested
}

func (l *LiquidationRequested) Partition() string {
	return PartitionLiquidations
}

func (l *LiquidationRequested) SourceSequence() int64 {
	return l.Sequence
}

// ProtocolParamUpdate replaces the protocol risk parameters. Asset types are
// fixed after launch and deliberately absent here.
type ProtocolParamUpdate struct {
	LiquidationThreshold uint8
	LoanToValue          uint8
	MinCollateralRatio   uint8
	EffectiveSeq         int64 // Sequence at which params take effect
	Sequence             int64
	Timestamp            int64
}

func (p *ProtocolParamUpdate) IdempotencyKey() string {
	return fmt.Sprintf("param_update:%d", p.EffectiveSeq)
}

func (p *ProtocolParamUpdate) EventType() EventType {
	return EventTypeProtocolParamUpdate
}

func (p *ProtocolParamUpdate) Partition() string {
	return PartitionAdmin
}

func (p *ProtocolParamUpdate) SourceSequence() int64 {
	return p.Sequence
}
