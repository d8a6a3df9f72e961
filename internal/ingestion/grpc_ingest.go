package ingestion

import (
	"StableLedger/internal/event"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GRPCIngestService provides admin/manual event injection via gRPC.
// gRPC ingest is for admin operations and manual event injection, not for
// high-throughput ingestion (use NATS for that). Callers supply the source
// sequence so the per-partition gap check still holds.
type GRPCIngestService struct {
	eventChan chan<- event.Event
}

func NewGRPCIngestService(eventChan chan<- event.Event) *GRPCIngestService {
	return &GRPCIngestService{eventChan: eventChan}
}

// InjectParamUpdate manually injects a ProtocolParamUpdate event.
func (s *GRPCIngestService) InjectParamUpdate(
	ctx context.Context,
	liquidationThreshold uint8,
	loanToValue uint8,
	minCollateralRatio uint8,
	effectiveSeq int64,
	sourceSeq int64,
) error {
	if liquidationThreshold == 0 || liquidationThreshold > 100 {
		return fmt.Errorf("liquidation threshold must be in (0, 100]")
	}
	if loanToValue == 0 || loanToValue >= liquidationThreshold {
		return fmt.Errorf("loan-to-value must be in (0, threshold)")
	}

	evt := &event.ProtocolParamUpdate{
		LiquidationThreshold: liquidationThreshold,
		LoanToValue:          loanToValue,
		MinCollateralRatio:   minCollateralRatio,
		EffectiveSeq:         effectiveSeq,
		Sequence:             sourceSeq,
		Timestamp:            time.Now().UnixMicro(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectLiquidation manually injects a LiquidationRequested event. Used by
// operators when the external health monitor is down; the core still
// re-verifies the collateral/debt pair against the position's commitment.
func (s *GRPCIngestService) InjectLiquidation(
	ctx context.Context,
	positionID [32]byte,
	collateralAmt int64,
	debt int64,
	sourceSeq int64,
) error {
	if collateralAmt <= 0 || debt <= 0 {
		return fmt.Errorf("collateral and debt must be positive")
	}

	evt := &event.LiquidationRequested{
		LiquidationID: uuid.New(),
		PositionID:    positionID,
		CollateralAmt: collateralAmt,
		Debt:          debt,
		Sequence:      sourceSeq,
		Timestamp:     time.Now().UnixMicro(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectRewardCheck manually injects a RewardCheckRequested event.
func (s *GRPCIngestService) InjectRewardCheck(
	ctx context.Context,
	owner uuid.UUID,
	sourceSeq int64,
) error {
	evt := &event.RewardCheckRequested{
		RequestID: uuid.New(),
		Owner:     owner,
		Sequence:  sourceSeq,
		Timestamp: time.Now().UnixMicro(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
