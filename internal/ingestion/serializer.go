package ingestion

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"StableLedger/internal/event"
)

// MarshalRawEvent renders an event back into its wire JSON form. The event
// log stores this representation so crash recovery can replay rows through
// ParseRawEvent and reproduce the exact state transitions.
func MarshalRawEvent(evt event.Event) ([]byte, error) {
	switch e := evt.(type) {
	case *event.DepositSubmitted:
		return json.Marshal(depositSubmittedJSON{
			DepositID:   e.DepositID.String(),
			Owner:       e.Owner.String(),
			PositionID:  hex.EncodeToString(e.PositionID[:]),
			CoinValue:   e.CoinValue,
			Collateral:  e.Collateral,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp,
		})

	case *event.MintRequested:
		return json.Marshal(mintRequestedJSON{
			RequestID:   e.RequestID.String(),
			Owner:       e.Owner.String(),
			PositionID:  hex.EncodeToString(e.PositionID[:]),
			Amount:      e.Amount,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp,
		})

	case *event.WithdrawRequested:
		return json.Marshal(withdrawRequestedJSON{
			RequestID:   e.RequestID.String(),
			Owner:       e.Owner.String(),
			PositionID:  hex.EncodeToString(e.PositionID[:]),
			Amount:      e.Amount,
			OraclePrice: e.OraclePrice,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp,
		})

	case *event.RepaySubmitted:
		return json.Marshal(repaySubmittedJSON{
			RequestID:   e.RequestID.String(),
			Owner:       e.Owner.String(),
			PositionID:  hex.EncodeToString(e.PositionID[:]),
			CoinValue:   e.CoinValue,
			Amount:      e.Amount,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp,
		})

	case *event.StakeSubmitted:
		return json.Marshal(stakeSubmittedJSON{
			StakeID:     e.StakeID.String(),
			Owner:       e.Owner.String(),
			CoinValue:   e.CoinValue,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp,
		})

	case *event.RewardCheckRequested:
		return json.Marshal(rewardCheckJSON{
			RequestID:   e.RequestID.String(),
			Owner:       e.Owner.String(),
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp,
		})

	case *event.RewardWithdrawRequested:
		return json.Marshal(rewardWithdrawJSON{
			RequestID:   e.RequestID.String(),
			Owner:       e.Owner.String(),
			Amount:      e.Amount,
			Sequence:    e.Sequence,
			TimestampUs: e.Timestamp,
		})

	case *event.LiquidationRequested:
		return json.Marshal(liquidationRequestedJSON{
			LiquidationID: e.LiquidationID.String(),
			PositionID:    hex.EncodeToString(e.PositionID[:]),
			CollateralAmt: e.CollateralAmt,
			Debt:          e.Debt,
			Sequence:      e.Sequence,
			TimestampUs:   e.Timestamp,
		})

	case *event.ProtocolParamUpdate:
		return json.Marshal(protocolParamUpdateJSON{
			LiquidationThreshold: e.LiquidationThreshold,
			LoanToValue:          e.LoanToValue,
			MinCollateralRatio:   e.MinCollateralRatio,
			EffectiveSeq:         e.EffectiveSeq,
			Sequence:             e.Sequence,
			TimestampUs:          e.Timestamp,
		})

	default:
		return nil, fmt.Errorf("unknown event type %T", evt)
	}
}
