package ingestion

import (
	"StableLedger/internal/event"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates, parses, and converts raw
// events before sending to the deterministic core.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "DepositSubmitted":
		return parseDepositSubmitted(raw.Data)
	case "MintRequested":
		return parseMintRequested(raw.Data)
	case "WithdrawRequested":
		return parseWithdrawRequested(raw.Data)
	case "RepaySubmitted":
		return parseRepaySubmitted(raw.Data)
	case "StakeSubmitted":
		return parseStakeSubmitted(raw.Data)
	case "RewardCheckRequested":
		return parseRewardCheckRequested(raw.Data)
	case "RewardWithdrawRequested":
		return parseRewardWithdrawRequested(raw.Data)
	case "LiquidationRequested":
		return parseLiquidationRequested(raw.Data)
	case "ProtocolParamUpdate":
		return parseProtocolParamUpdate(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// parsePositionID decodes a 32-byte position commitment from hex.
func parsePositionID(s string) ([32]byte, error) {
	var id [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != 32 {
		return id, fmt.Errorf("position_id must be 32 bytes, got %d", len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers.

type depositSubmittedJSON struct {
	DepositID   string `json:"deposit_id"`
	Owner       string `json:"owner"`
	PositionID  string `json:"position_id"` // hex-encoded commitment
	CoinValue   int64  `json:"coin_value"`
	Collateral  int64  `json:"collateral"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseDepositSubmitted(data []byte) (*event.DepositSubmitted, error) {
	var j depositSubmittedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DepositSubmitted: %w", err)
	}

	depositID, err := uuid.Parse(j.DepositID)
	if err != nil {
		return nil, fmt.Errorf("parse deposit_id: %w", err)
	}
	owner, err := uuid.Parse(j.Owner)
	if err != nil {
		return nil, fmt.Errorf("parse owner: %w", err)
	}
	positionID, err := parsePositionID(j.PositionID)
	if err != nil {
		return nil, fmt.Errorf("parse position_id: %w", err)
	}

	return &event.DepositSubmitted{
		DepositID:  depositID,
		Owner:      owner,
		PositionID: positionID,
		CoinValue:  j.CoinValue,
		Collateral: j.Collateral,
		Sequence:   j.Sequence,
		Timestamp:  j.TimestampUs,
	}, nil
}

type mintRequestedJSON struct {
	RequestID   string `json:"request_id"`
	Owner       string `json:"owner"`
	PositionID  string `json:"position_id"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseMintRequested(data []byte) (*event.MintRequested, error) {
	var j mintRequestedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse MintRequested: %w", err)
	}

	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	owner, err := uuid.Parse(j.Owner)
	if err != nil {
		return nil, fmt.Errorf("parse owner: %w", err)
	}
	positionID, err := parsePositionID(j.PositionID)
	if err != nil {
		return nil, fmt.Errorf("parse position_id: %w", err)
	}

	return &event.MintRequested{
		RequestID:  requestID,
		Owner:      owner,
		PositionID: positionID,
		Amount:     j.Amount,
		Sequence:   j.Sequence,
		Timestamp:  j.TimestampUs,
	}, nil
}

type withdrawRequestedJSON struct {
	RequestID   string `json:"request_id"`
	Owner       string `json:"owner"`
	PositionID  string `json:"position_id"`
	Amount      int64  `json:"amount"`
	OraclePrice int64  `json:"oracle_price"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseWithdrawRequested(data []byte) (*event.WithdrawRequested, error) {
	var j withdrawRequestedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawRequested: %w", err)
	}

	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	owner, err := uuid.Parse(j.Owner)
	if err != nil {
		return nil, fmt.Errorf("parse owner: %w", err)
	}
	positionID, err := parsePositionID(j.PositionID)
	if err != nil {
		return nil, fmt.Errorf("parse position_id: %w", err)
	}

	return &event.WithdrawRequested{
		RequestID:   requestID,
		Owner:       owner,
		PositionID:  positionID,
		Amount:      j.Amount,
		OraclePrice: j.OraclePrice,
		Sequence:    j.Sequence,
		Timestamp:   j.TimestampUs,
	}, nil
}

type repaySubmittedJSON struct {
	RequestID   string `json:"request_id"`
	Owner       string `json:"owner"`
	PositionID  string `json:"position_id"`
	CoinValue   int64  `json:"coin_value"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseRepaySubmitted(data []byte) (*event.RepaySubmitted, error) {
	var j repaySubmittedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RepaySubmitted: %w", err)
	}

	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	owner, err := uuid.Parse(j.Owner)
	if err != nil {
		return nil, fmt.Errorf("parse owner: %w", err)
	}
	positionID, err := parsePositionID(j.PositionID)
	if err != nil {
		return nil, fmt.Errorf("parse position_id: %w", err)
	}

	return &event.RepaySubmitted{
		RequestID:  requestID,
		Owner:      owner,
		PositionID: positionID,
		CoinValue:  j.CoinValue,
		Amount:     j.Amount,
		Sequence:   j.Sequence,
		Timestamp:  j.TimestampUs,
	}, nil
}

type stakeSubmittedJSON struct {
	StakeID     string `json:"stake_id"`
	Owner       string `json:"owner"`
	CoinValue   int64  `json:"coin_value"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseStakeSubmitted(data []byte) (*event.StakeSubmitted, error) {
	var j stakeSubmittedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse StakeSubmitted: %w", err)
	}

	stakeID, err := uuid.Parse(j.StakeID)
	if err != nil {
		return nil, fmt.Errorf("parse stake_id: %w", err)
	}
	owner, err := uuid.Parse(j.Owner)
	if err != nil {
		return nil, fmt.Errorf("parse owner: %w", err)
	}

	return &event.StakeSubmitted{
		StakeID:   stakeID,
		Owner:     owner,
		CoinValue: j.CoinValue,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

type rewardCheckJSON struct {
	RequestID   string `json:"request_id"`
	Owner       string `json:"owner"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseRewardCheckRequested(data []byte) (*event.RewardCheckRequested, error) {
	var j rewardCheckJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RewardCheckRequested: %w", err)
	}

	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	owner, err := uuid.Parse(j.Owner)
	if err != nil {
		return nil, fmt.Errorf("parse owner: %w", err)
	}

	return &event.RewardCheckRequested{
		RequestID: requestID,
		Owner:     owner,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

type rewardWithdrawJSON struct {
	RequestID   string `json:"request_id"`
	Owner       string `json:"owner"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseRewardWithdrawRequested(data []byte) (*event.RewardWithdrawRequested, error) {
	var j rewardWithdrawJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RewardWithdrawRequested: %w", err)
	}

	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	owner, err := uuid.Parse(j.Owner)
	if err != nil {
		return nil, fmt.Errorf("parse owner: %w", err)
	}

	return &event.RewardWithdrawRequested{
		RequestID: requestID,
		Owner:     owner,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: j.TimestampUs,
	}, nil
}

type liquidationRequestedJSON struct {
	LiquidationID string `json:"liquidation_id"`
	PositionID    string `json:"position_id"`
	CollateralAmt int64  `json:"collateral_amt"`
	Debt          int64  `json:"debt"`
	Sequence      int64  `json:"sequence"`
	TimestampUs   int64  `json:"timestamp_us"`
}

func parseLiquidationRequested(data []byte) (*event.LiquidationRequested, error) {
	var j liquidationRequestedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LiquidationRequested: %w", err)
	}

	liqID, err := uuid.Parse(j.LiquidationID)
	if err != nil {
		return nil, fmt.Errorf("parse liquidation_id: %w", err)
	}
	positionID, err := parsePositionID(j.PositionID)
	if err != nil {
		return nil, fmt.Errorf("parse position_id: %w", err)
	}

	return &event.LiquidationRequested{
		LiquidationID: liqID,
		PositionID:    positionID,
		CollateralAmt: j.CollateralAmt,
		Debt:          j.Debt,
		Sequence:      j.Sequence,
		Timestamp:     j.TimestampUs,
	}, nil
}

type protocolParamUpdateJSON struct {
	LiquidationThreshold uint8 `json:"liquidation_threshold"`
	LoanToValue          uint8 `json:"loan_to_value"`
	MinCollateralRatio   uint8 `json:"min_collateral_ratio"`
	EffectiveSeq         int64 `json:"effective_seq"`
	Sequence             int64 `json:"sequence"`
	TimestampUs          int64 `json:"timestamp_us"`
}

func parseProtocolParamUpdate(data []byte) (*event.ProtocolParamUpdate, error) {
	var j protocolParamUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ProtocolParamUpdate: %w", err)
	}

	return &event.ProtocolParamUpdate{
		LiquidationThreshold: j.LiquidationThreshold,
		LoanToValue:          j.LoanToValue,
		MinCollateralRatio:   j.MinCollateralRatio,
		EffectiveSeq:         j.EffectiveSeq,
		Sequence:             j.Sequence,
		Timestamp:            j.TimestampUs,
	}, nil
}
