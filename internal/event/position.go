package event

import "github.com/google/uuid"

// DepositSubmitted carries a collateral coin into a fresh position. The
// declared collateral is the private metadata value; the core stores only
// its commitment on the public record.
type DepositSubmitted struct {
	DepositID  uuid.UUID
	Owner      uuid.UUID
	PositionID [32]byte
	CoinValue  int64 // Fixed-point, collateral asset
	Collateral int64 // declared private collateral, <= CoinValue
	Sequence   int64
	Timestamp  int64
}

func (d *DepositSubmitted) IdempotencyKey() string {
	return d.DepositID.String()
}

func (d *DepositSubmitted) EventType() EventType {
	return EventTypeDepositSubmitted
}

func (d *DepositSubmitted) Partition() string {
	return PartitionPositions
}

func (d *DepositSubmitted) SourceSequence() int64 {
	return d.Sequence
}

// MintRequested asks for pegged-token issuance against a position.
type MintRequested struct {
	RequestID  uuid.UUID
	Owner      uuid.UUID
	PositionID [32]byte
	Amount     int64
	Sequence   int64
	Timestamp  int64
}

func (m *MintRequested) IdempotencyKey() string {
	return m.RequestID.String()
}

func (m *MintRequested) EventType() EventType {
	return EventTypeMintRequested
}

func (m *MintRequested) Partition() string {
	return PartitionPositions
}

func (m *MintRequested) SourceSequence() int64 {
	return m.Sequence
}

// WithdrawRequested releases collateral at the supplied oracle price.
type WithdrawRequested struct {
	RequestID   uuid.UUID
	Owner       uuid.UUID
	PositionID  [32]byte
	Amount      int64
	OraclePrice int64
	Sequence    int64
	Timestamp   int64
}

func (w *WithdrawRequested) IdempotencyKey() string {
	return w.RequestID.String()
}

func (w *WithdrawRequested) EventType() EventType {
	return EventTypeWithdrawRequested
}

func (w *WithdrawRequested) Partition() string {
	return PartitionPositions
}

func (w *WithdrawRequested) SourceSequence() int64 {
	return w.Sequence
}

// RepaySubmitted burns a pegged-token coin against the position's debt.
type RepaySubmitted struct {
	RequestID  uuid.UUID
	Owner      uuid.UUID
	PositionID [32]byte
	CoinValue  int64
	Amount     int64 // declared repayment, >= CoinValue
	Sequence   int64
	Timestamp  int64
}

func (r *RepaySubmitted) IdempotencyKey() string {
	return r.RequestID.String()
}

func (r *RepaySubmitted) EventType() EventType {
	return EventTypeRepaySubmitted
}

func (r *RepaySubmitted) Partition() string {
	return PartitionPositions
}

func (r *RepaySubmitted) SourceSequence() int64 {
	return r.Sequence
}
