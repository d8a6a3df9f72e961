package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeDepositSubmitted
	EventTypeMintRequested
	EventTypeWithdrawRequested
	EventTypeRepaySubmitted
	EventTypeStakeSubmitted
	EventTypeRewardCheckRequested
	EventTypeRewardWithdrawRequested
	EventTypeLiquidationRequested
	EventTypeProtocolParamUpdate
)

// Partition names for source-sequence validation. Each upstream feed keeps
// its own gap-free sequence.
const (
	PartitionPositions    = "positions"
	PartitionStaking      = "staking"
	PartitionLiquidations = "liquidations"
	PartitionAdmin        = "admin"
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Source partition for ordering validation
	Partition string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// Partition returns the upstream feed this event belongs to
	Partition() string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeDepositSubmitted:
		return "DepositSubmitted"
	case EventTypeMintRequested:
		return "MintRequested"
	case EventTypeWithdrawRequested:
		return "WithdrawRequested"
	case EventTypeRepaySubmitted:
		return "RepaySubmitted"
	case EventTypeStakeSubmitted:
		return "StakeSubmitted"
	case EventTypeRewardCheckRequested:
		return "RewardCheckRequested"
	case EventTypeRewardWithdrawRequested:
		return "RewardWithdrawRequested"
	case EventTypeLiquidationRequested:
		return "LiquidationRequested"
	case EventTypeProtocolParamUpdate:
		return "ProtocolParamUpdate"
	default:
		return "Unknown"
	}
}
