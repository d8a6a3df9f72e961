package event

import "github.com/google/uuid"

// StakeSubmitted locks a pegged-token coin into the stability pool.
type StakeSubmitted struct {
	StakeID   uuid.UUID
	Owner     uuid.UUID
	CoinValue int64
	Sequence  int64
	Timestamp int64
}

func (s *StakeSubmitted) IdempotencyKey() string {
	return s.StakeID.String()
}

func (s *StakeSubmitted) EventType() EventType {
	return EventTypeStakeSubmitted
}

func (s *StakeSubmitted) Partition() string {
	return PartitionStaking
}

func (s *StakeSubmitted) SourceSequence() int64 {
	return s.Sequence
}

// RewardCheckRequested checkpoints a staker's reward accrual.
type RewardCheckRequested struct {
	RequestID uuid.UUID
	Owner     uuid.UUID
	Sequence  int64
	Timestamp int64
}

func (r *RewardCheckRequested) IdempotencyKey() string {
	return r.RequestID.String()
}

func (r *RewardCheckRequested) EventType() EventType {
	return EventTypeRewardCheckRequested
}

func (r *RewardCheckRequested) Partition() string {
	return PartitionStaking
}

func (r *RewardCheckRequested) SourceSequence() int64 {
	return r.Sequence
}

// RewardWithdrawRequested pays out part of the accrued reward.
type RewardWithdrawRequested struct {
	RequestID uuid.UUID
	Owner     uuid.UUID
	Amount    int64
	Sequence  int64
	Timestamp int64
}

func (r *RewardWithdrawRequested) IdempotencyKey() string {
	return r.RequestID.String()
}

func (r *RewardWithdrawRequested) EventType() EventType {
	return EventTypeRewardWithdrawRequested
}

func (r *RewardWithdrawRequested) Partition() string {
	return PartitionStaking
}

func (r *RewardWithdrawRequested) SourceSequence() int64 {
	return r.Sequence
}
